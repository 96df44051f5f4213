package workspace_test

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"

	"github.com/codefmt/codefmt/workspace"
)

func writeFile(t *testing.T, fsys billy.Filesystem, path string, contents string) {
	t.Helper()
	require.NoError(t, util.WriteFile(fsys, path, []byte(contents), 0o644))
}

func newSolutionFS(t *testing.T) billy.Filesystem {
	t.Helper()

	fsys := memfs.New()

	writeFile(t, fsys, "/work/solution.toml", `projects = ["app/project.toml", "lib/project.toml"]`)

	writeFile(t, fsys, "/work/app/project.toml", `
name = "app"
language = "csharp"
files = ["Program.cs", "../shared/Shared.cs"]
`)
	writeFile(t, fsys, "/work/app/Program.cs", "class Program {}\n")
	writeFile(t, fsys, "/work/shared/Shared.cs", "class Shared {}\n")

	writeFile(t, fsys, "/work/lib/project.toml", `
name = "lib"
language = "csharp"
files = ["Lib.cs", "../shared/Shared.cs"]
`)
	writeFile(t, fsys, "/work/lib/Lib.cs", "class Lib {}\n")

	return fsys
}

func TestOpenSolution(t *testing.T) {
	as := require.New(t)

	provider := workspace.NewProvider(newSolutionFS(t))

	handle, err := provider.OpenSolution(context.Background(), "/work/solution.toml")
	as.NoError(err)
	as.Equal("/work", handle.Root())

	snapshot := handle.Snapshot()
	as.Len(snapshot.Projects(), 2)

	app := snapshot.Projects()[0]
	as.Equal("app", app.Name)
	as.Equal(workspace.CSharp, app.Language)
	as.Equal([]string{"app/Program.cs", "shared/Shared.cs"}, app.Files)

	// the shared document is loaded once and referenced by both projects
	lib := snapshot.Projects()[1]
	as.Contains(lib.Files, "shared/Shared.cs")
	as.Len(snapshot.Documents(), 3)

	doc := snapshot.Document("app/Program.cs")
	as.NotNil(doc)
	as.Equal("app", doc.Project)
	as.Equal([]byte("class Program {}\n"), doc.Text())
}

func TestOpenSolution_MissingManifest(t *testing.T) {
	as := require.New(t)

	provider := workspace.NewProvider(memfs.New())

	_, err := provider.OpenSolution(context.Background(), "/work/missing.toml")
	as.ErrorIs(err, workspace.ErrLoad)
}

func TestOpenSolution_MalformedManifest(t *testing.T) {
	as := require.New(t)

	fsys := memfs.New()
	writeFile(t, fsys, "/work/solution.toml", "projects = [not toml")

	provider := workspace.NewProvider(fsys)

	var diags []workspace.Diagnostic

	cancel := provider.Subscribe(func(d workspace.Diagnostic) {
		diags = append(diags, d)
	})
	defer cancel()

	_, err := provider.OpenSolution(context.Background(), "/work/solution.toml")
	as.ErrorIs(err, workspace.ErrLoad)

	as.Len(diags, 1)
	as.Equal(workspace.SeverityError, diags[0].Severity)
	as.Equal(workspace.DiagMalformedManifest, diags[0].Kind)
}

func TestOpenSolution_MissingFileDiagnostic(t *testing.T) {
	as := require.New(t)

	fsys := memfs.New()
	writeFile(t, fsys, "/work/solution.toml", `projects = ["project.toml"]`)
	writeFile(t, fsys, "/work/project.toml", `
name = "app"
language = "csharp"
files = ["Missing.cs", "Present.cs"]
`)
	writeFile(t, fsys, "/work/Present.cs", "class Present {}\n")

	provider := workspace.NewProvider(fsys)

	var diags []workspace.Diagnostic

	cancel := provider.Subscribe(func(d workspace.Diagnostic) {
		diags = append(diags, d)
	})
	defer cancel()

	handle, err := provider.OpenSolution(context.Background(), "/work/solution.toml")
	as.NoError(err)

	// the missing file is skipped with a warning, the rest of the project still loads
	as.Len(diags, 1)
	as.Equal(workspace.SeverityWarning, diags[0].Severity)
	as.Equal(workspace.DiagMissingFile, diags[0].Kind)

	as.Equal([]string{"Present.cs"}, handle.Snapshot().Projects()[0].Files)
}

func TestOpenProject_UnsupportedLanguage(t *testing.T) {
	as := require.New(t)

	fsys := memfs.New()
	writeFile(t, fsys, "/work/project.toml", `
name = "app"
language = "cobol"
`)

	provider := workspace.NewProvider(fsys)

	_, err := provider.OpenProject(context.Background(), "/work/project.toml")
	as.ErrorIs(err, workspace.ErrLoad)
}

func TestOpenSolution_ToleratesUnsupportedLanguage(t *testing.T) {
	as := require.New(t)

	fsys := memfs.New()
	writeFile(t, fsys, "/work/solution.toml", `projects = ["project.toml"]`)
	writeFile(t, fsys, "/work/project.toml", `
name = "legacy"
language = "cobol"
files = ["prog.cob"]
`)
	writeFile(t, fsys, "/work/prog.cob", "IDENTIFICATION DIVISION.\n")

	provider := workspace.NewProvider(fsys)

	// the project stays in the model so the selector can skip it with a warning
	handle, err := provider.OpenSolution(context.Background(), "/work/solution.toml")
	as.NoError(err)
	as.Len(handle.Snapshot().Projects(), 1)
	as.False(handle.Snapshot().Projects()[0].Language.Supported())
}

func TestOpenProject_EnumeratesByExtension(t *testing.T) {
	as := require.New(t)

	fsys := memfs.New()
	writeFile(t, fsys, "/work/project.toml", `
name = "app"
language = "csharp"
exclude = ["obj/*"]
`)
	writeFile(t, fsys, "/work/One.cs", "class One {}\n")
	writeFile(t, fsys, "/work/Two.cs", "class Two {}\n")
	writeFile(t, fsys, "/work/readme.md", "docs\n")
	writeFile(t, fsys, "/work/obj/Gen.cs", "class Gen {}\n")

	provider := workspace.NewProvider(fsys)

	handle, err := provider.OpenProject(context.Background(), "/work/project.toml")
	as.NoError(err)

	as.Equal([]string{"One.cs", "Two.cs"}, handle.Snapshot().Projects()[0].Files)
}

func TestTryApplyChanges(t *testing.T) {
	as := require.New(t)

	fsys := newSolutionFS(t)
	provider := workspace.NewProvider(fsys)

	handle, err := provider.OpenSolution(context.Background(), "/work/solution.toml")
	as.NoError(err)

	final := handle.Snapshot().WithText("app/Program.cs", []byte("class Program { }\n"))

	as.True(handle.TryApplyChanges(final))

	data, err := util.ReadFile(fsys, "/work/app/Program.cs")
	as.NoError(err)
	as.Equal([]byte("class Program { }\n"), data)

	// the handle adopted the final snapshot
	as.Equal(final, handle.Snapshot())
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	provider := workspace.NewProvider(memfs.New())

	cancel := provider.Subscribe(func(workspace.Diagnostic) {})
	cancel()
	cancel()
}
