package format_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/expand"

	"github.com/codefmt/codefmt/config"
	"github.com/codefmt/codefmt/format"
)

// installScript drops an executable shell script into a fresh directory and returns an
// environment with that directory prepended to PATH.
func installScript(t *testing.T, name string, body string) expand.Environ {
	t.Helper()

	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\n"+body), 0o755))

	return expand.ListEnviron("PATH=" + binDir + string(os.PathListSeparator) + os.Getenv("PATH"))
}

func TestNewCommandPass_InvalidName(t *testing.T) {
	as := require.New(t)

	env := expand.ListEnviron(os.Environ()...)

	_, err := format.NewCommandPass("white space", t.TempDir(), env, &config.Pass{Command: "true"})
	as.ErrorIs(err, format.ErrInvalidName)
}

func TestNewCommandPass_CommandNotFound(t *testing.T) {
	as := require.New(t)

	env := expand.ListEnviron(os.Environ()...)

	_, err := format.NewCommandPass("missing", t.TempDir(), env, &config.Pass{Command: "codefmt-no-such-command"})
	as.ErrorIs(err, format.ErrCommandNotFound)
}

func TestCommandPass_Apply(t *testing.T) {
	as := require.New(t)

	fsys := memfs.New()
	writeMemFile(t, fsys, "/work/project.toml", `
name = "app"
language = "csharp"
files = ["Program.cs", "Skip.cs"]
`)
	writeMemFile(t, fsys, "/work/Program.cs", "class Program { }\n")
	writeMemFile(t, fsys, "/work/Skip.cs", "class Skip { }\n")

	snapshot := openProject(t, fsys)

	entries := []*format.Entry{
		{Doc: snapshot.Document("Program.cs"), Options: baselineOptions(t)},
		{Doc: snapshot.Document("Skip.cs"), Options: baselineOptions(t)},
	}

	env := installScript(t, "stampfmt", `
for f in "$@"; do
  printf '// stamped\n' >> "$f"
done
`)

	pass, err := format.NewCommandPass("stamp", "/work", env, &config.Pass{
		Command:  "stampfmt",
		Includes: []string{"Program.cs"},
	})
	as.NoError(err)
	as.Equal("stamp", pass.Name())

	out, err := pass.Apply(context.Background(), snapshot, entries)
	as.NoError(err)

	as.Equal("class Program { }\n// stamped\n", string(out.Document("Program.cs").Text()))
	as.Equal("class Skip { }\n", string(out.Document("Skip.cs").Text()))

	// the input snapshot is untouched
	as.Equal("class Program { }\n", string(snapshot.Document("Program.cs").Text()))
}

func TestCommandPass_PassesOptionsBeforePaths(t *testing.T) {
	as := require.New(t)

	fsys := memfs.New()
	writeMemFile(t, fsys, "/work/project.toml", `
name = "app"
language = "csharp"
files = ["Program.cs"]
`)
	writeMemFile(t, fsys, "/work/Program.cs", "class Program { }\n")

	snapshot := openProject(t, fsys)

	entries := []*format.Entry{
		{Doc: snapshot.Document("Program.cs"), Options: baselineOptions(t)},
	}

	// the script records its first argument into every file argument that follows
	env := installScript(t, "argfmt", `
opt="$1"
shift
for f in "$@"; do
  printf '%s\n' "$opt" > "$f"
done
`)

	pass, err := format.NewCommandPass("arg", "/work", env, &config.Pass{
		Command: "argfmt",
		Options: []string{"--style=compact"},
	})
	as.NoError(err)

	out, err := pass.Apply(context.Background(), snapshot, entries)
	as.NoError(err)
	as.Equal("--style=compact\n", string(out.Document("Program.cs").Text()))
}

func TestCommandPass_NothingSelected(t *testing.T) {
	as := require.New(t)

	fsys := memfs.New()
	writeMemFile(t, fsys, "/work/project.toml", `
name = "app"
language = "csharp"
files = ["Program.cs"]
`)
	writeMemFile(t, fsys, "/work/Program.cs", "class Program { }\n")

	snapshot := openProject(t, fsys)

	entries := []*format.Entry{
		{Doc: snapshot.Document("Program.cs"), Options: baselineOptions(t)},
	}

	env := installScript(t, "neverfmt", `exit 1`)

	pass, err := format.NewCommandPass("never", "/work", env, &config.Pass{
		Command:  "neverfmt",
		Includes: []string{"*.vb"},
	})
	as.NoError(err)

	// no entry matches, the command never runs and the snapshot passes through
	out, err := pass.Apply(context.Background(), snapshot, entries)
	as.NoError(err)
	as.Same(snapshot, out)
}

func TestCommandPass_CommandFailure(t *testing.T) {
	as := require.New(t)

	fsys := memfs.New()
	writeMemFile(t, fsys, "/work/project.toml", `
name = "app"
language = "csharp"
files = ["Program.cs"]
`)
	writeMemFile(t, fsys, "/work/Program.cs", "class Program { }\n")

	snapshot := openProject(t, fsys)

	entries := []*format.Entry{
		{Doc: snapshot.Document("Program.cs"), Options: baselineOptions(t)},
	}

	env := installScript(t, "brokenfmt", `echo "cannot parse" >&2; exit 2`)

	pass, err := format.NewCommandPass("broken", "/work", env, &config.Pass{Command: "brokenfmt"})
	as.NoError(err)

	_, err = pass.Apply(context.Background(), snapshot, entries)
	as.ErrorContains(err, "failed to apply")
}
