package format_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/codefmt/codefmt/format"
	"github.com/codefmt/codefmt/workspace"
)

// appendPass appends a fixed suffix to every entry's document, counting invocations.
type appendPass struct {
	name   string
	suffix string
	calls  int
	err    error
}

func (p *appendPass) Name() string { return p.name }

func (p *appendPass) Apply(
	_ context.Context,
	snapshot *workspace.Snapshot,
	entries []*format.Entry,
) (*workspace.Snapshot, error) {
	p.calls++

	if p.err != nil {
		return nil, p.err
	}

	for _, entry := range entries {
		doc := snapshot.Document(entry.Doc.RelPath)
		snapshot = snapshot.WithText(doc.RelPath, append(doc.Text(), []byte(p.suffix)...))
	}

	return snapshot, nil
}

// nilPass violates the contract by returning no snapshot.
type nilPass struct{}

func (nilPass) Name() string { return "nil" }

func (nilPass) Apply(context.Context, *workspace.Snapshot, []*format.Entry) (*workspace.Snapshot, error) {
	return nil, nil
}

func chainFixture(t *testing.T) (*workspace.Snapshot, []*format.Entry) {
	t.Helper()

	fsys := memfs.New()
	writeMemFile(t, fsys, "/work/project.toml", `
name = "app"
language = "csharp"
files = ["One.cs"]
`)
	writeMemFile(t, fsys, "/work/One.cs", "class One {}\n")

	snapshot := openProject(t, fsys)

	return snapshot, []*format.Entry{
		{Doc: snapshot.Document("One.cs"), Options: baselineOptions(t)},
	}
}

func TestChain_EmptyIsIdentity(t *testing.T) {
	as := require.New(t)

	snapshot, entries := chainFixture(t)

	out, err := format.NewChain().Apply(context.Background(), snapshot, entries)
	as.NoError(err)
	as.Same(snapshot, out)
}

func TestChain_ThreadsSnapshots(t *testing.T) {
	as := require.New(t)

	snapshot, entries := chainFixture(t)

	first := &appendPass{name: "first", suffix: "// first\n"}
	second := &appendPass{name: "second", suffix: "// second\n"}

	out, err := format.NewChain(first, second).Apply(context.Background(), snapshot, entries)
	as.NoError(err)

	as.Equal(1, first.calls)
	as.Equal(1, second.calls)

	// the second pass must have seen the first pass's output
	as.Equal("class One {}\n// first\n// second\n", string(out.Document("One.cs").Text()))

	// the input snapshot is untouched
	as.Equal("class One {}\n", string(snapshot.Document("One.cs").Text()))
}

func TestChain_RegisteredTwiceRunsTwice(t *testing.T) {
	as := require.New(t)

	snapshot, entries := chainFixture(t)

	pass := &appendPass{name: "mark", suffix: "!"}

	chain := format.NewChain()
	chain.Register(pass)
	chain.Register(pass)

	out, err := chain.Apply(context.Background(), snapshot, entries)
	as.NoError(err)
	as.Equal(2, pass.calls)
	as.Equal("class One {}\n!!", string(out.Document("One.cs").Text()))
}

func TestChain_WrapsPassErrors(t *testing.T) {
	as := require.New(t)

	snapshot, entries := chainFixture(t)

	boom := errors.New("boom")
	failing := &appendPass{name: "broken", err: boom}
	after := &appendPass{name: "after", suffix: "!"}

	_, err := format.NewChain(failing, after).Apply(context.Background(), snapshot, entries)
	as.ErrorIs(err, boom)
	as.ErrorContains(err, "pass 'broken' failed")

	// a failed pass halts the chain
	as.Equal(0, after.calls)
}

func TestChain_RejectsNilSnapshot(t *testing.T) {
	as := require.New(t)

	snapshot, entries := chainFixture(t)

	_, err := format.NewChain(nilPass{}).Apply(context.Background(), snapshot, entries)
	as.ErrorContains(err, "returned no snapshot")
}

func TestChain_Cancelled(t *testing.T) {
	as := require.New(t)

	snapshot, entries := chainFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pass := &appendPass{name: "never", suffix: "!"}

	_, err := format.NewChain(pass).Apply(ctx, snapshot, entries)
	as.ErrorIs(err, context.Canceled)
	as.Equal(0, pass.calls)
}
