package test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	cp "github.com/otiai10/copy"
	"github.com/stretchr/testify/require"

	"github.com/codefmt/codefmt/config"
)

// WriteConfig encodes cfg as toml at path.
func WriteConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create a new config file: %v", err)
	}

	encoder := toml.NewEncoder(f)
	if err = encoder.Encode(cfg); err != nil {
		t.Fatalf("failed to write to config file: %v", err)
	}
}

// TempExamples copies the example workspace tree into a fresh temp dir.
func TempExamples(t *testing.T) string {
	t.Helper()

	tempDir := t.TempDir()
	require.NoError(t, cp.Copy("../test/examples", tempDir), "failed to copy test data to dir")

	return tempDir
}

// WriteFile writes contents to dir/path, creating parent directories as needed.
func WriteFile(t *testing.T, dir string, path string, contents string) string {
	t.Helper()

	target := filepath.Join(dir, path)

	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755), "failed to create parent directories")
	require.NoError(t, os.WriteFile(target, []byte(contents), 0o644), "failed to write file")

	return target
}

// ChangeWorkDir changes the current working directory for the duration of the test.
// The original directory is restored when the test ends.
func ChangeWorkDir(t *testing.T, dir string) {
	t.Helper()

	// capture current cwd, so we can replace it after the test is finished
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(fmt.Errorf("failed to get current working directory: %w", err))
	}

	t.Cleanup(func() {
		// return to the previous working directory
		require.NoError(t, os.Chdir(cwd))
	})

	// change to the new directory
	require.NoError(t, os.Chdir(dir))
}
