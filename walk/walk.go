// Package walk enumerates candidate files for projects which declare include patterns
// instead of an explicit file list.
package walk

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// Enumerate returns the root-relative paths of every regular file beneath dir, sorted.
// When root is a git repository, the git index is consulted instead of walking the
// filesystem, so ignored build output never becomes a candidate. Otherwise the
// filesystem is walked directly.
func Enumerate(fsys billy.Filesystem, root string, dir string) ([]string, error) {
	dir = filepath.Clean(dir)
	if !strings.HasPrefix(dir, root) {
		return nil, fmt.Errorf("path '%s' is outside of the root '%s'", dir, root)
	}

	if paths, err := gitIndex(fsys, root, dir); err == nil {
		return paths, nil
	}

	return filesystem(fsys, root, dir)
}

// gitIndex reads the candidate list from the git index of the repository at root.
func gitIndex(fsys billy.Filesystem, root string, dir string) ([]string, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("failed to open git index: %w", err)
	}

	l := log.WithPrefix("walk[git]")

	relDir, err := filepath.Rel(root, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to determine a relative path for %s: %w", dir, err)
	}

	var paths []string

	for _, entry := range idx.Entries {
		// we only want regular files, not directories or symlinks
		if entry.Mode == filemode.Dir || entry.Mode == filemode.Symlink {
			continue
		}

		if relDir != "." && entry.Name != relDir && !strings.HasPrefix(entry.Name, relDir+"/") {
			continue
		}

		// the underlying file might have been removed without the change being staged yet
		if _, err := fsys.Stat(filepath.Join(root, entry.Name)); err != nil {
			l.Warnf("path %s is in the index but appears to have been removed from the filesystem", entry.Name)

			continue
		}

		paths = append(paths, entry.Name)
	}

	sort.Strings(paths)

	return paths, nil
}

// filesystem walks dir directly, skipping version control metadata.
func filesystem(fsys billy.Filesystem, root string, dir string) ([]string, error) {
	var paths []string

	err := util.Walk(fsys, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}

			return nil
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to determine a relative path for %s: %w", path, err)
		}

		paths = append(paths, relPath)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	sort.Strings(paths)

	return paths, nil
}
