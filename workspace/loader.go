package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-git/go-billy/v5/util"
	"github.com/gobwas/glob"

	"github.com/codefmt/codefmt/walk"
)

// solutionManifest lists the project manifests making up a solution, relative to the
// solution file's directory.
type solutionManifest struct {
	Projects []string `toml:"projects"`
}

// projectManifest describes a single project. Files may be listed explicitly, or
// enumerated from include/exclude patterns applied to the project directory.
type projectManifest struct {
	Name     string   `toml:"name"`
	Language string   `toml:"language"`
	Files    []string `toml:"files"`
	Include  []string `toml:"include"`
	Exclude  []string `toml:"exclude"`
}

// OpenSolution loads the solution manifest at path and every project it references.
// The workspace root is the solution file's directory.
func (p *Provider) OpenSolution(ctx context.Context, path string) (*Handle, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get absolute path for %s: %v", ErrLoad, path, err)
	}

	root := filepath.Dir(path)

	var manifest solutionManifest
	if err := p.readManifest(path, &manifest); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		root: root,
		docs: make(map[string]*Document),
	}

	for _, projPath := range manifest.Projects {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		project, err := p.loadProject(root, filepath.Join(root, projPath), snapshot, false)
		if err != nil {
			return nil, err
		}

		snapshot.projects = append(snapshot.projects, project)
	}

	return &Handle{provider: p, fs: p.fs, root: root, snapshot: snapshot}, nil
}

// OpenProject loads a single project manifest. Unlike projects within a solution, a
// directly opened project must have a supported language.
func (p *Provider) OpenProject(ctx context.Context, path string) (*Handle, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get absolute path for %s: %v", ErrLoad, path, err)
	}

	root := filepath.Dir(path)

	snapshot := &Snapshot{
		root: root,
		docs: make(map[string]*Document),
	}

	project, err := p.loadProject(root, path, snapshot, true)
	if err != nil {
		return nil, err
	}

	snapshot.projects = append(snapshot.projects, project)

	return &Handle{provider: p, fs: p.fs, root: root, snapshot: snapshot}, nil
}

func (p *Provider) readManifest(path string, v any) error {
	data, err := util.ReadFile(p.fs, path)
	if err != nil {
		return fmt.Errorf("%w: failed to read manifest %s: %v", ErrLoad, path, err)
	}

	if err := toml.Unmarshal(data, v); err != nil {
		p.notify(Diagnostic{
			Severity: SeverityError,
			Kind:     DiagMalformedManifest,
			Message:  fmt.Sprintf("%s: %v", path, err),
		})

		return fmt.Errorf("%w: failed to parse manifest %s: %v", ErrLoad, path, err)
	}

	return nil
}

func (p *Provider) loadProject(root string, path string, snapshot *Snapshot, direct bool) (*Project, error) {
	var manifest projectManifest
	if err := p.readManifest(path, &manifest); err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)

	name := manifest.Name
	if name == "" {
		name = filepath.Base(dir)
	}

	language := Language(strings.ToLower(manifest.Language))
	if direct && !language.Supported() {
		p.notify(Diagnostic{
			Severity: SeverityError,
			Kind:     DiagUnsupportedLanguage,
			Message:  fmt.Sprintf("project %s has unsupported language '%s'", name, manifest.Language),
		})

		return nil, fmt.Errorf("%w: unsupported language '%s' for project %s", ErrLoad, manifest.Language, name)
	}

	project := &Project{
		Name:     name,
		Language: language,
		Dir:      dir,
	}

	paths := manifest.Files

	// no explicit file list, enumerate the project directory instead
	if len(paths) == 0 {
		enumerated, err := p.enumerate(root, dir, language, manifest.Include, manifest.Exclude)
		if err != nil {
			return nil, err
		}

		paths = enumerated
	}

	for _, filePath := range paths {
		if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(dir, filePath)
		}

		doc, ok := p.loadDocument(root, filePath, project)
		if !ok {
			continue
		}

		// a document already loaded by another project is shared, not replaced
		if _, exists := snapshot.docs[doc.RelPath]; !exists {
			snapshot.docs[doc.RelPath] = doc
		}

		project.Files = append(project.Files, doc.RelPath)
	}

	p.log.Debugf("loaded project %s (%s) with %d files", name, language, len(project.Files))

	return project, nil
}

// enumerate walks the project directory and keeps paths which carry the language's source
// extension and survive the manifest's include/exclude patterns.
func (p *Provider) enumerate(root string, dir string, language Language, includes []string, excludes []string) ([]string, error) {
	includeGlobs, err := compileGlobs(includes)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compile include patterns: %v", ErrLoad, err)
	}

	excludeGlobs, err := compileGlobs(excludes)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compile exclude patterns: %v", ErrLoad, err)
	}

	relPaths, err := walk.Enumerate(p.fs, root, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to enumerate %s: %v", ErrLoad, dir, err)
	}

	var paths []string

	for _, relPath := range relPaths {
		if !language.HasExtension(relPath) {
			continue
		}

		// include/exclude patterns are written relative to the project directory
		projRel, err := filepath.Rel(dir, filepath.Join(root, relPath))
		if err != nil {
			continue
		}

		if len(includeGlobs) > 0 && !matches(projRel, includeGlobs) {
			continue
		}

		if matches(projRel, excludeGlobs) {
			continue
		}

		paths = append(paths, filepath.Join(root, relPath))
	}

	return paths, nil
}

func (p *Provider) loadDocument(root string, path string, project *Project) (*Document, bool) {
	info, err := p.fs.Stat(path)
	if err != nil {
		p.notify(Diagnostic{
			Severity: SeverityWarning,
			Kind:     DiagMissingFile,
			Message:  fmt.Sprintf("project %s references %s which does not exist", project.Name, path),
		})

		return nil, false
	}

	text, err := util.ReadFile(p.fs, path)
	if err != nil {
		p.notify(Diagnostic{
			Severity: SeverityWarning,
			Kind:     DiagUnreadableFile,
			Message:  fmt.Sprintf("failed to read %s: %v", path, err),
		})

		return nil, false
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		relPath = path
	}

	return &Document{
		Path:     path,
		RelPath:  relPath,
		Project:  project.Name,
		Language: project.Language,
		Info:     info,
		text:     text,
	}, true
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, len(patterns))

	for i, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern '%v': %w", pattern, err)
		}

		globs[i] = g
	}

	return globs, nil
}

func matches(path string, globs []glob.Glob) bool {
	for idx := range globs {
		if globs[idx].Match(path) {
			return true
		}
	}

	return false
}
