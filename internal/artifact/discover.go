package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"
)

// Options control discovery.
type Options struct {
	// Glob is matched against file base names. Defaults to DefaultGlob.
	Glob string
	// Include, when non-empty, keeps only modules whose path matches one of
	// these doublestar patterns.
	Include []string
	// IgnoreFile names a gitignore-syntax file read from each root.
	// Defaults to DefaultIgnoreFile; "-" disables it.
	IgnoreFile string
	Logger     *log.Logger
}

var skipDirs = map[string]struct{}{
	"vendor":       {},
	"testdata":     {},
	"node_modules": {},
}

// Discover finds artifacts under roots. Every root must be an existing
// directory; this is checked for all roots before any is scanned. Roots are
// scanned concurrently but merged in the order given, and within a root in
// lexical path order. When two artifacts share a module path the first one
// wins.
func Discover(ctx context.Context, roots []string, opts Options) ([]Artifact, error) {
	logger := orDiscard(opts.Logger)
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	if opts.Glob == "" {
		opts.Glob = DefaultGlob
	}
	if opts.IgnoreFile == "" {
		opts.IgnoreFile = DefaultIgnoreFile
	}
	for _, p := range append([]string{opts.Glob}, opts.Include...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}

	abs := make([]string, len(roots))
	ignores := make([]*ignore.GitIgnore, len(roots))
	for i, root := range roots {
		dir, err := checkRoot(root)
		if err != nil {
			return nil, err
		}
		gi, err := loadIgnore(dir, opts.IgnoreFile)
		if err != nil {
			return nil, &RootError{Root: root, Err: err}
		}
		abs[i], ignores[i] = dir, gi
	}

	found := make([][]Artifact, len(abs))
	g, ctx := errgroup.WithContext(ctx)
	for i, root := range abs {
		g.Go(func() error {
			arts, err := scan(ctx, root, ignores[i], opts, logger)
			if err != nil {
				return err
			}
			found[i] = arts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Artifact
	seen := make(map[string]string)
	for _, arts := range found {
		for _, a := range arts {
			if first, dup := seen[a.Name]; dup {
				logger.Debug("duplicate artifact dropped", "module", a.Name, "path", a.Path, "kept", first)
				continue
			}
			seen[a.Name] = a.Path
			out = append(out, a)
		}
	}
	return out, nil
}

func checkRoot(root string) (string, error) {
	dir, err := filepath.Abs(root)
	if err != nil {
		return "", &RootError{Root: root, Err: err}
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &RootError{Root: root, Err: errors.New("directory does not exist")}
		}
		return "", &RootError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return "", &RootError{Root: root, Err: errors.New("not a directory")}
	}
	return dir, nil
}

func scan(ctx context.Context, root string, gi *ignore.GitIgnore, opts Options, logger *log.Logger) ([]Artifact, error) {
	var arts []Artifact
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return &LoadError{Path: p, Err: err}
		}
		if d.IsDir() {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		name := d.Name()

		if d.IsDir() {
			if p == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if ok, _ := doublestar.Match(opts.Glob, name); !ok {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		modPath, err := readModulePath(p)
		if err != nil {
			return err
		}
		if IsResourceContainer(modPath) {
			logger.Debug("resource container skipped", "module", modPath, "path", p)
			return nil
		}
		if !included(modPath, opts.Include) {
			return nil
		}

		arts = append(arts, Artifact{
			Name: modPath,
			Path: p,
			Dir:  filepath.Dir(p),
			Root: root,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return arts, nil
}

// readModulePath returns the module path declared in a go.mod file.
func readModulePath(p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", &LoadError{Path: p, Err: err}
	}
	f, err := modfile.ParseLax(p, data, nil)
	if err != nil {
		return "", &LoadError{Path: p, Err: err}
	}
	if f.Module == nil || f.Module.Mod.Path == "" {
		return "", &LoadError{Path: p, Err: errors.New("module directive not found")}
	}
	return f.Module.Mod.Path, nil
}

func included(modPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, modPath); ok {
			return true
		}
	}
	return false
}

// loadIgnore compiles the ignore file at the root. A missing file, or name
// "-", means nothing is ignored.
func loadIgnore(root, name string) (*ignore.GitIgnore, error) {
	if name == "-" {
		return nil, nil
	}
	p := filepath.Join(root, name)
	gi, err := ignore.CompileIgnoreFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("ignore file %s: %w", p, err)
	}
	return gi, nil
}
