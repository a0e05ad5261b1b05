package artifact

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"
)

// LoadMode is what the structural model needs from go/packages: syntax and
// full type information for building SSA, plus module info to tell an
// artifact's own packages from its dependencies.
const LoadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
	packages.NeedSyntax | packages.NeedTypesInfo | packages.NeedTypesSizes |
	packages.NeedModule

// Loaded is an artifact with its compiled package graph.
type Loaded struct {
	Artifact
	Packages []*packages.Package
}

// Own reports whether pkg belongs to the artifact rather than a dependency.
func (l *Loaded) Own(pkg *packages.Package) bool {
	if pkg.Module != nil {
		return pkg.Module.Path == l.Name
	}
	return pkg.PkgPath == l.Name || strings.HasPrefix(pkg.PkgPath, l.Name+"/")
}

// Load type-checks every package of the artifact. Any error in any package of
// the graph fails the load: a partial graph would hide calls.
func Load(ctx context.Context, a Artifact, logger *log.Logger) (*Loaded, error) {
	logger = orDiscard(logger)
	start := time.Now()

	cfg := &packages.Config{
		Context: ctx,
		Mode:    LoadMode,
		Dir:     a.Dir,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		return nil, &LoadError{Path: a.Path, Err: err}
	}

	var msgs []string
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			msgs = append(msgs, e.Error())
		}
	})
	if len(msgs) > 0 {
		return nil, &LoadError{
			Path: a.Path,
			Err:  fmt.Errorf("%d package error(s):\n  %s", len(msgs), strings.Join(msgs, "\n  ")),
		}
	}

	logger.Debug("artifact loaded", "module", a.Name, "packages", len(pkgs), "took", time.Since(start))
	return &Loaded{Artifact: a, Packages: pkgs}, nil
}

// LoadAll loads artifacts concurrently and returns them in input order.
// The first failure cancels the rest.
func LoadAll(ctx context.Context, arts []Artifact, logger *log.Logger) ([]*Loaded, error) {
	out := make([]*Loaded, len(arts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, a := range arts {
		g.Go(func() error {
			l, err := Load(ctx, a, logger)
			if err != nil {
				return err
			}
			out[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
