// Package collect extracts types, members and call edges from loaded
// artifacts into a model.Builder, using SSA and a whole-program call graph.
package collect

import (
	"fmt"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"go-modguard/internal/artifact"
	"go-modguard/internal/model"
)

// Algorithm selects how dynamic calls are resolved.
type Algorithm string

const (
	// VTA (variable type analysis) resolves interface and function value
	// calls to the types that can actually flow there.
	VTA Algorithm = "vta"
	// CHA (class hierarchy analysis) resolves an interface call to every
	// method that implements it. Faster, more edges.
	CHA Algorithm = "cha"
)

// ParseAlgorithm validates an algorithm name. Empty means VTA.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(s)); a {
	case "":
		return VTA, nil
	case VTA, CHA:
		return a, nil
	default:
		return "", fmt.Errorf("unknown call graph algorithm %q (want vta or cha)", s)
	}
}

// Collector gathers the types, members and calls of one artifact.
type Collector struct {
	Loaded    *artifact.Loaded
	Algorithm Algorithm

	own map[string]bool
}

// NewCollector returns a Collector for the artifact's own packages.
func NewCollector(l *artifact.Loaded, algo Algorithm) *Collector {
	if algo == "" {
		algo = VTA
	}
	c := &Collector{Loaded: l, Algorithm: algo, own: make(map[string]bool)}
	packages.Visit(l.Packages, nil, func(pkg *packages.Package) {
		if l.Own(pkg) {
			c.own[pkg.PkgPath] = true
		}
	})
	return c
}

// relPath makes a file name relative to the artifact directory.
func (c *Collector) relPath(filename string) string {
	if rel, err := filepath.Rel(c.Loaded.Dir, filename); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filename
}

func (c *Collector) position(fset *token.FileSet, pos token.Pos) (string, int) {
	if !pos.IsValid() {
		return "", 0
	}
	p := fset.Position(pos)
	return c.relPath(p.Filename), p.Line
}

// CollectTypes declares every package-level named type, its concrete
// methods, and every package-level function of the artifact's packages.
func (c *Collector) CollectTypes(b *model.Builder) {
	packages.Visit(c.Loaded.Packages, nil, func(pkg *packages.Package) {
		if !c.own[pkg.PkgPath] || pkg.Types == nil {
			return
		}

		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			switch o := scope.Lookup(name).(type) {
			case *types.TypeName:
				if o.IsAlias() {
					continue
				}
				b.AddType(model.TypeDecl{
					Namespace: pkg.PkgPath,
					Name:      name,
					Kind:      kindOf(o.Type()),
					Exported:  o.Exported(),
					Artifact:  c.Loaded.Name,
				})
				named, ok := o.Type().(*types.Named)
				if !ok {
					continue
				}
				for i := 0; i < named.NumMethods(); i++ {
					m := named.Method(i)
					file, line := c.position(pkg.Fset, m.Pos())
					b.AddMember(model.MemberDecl{
						Namespace: pkg.PkgPath,
						Type:      name,
						Name:      m.Name(),
						Exported:  m.Exported(),
						File:      file,
						Line:      line,
						Artifact:  c.Loaded.Name,
					})
				}

			case *types.Func:
				file, line := c.position(pkg.Fset, o.Pos())
				b.AddMember(model.MemberDecl{
					Namespace: pkg.PkgPath,
					Name:      name,
					Exported:  o.Exported(),
					File:      file,
					Line:      line,
					Artifact:  c.Loaded.Name,
				})
			}
		}
	})
}

func kindOf(t types.Type) model.TypeKind {
	switch t.Underlying().(type) {
	case *types.Struct:
		return model.KindStruct
	case *types.Interface:
		return model.KindInterface
	default:
		return model.KindNamed
	}
}

const (
	packageInit  = "package initializer"
	fromTypeInfo = "from type information"
	instanceOf   = "instance of "
)

// isGlue reports whether fn is compiler-generated code standing between a
// call site and the function it reaches: method wrappers (including
// promotion through embedded fields), thunks, bound method closures and
// instantiation wrappers.
func isGlue(fn *ssa.Function) bool {
	s := fn.Synthetic
	return s != "" && s != packageInit && s != fromTypeInfo && !strings.HasPrefix(s, instanceOf)
}

// CollectCalls builds SSA for the artifact, computes the call graph and
// records every edge whose caller belongs to the artifact. Callers that the
// type scan did not see (package initialisers) are declared on the fly.
// Glue functions never appear as callers; a call into glue is recorded
// against the functions the glue reaches.
func (c *Collector) CollectCalls(b *model.Builder) {
	prog, ssaPkgs := ssautil.AllPackages(c.Loaded.Packages, ssa.InstantiateGenerics)
	for _, p := range ssaPkgs {
		if p != nil {
			p.Build()
		}
	}

	var cg *callgraph.Graph
	switch c.Algorithm {
	case CHA:
		cg = cha.CallGraph(prog)
	default:
		cg = vta.CallGraph(ssautil.AllFunctions(prog), nil)
	}

	_ = callgraph.GraphVisitEdges(cg, func(edge *callgraph.Edge) error {
		if edge.Caller.Func == nil || edge.Callee.Func == nil || isGlue(edge.Caller.Func) {
			return nil
		}
		// Initialisers of imported packages run implicitly.
		if edge.Callee.Func.Synthetic == packageInit {
			return nil
		}
		caller, ok := c.declOf(prog, edge.Caller.Func)
		if !ok || !c.own[caller.Namespace] {
			return nil
		}

		e := model.CallEdge{Caller: caller.FullName()}
		if edge.Site != nil {
			e.Dynamic = edge.Site.Common().StaticCallee() == nil
			file, line := c.position(prog.Fset, edge.Site.Pos())
			if file != "" {
				e.Site = fmt.Sprintf("%s:%d", file, line)
			}
		}

		for _, target := range reached(edge.Callee) {
			callee, ok := c.declOf(prog, target)
			if !ok {
				continue
			}
			// A function running its own closure is not a call between members.
			if target.Parent() != nil && callee.FullName() == caller.FullName() {
				continue
			}
			if !b.HasMember(caller.FullName()) {
				b.AddMember(caller)
			}
			if c.own[callee.Namespace] && !b.HasMember(callee.FullName()) {
				b.AddMember(callee)
			}
			e.Callee = callee.FullName()
			b.AddCall(e)
		}
		return nil
	})
}

// reached returns the functions a call into n actually runs: n itself, or
// for glue, whatever the glue calls, following chains of glue. Glue with no
// outgoing edges is returned as is and resolved by declOf.
func reached(n *callgraph.Node) []*ssa.Function {
	var out []*ssa.Function
	seen := make(map[*callgraph.Node]bool)
	var walk func(*callgraph.Node)
	walk = func(n *callgraph.Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		if !isGlue(n.Func) || len(n.Out) == 0 {
			out = append(out, n.Func)
			return
		}
		for _, e := range n.Out {
			if e.Callee.Func != nil {
				walk(e.Callee)
			}
		}
	}
	walk(n)
	return out
}

// declOf names the declared member an SSA function stands for. Closures map
// to their enclosing function, generic instances to their origin, and
// wrappers to the concrete method they wrap. Interface methods have no body
// and are never members.
func (c *Collector) declOf(prog *ssa.Program, fn *ssa.Function) (model.MemberDecl, bool) {
	for fn.Parent() != nil {
		fn = fn.Parent()
	}
	if origin := fn.Origin(); origin != nil {
		fn = origin
	}

	if obj, ok := fn.Object().(*types.Func); ok && obj.Pkg() != nil {
		if isInterfaceMethod(obj) {
			return model.MemberDecl{}, false
		}
		d := model.MemberDecl{
			Namespace: obj.Pkg().Path(),
			Type:      receiverName(obj),
			Name:      obj.Name(),
			Exported:  obj.Exported(),
			Artifact:  c.Loaded.Name,
		}
		d.File, d.Line = c.position(prog.Fset, obj.Pos())
		return d, true
	}

	if fn.Pkg == nil {
		return model.MemberDecl{}, false
	}
	d := model.MemberDecl{
		Namespace: fn.Pkg.Pkg.Path(),
		Name:      fn.Name(),
		Artifact:  c.Loaded.Name,
	}
	d.File, d.Line = c.position(prog.Fset, fn.Pos())
	return d, true
}

func isInterfaceMethod(fn *types.Func) bool {
	sig, ok := fn.Type().(*types.Signature)
	return ok && sig.Recv() != nil && types.IsInterface(sig.Recv().Type())
}

// receiverName returns the name of the named type a method is declared on,
// or "" for plain functions.
func receiverName(fn *types.Func) string {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return ""
	}
	t := types.Unalias(sig.Recv().Type())
	if ptr, ok := t.(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return named.Obj().Name()
	}
	return ""
}
