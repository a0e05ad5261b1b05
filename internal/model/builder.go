package model

import (
	"sort"
	"strings"
)

// TypeDecl declares a type in a namespace.
type TypeDecl struct {
	Namespace string
	Name      string
	Kind      TypeKind
	Exported  bool
	Artifact  string
}

// MemberDecl declares a member. An empty Type places the member on the
// namespace's package pseudo type.
type MemberDecl struct {
	Namespace string
	Type      string
	Name      string
	Exported  bool
	File      string
	Line      int
	Artifact  string
}

// FullName returns the member's full name.
func (d MemberDecl) FullName() string {
	return MemberFullName(d.Namespace, d.Type, d.Name)
}

type edgeKey struct {
	caller, callee string
}

// Builder accumulates declarations and call edges and freezes them into a
// Model. The first declaration of a full name wins. A Builder is not safe
// for concurrent use.
type Builder struct {
	sep     string
	types   map[string]TypeDecl
	members map[string]MemberDecl
	calls   map[edgeKey]CallEdge
}

// NewBuilder returns a Builder for namespaces separated by sep.
// An empty sep means DefaultSeparator.
func NewBuilder(sep string) *Builder {
	if sep == "" {
		sep = DefaultSeparator
	}
	return &Builder{
		sep:     sep,
		types:   make(map[string]TypeDecl),
		members: make(map[string]MemberDecl),
		calls:   make(map[edgeKey]CallEdge),
	}
}

// AddType declares a type. It reports false if the full name was already
// declared.
func (b *Builder) AddType(d TypeDecl) bool {
	key := TypeFullName(d.Namespace, d.Name)
	if _, ok := b.types[key]; ok {
		return false
	}
	if d.Name == "" {
		d.Kind = KindPackage
	}
	b.types[key] = d
	return true
}

// AddMember declares a member. Its type is declared implicitly if missing.
// It reports false if the full name was already declared.
func (b *Builder) AddMember(d MemberDecl) bool {
	key := d.FullName()
	if _, ok := b.members[key]; ok {
		return false
	}
	kind := KindNamed
	if d.Type == "" {
		kind = KindPackage
	}
	b.AddType(TypeDecl{Namespace: d.Namespace, Name: d.Type, Kind: kind, Artifact: d.Artifact})
	b.members[key] = d
	return true
}

// HasMember reports whether a member with the given full name was declared.
func (b *Builder) HasMember(fullName string) bool {
	_, ok := b.members[fullName]
	return ok
}

// AddCall records a call edge. Repeated (caller, callee) pairs collapse into
// one edge that is dynamic if any occurrence was, keeping the smallest site.
func (b *Builder) AddCall(e CallEdge) {
	key := edgeKey{e.Caller, e.Callee}
	prev, ok := b.calls[key]
	if !ok {
		b.calls[key] = e
		return
	}
	prev.Dynamic = prev.Dynamic || e.Dynamic
	if prev.Site == "" || (e.Site != "" && e.Site < prev.Site) {
		prev.Site = e.Site
	}
	b.calls[key] = prev
}

// Build freezes the declarations into a Model. Call edges whose caller is
// not a declared member are dropped; edges to undeclared callees are kept
// and counted as unresolved.
func (b *Builder) Build() *Model {
	m := &Model{
		sep:      b.sep,
		nsByName: make(map[string]*Namespace),
		byName:   make(map[string]*Member, len(b.members)),
	}

	typeByName := make(map[string]*Type, len(b.types))
	for _, key := range sortedKeys(b.types) {
		d := b.types[key]
		ns := m.nsByName[d.Namespace]
		if ns == nil {
			ns = &Namespace{Name: d.Namespace}
			m.nsByName[d.Namespace] = ns
			m.namespaces = append(m.namespaces, ns)
		}
		t := &Type{
			Name:      d.Name,
			FullName:  key,
			Kind:      d.Kind,
			Exported:  d.Exported,
			Artifact:  d.Artifact,
			Namespace: ns,
		}
		ns.Types = append(ns.Types, t)
		m.types = append(m.types, t)
		typeByName[key] = t
	}

	sort.Slice(m.namespaces, func(i, j int) bool {
		return m.namespaces[i].Name < m.namespaces[j].Name
	})
	for _, ns := range m.namespaces {
		ns.Parent = m.enclosing(ns.Name)
	}

	for _, key := range sortedKeys(b.members) {
		d := b.members[key]
		t := typeByName[TypeFullName(d.Namespace, d.Type)]
		mem := &Member{
			Name:     d.Name,
			FullName: key,
			Exported: d.Exported,
			File:     d.File,
			Line:     d.Line,
			Type:     t,
		}
		t.Members = append(t.Members, mem)
		m.members = append(m.members, mem)
		m.byName[key] = mem
	}

	for _, e := range b.calls {
		if _, ok := m.byName[e.Caller]; !ok {
			continue
		}
		if _, ok := m.byName[e.Callee]; !ok {
			m.unresolved++
		}
		m.calls = append(m.calls, e)
	}
	sort.Slice(m.calls, func(i, j int) bool {
		if m.calls[i].Caller != m.calls[j].Caller {
			return m.calls[i].Caller < m.calls[j].Caller
		}
		return m.calls[i].Callee < m.calls[j].Callee
	})

	return m
}

// enclosing finds the nearest proper ancestor of name present in the model.
func (m *Model) enclosing(name string) *Namespace {
	for {
		i := strings.LastIndex(name, m.sep)
		if i <= 0 {
			return nil
		}
		name = name[:i]
		if ns, ok := m.nsByName[name]; ok {
			return ns
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
