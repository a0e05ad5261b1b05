// Package model holds the structural model of a set of Go modules: the
// namespaces (package import paths), the types declared in them, their
// members and the call edges observed between members.
//
// A Model is built once by a Builder and is read-only afterwards.
package model

import "strings"

// DefaultSeparator separates namespace segments in Go import paths.
const DefaultSeparator = "/"

// TypeKind classifies a declared type.
type TypeKind string

const (
	KindStruct    TypeKind = "struct"
	KindInterface TypeKind = "interface"
	KindNamed     TypeKind = "named"
	// KindPackage is the pseudo type that owns a package's top-level functions.
	KindPackage TypeKind = "package"
)

// Namespace groups the types declared in one package.
type Namespace struct {
	Name string
	// Parent is the nearest enclosing namespace present in the model, or nil.
	Parent *Namespace
	Types  []*Type
}

// Type is a named entity declared in exactly one namespace.
type Type struct {
	Name      string
	FullName  string // namespace.Name, or namespace for KindPackage
	Kind      TypeKind
	Exported  bool
	Artifact  string
	Namespace *Namespace
	Members   []*Member
}

// Member is a function or method declared on exactly one Type.
type Member struct {
	Name     string
	FullName string // namespace.Type.Name or namespace.Name
	Exported bool
	File     string
	Line     int
	Type     *Type
}

// Namespace returns the name of the namespace the member's type lives in.
func (m *Member) Namespace() string {
	return m.Type.Namespace.Name
}

// CallEdge records that the body of Caller invokes Callee.
// Callee may name a function outside the model (unresolved).
type CallEdge struct {
	Caller  string
	Callee  string
	Dynamic bool   // dispatched through an interface or function value
	Site    string // file:line of one call site, may be empty
}

// Stats summarises the size of a model.
type Stats struct {
	Namespaces int `json:"namespaces" yaml:"namespaces"`
	Types      int `json:"types" yaml:"types"`
	Members    int `json:"members" yaml:"members"`
	Calls      int `json:"calls" yaml:"calls"`
	Unresolved int `json:"unresolved_calls" yaml:"unresolved_calls"`
}

// Model is an immutable snapshot of namespaces, types, members and calls.
type Model struct {
	sep        string
	namespaces []*Namespace
	nsByName   map[string]*Namespace
	types      []*Type
	members    []*Member
	byName     map[string]*Member
	calls      []CallEdge
	unresolved int
}

// Separator returns the namespace segment separator the model was built with.
func (m *Model) Separator() string { return m.sep }

// Namespaces returns all namespaces sorted by name.
func (m *Model) Namespaces() []*Namespace { return m.namespaces }

// Namespace looks up a namespace by its full name.
func (m *Model) Namespace(name string) (*Namespace, bool) {
	ns, ok := m.nsByName[name]
	return ns, ok
}

// Types returns all types sorted by full name.
func (m *Model) Types() []*Type { return m.types }

// Members returns all members sorted by full name.
func (m *Model) Members() []*Member { return m.members }

// Member looks up a member by its full name.
func (m *Model) Member(fullName string) (*Member, bool) {
	mem, ok := m.byName[fullName]
	return mem, ok
}

// Calls returns the call edges sorted by caller, then callee.
func (m *Model) Calls() []CallEdge { return m.calls }

// Stats reports the size of the model.
func (m *Model) Stats() Stats {
	return Stats{
		Namespaces: len(m.namespaces),
		Types:      len(m.types),
		Members:    len(m.members),
		Calls:      len(m.calls),
		Unresolved: m.unresolved,
	}
}

// Nested reports whether namespace child is nested under (or equal to) parent.
func Nested(child, parent, sep string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+sep)
}

// TypeFullName builds the full name of a type. The package pseudo type is
// named after its namespace.
func TypeFullName(namespace, name string) string {
	if name == "" {
		return namespace
	}
	return namespace + "." + name
}

// MemberFullName builds the full name of a member, matching the naming used
// by the call graph collector.
func MemberFullName(namespace, typeName, name string) string {
	return TypeFullName(namespace, typeName) + "." + name
}
