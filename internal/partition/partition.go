// Package partition derives modules from the namespaces of a model.
package partition

import (
	"sort"

	"go-modguard/internal/model"
)

// Module is a namespace-rooted group of members.
type Module struct {
	ID         ModuleID
	Namespaces []string
	Members    []*model.Member
}

// Partition maps members to the module that owns them.
type Partition struct {
	modules []*Module
	byID    map[ModuleID]*Module
	owner   map[string]ModuleID
}

// New partitions the members of m using id. Namespaces id does not place in
// a module are left out, and modules without members are not produced.
func New(m *model.Model, id Identity) *Partition {
	p := &Partition{
		byID:  make(map[ModuleID]*Module),
		owner: make(map[string]ModuleID),
	}

	for _, ns := range m.Namespaces() {
		mid, ok := id.ModuleOf(ns.Name)
		if !ok {
			continue
		}
		var owned []*model.Member
		for _, t := range ns.Types {
			owned = append(owned, t.Members...)
		}
		if len(owned) == 0 {
			continue
		}

		mod := p.byID[mid]
		if mod == nil {
			mod = &Module{ID: mid}
			p.byID[mid] = mod
			p.modules = append(p.modules, mod)
		}
		mod.Namespaces = append(mod.Namespaces, ns.Name)
		mod.Members = append(mod.Members, owned...)
		for _, mem := range owned {
			p.owner[mem.FullName] = mid
		}
	}

	sort.Slice(p.modules, func(i, j int) bool {
		return p.modules[i].ID < p.modules[j].ID
	})
	return p
}

// Modules returns the modules sorted by id.
func (p *Partition) Modules() []*Module { return p.modules }

// Module looks up a module by id.
func (p *Partition) Module(id ModuleID) (*Module, bool) {
	mod, ok := p.byID[id]
	return mod, ok
}

// OwnerOf returns the module owning the member with the given full name.
// Members outside any module, and names not in the model, have no owner.
func (p *Partition) OwnerOf(member string) (ModuleID, bool) {
	id, ok := p.owner[member]
	return id, ok
}
