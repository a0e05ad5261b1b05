// Package rule evaluates module isolation: members owned by a module must
// only be called from members owned by the same module.
package rule

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"go-modguard/internal/model"
	"go-modguard/internal/partition"
)

// Status is the verdict for one module.
type Status string

const (
	// Pass means the module has inbound calls and none cross its boundary.
	Pass Status = "pass"
	// Vacuous means nothing calls into the module at all. It counts as a pass.
	Vacuous Status = "vacuous"
	// Fail means at least one caller outside the module calls into it.
	Fail Status = "fail"
)

// Passed reports whether s counts as compliant.
func (s Status) Passed() bool { return s != Fail }

// Violation is a call edge crossing into a module from outside it.
type Violation struct {
	Module       partition.ModuleID
	Caller       string
	Callee       string
	CallerModule partition.ModuleID
	Site         string
}

// Result is the outcome of checking one module.
type Result struct {
	Module     partition.ModuleID
	Status     Status
	Members    int
	Inbound    int
	Violations []Violation
}

// Option configures Evaluate.
type Option func(*evaluator)

// WithExposed marks members that form a module's public surface. Calls into
// exposed members are never violations.
func WithExposed(exposed func(*model.Member) bool) Option {
	return func(e *evaluator) {
		e.exposed = exposed
	}
}

// ExposeNamespaces returns a predicate exposing every member whose namespace
// matches one of the doublestar patterns. Patterns must be valid.
func ExposeNamespaces(patterns []string) (func(*model.Member) bool, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("expose pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}
	return func(m *model.Member) bool {
		ns := m.Namespace()
		for _, p := range patterns {
			if ok, _ := doublestar.Match(p, ns); ok {
				return true
			}
		}
		return false
	}, nil
}

type evaluator struct {
	exposed func(*model.Member) bool
}

// Evaluate checks every module of p against the call edges of m. All
// violations are collected; evaluation never stops early. Results are sorted
// by module id and violations by caller, then callee.
func Evaluate(m *model.Model, p *partition.Partition, opts ...Option) []Result {
	e := &evaluator{}
	for _, opt := range opts {
		opt(e)
	}

	inbound := make(map[partition.ModuleID][]model.CallEdge)
	for _, edge := range m.Calls() {
		if owner, ok := p.OwnerOf(edge.Callee); ok {
			inbound[owner] = append(inbound[owner], edge)
		}
	}

	results := make([]Result, 0, len(p.Modules()))
	for _, mod := range p.Modules() {
		results = append(results, e.check(m, p, mod, inbound[mod.ID]))
	}
	return results
}

func (e *evaluator) check(m *model.Model, p *partition.Partition, mod *partition.Module, edges []model.CallEdge) Result {
	res := Result{
		Module:  mod.ID,
		Members: len(mod.Members),
		Inbound: len(edges),
		Status:  Pass,
	}
	if len(edges) == 0 {
		res.Status = Vacuous
		return res
	}

	for _, edge := range edges {
		callerModule, _ := p.OwnerOf(edge.Caller)
		if callerModule == mod.ID {
			continue
		}
		if e.exposed != nil {
			if callee, ok := m.Member(edge.Callee); ok && e.exposed(callee) {
				continue
			}
		}
		res.Violations = append(res.Violations, Violation{
			Module:       mod.ID,
			Caller:       edge.Caller,
			Callee:       edge.Callee,
			CallerModule: callerModule,
			Site:         edge.Site,
		})
	}

	sort.Slice(res.Violations, func(i, j int) bool {
		a, b := res.Violations[i], res.Violations[j]
		if a.Caller != b.Caller {
			return a.Caller < b.Caller
		}
		return a.Callee < b.Callee
	})
	if len(res.Violations) > 0 {
		res.Status = Fail
	}
	return res
}
