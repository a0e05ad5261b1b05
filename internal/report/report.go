// Package report aggregates per-module rule results into one outcome and
// renders it for consoles and CI logs.
package report

import (
	"go-modguard/internal/model"
	"go-modguard/internal/rule"
)

// Outcome is the overall verdict of a run.
type Outcome string

const (
	Pass Outcome = "pass"
	Fail Outcome = "fail"
)

// NoModule is shown for callers that belong to no module.
const NoModule = "none"

// Stats describes what the run looked at.
type Stats struct {
	model.Stats `yaml:",inline"`

	Artifacts  int `json:"artifacts" yaml:"artifacts"`
	Modules    int `json:"modules" yaml:"modules"`
	Violations int `json:"violations" yaml:"violations"`
}

// Report is the aggregated result of one check.
type Report struct {
	Outcome Outcome
	Stats   Stats
	Modules []rule.Result
}

// New aggregates results. The outcome is Fail if any module failed.
func New(results []rule.Result, stats Stats) *Report {
	r := &Report{Outcome: Pass, Modules: results, Stats: stats}
	r.Stats.Modules = len(results)
	r.Stats.Violations = 0
	for _, res := range results {
		if !res.Status.Passed() {
			r.Outcome = Fail
		}
		r.Stats.Violations += len(res.Violations)
	}
	return r
}

// Passed reports whether the run passed.
func (r *Report) Passed() bool { return r.Outcome == Pass }

// Violations returns every violation in module order.
func (r *Report) Violations() []rule.Violation {
	var out []rule.Violation
	for _, res := range r.Modules {
		out = append(out, res.Violations...)
	}
	return out
}

// Count returns how many modules ended with status s.
func (r *Report) Count(s rule.Status) int {
	n := 0
	for _, res := range r.Modules {
		if res.Status == s {
			n++
		}
	}
	return n
}

// CallerModule formats the caller's module of v, or NoModule.
func CallerModule(v rule.Violation) string {
	if v.CallerModule == "" {
		return NoModule
	}
	return string(v.CallerModule)
}
