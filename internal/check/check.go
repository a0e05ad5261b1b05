// Package check runs the module isolation check end to end: discover
// artifacts, load them, build the model, partition it and evaluate the rule.
package check

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"go-modguard/internal/artifact"
	"go-modguard/internal/collect"
	"go-modguard/internal/model"
	"go-modguard/internal/partition"
	"go-modguard/internal/report"
	"go-modguard/internal/rule"
)

// Options configure a run.
type Options struct {
	Roots     []string
	Discover  artifact.Options
	Identity  partition.Identity
	Algorithm collect.Algorithm
	// Expose lists namespace patterns whose members any module may call.
	Expose []string
	Logger *log.Logger
}

// Result carries the report together with the intermediate structures, for
// callers that export them.
type Result struct {
	Report    *report.Report
	Model     *model.Model
	Partition *partition.Partition
	Artifacts []artifact.Artifact
}

// Run performs one check. Configuration problems (roots, patterns) and load
// failures are returned as errors; rule violations are reported in the
// result, not as errors.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	exposed, err := rule.ExposeNamespaces(opts.Expose)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	discover := opts.Discover
	discover.Logger = logger
	arts, err := artifact.Discover(ctx, opts.Roots, discover)
	if err != nil {
		return nil, err
	}
	logger.Info("artifacts discovered", "count", len(arts), "roots", len(opts.Roots))

	loaded, err := artifact.LoadAll(ctx, arts, logger)
	if err != nil {
		return nil, err
	}

	m, err := collect.Build(ctx, loaded, collect.Options{Algorithm: opts.Algorithm, Logger: logger})
	if err != nil {
		return nil, err
	}
	stats := m.Stats()
	logger.Info("model built",
		"namespaces", stats.Namespaces,
		"types", stats.Types,
		"members", stats.Members,
		"calls", stats.Calls,
		"unresolved", stats.Unresolved)

	p := partition.New(m, opts.Identity)
	results := rule.Evaluate(m, p, rule.WithExposed(exposed))

	r := report.New(results, report.Stats{Stats: stats, Artifacts: len(arts)})
	logger.Info("check finished",
		"outcome", r.Outcome,
		"modules", r.Stats.Modules,
		"violations", r.Stats.Violations,
		"took", time.Since(start))

	return &Result{Report: r, Model: m, Partition: p, Artifacts: arts}, nil
}
