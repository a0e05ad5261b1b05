package export

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"go-modguard/internal/report"
	"go-modguard/internal/rule"
)

const metricsNamespace = "modguard"

// Registry returns a registry holding gauges that describe r.
func Registry(r *report.Report) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	artifacts := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "artifacts",
		Help:      "Artifacts analysed by the last check.",
	})
	objects := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "model_objects",
		Help:      "Objects in the structural model by kind.",
	}, []string{"kind"})
	modules := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "modules",
		Help:      "Modules by check status.",
	}, []string{"status"})
	violations := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "violations",
		Help:      "Calls crossing a module boundary.",
	})
	passed := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "check_passed",
		Help:      "1 if the last check passed, 0 otherwise.",
	})
	lastRun := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the metrics were written.",
	})
	reg.MustRegister(artifacts, objects, modules, violations, passed, lastRun)

	s := r.Stats
	artifacts.Set(float64(s.Artifacts))
	objects.WithLabelValues("namespaces").Set(float64(s.Namespaces))
	objects.WithLabelValues("types").Set(float64(s.Types))
	objects.WithLabelValues("members").Set(float64(s.Members))
	objects.WithLabelValues("calls").Set(float64(s.Calls))
	objects.WithLabelValues("unresolved").Set(float64(s.Unresolved))
	for _, st := range []rule.Status{rule.Pass, rule.Vacuous, rule.Fail} {
		modules.WithLabelValues(string(st)).Set(float64(r.Count(st)))
	}
	violations.Set(float64(s.Violations))
	if r.Passed() {
		passed.Set(1)
	}
	lastRun.SetToCurrentTime()
	return reg
}

// WriteMetrics writes the metrics of r to path in the text exposition
// format, atomically, for node_exporter's textfile collector.
func WriteMetrics(path string, r *report.Report) error {
	if err := prometheus.WriteToTextfile(path, Registry(r)); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
