package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-modguard/internal/model"
	"go-modguard/internal/partition"
	"go-modguard/internal/report"
	"go-modguard/internal/rule"
)

const root = "app/modules"

type fixture struct {
	m *model.Model
	p *partition.Partition
	r *report.Report
}

// leaky builds module a called from module b and from a function outside
// any module.
func leaky(t *testing.T) fixture {
	t.Helper()
	b := model.NewBuilder("/")
	add := func(ns, typ, name string) string {
		d := model.MemberDecl{Namespace: ns, Type: typ, Name: name, File: "x.go", Line: 3}
		require.True(t, b.AddMember(d))
		return d.FullName()
	}
	doWork := add(root+"/a", "Foo", "DoWork")
	helper := add(root+"/b", "Bar", "Helper")
	main := add("app/cmd", "", "main")
	b.AddCall(model.CallEdge{Caller: helper, Callee: doWork, Site: "b/bar.go:7"})
	b.AddCall(model.CallEdge{Caller: main, Callee: doWork, Dynamic: true})

	m := b.Build()
	p := partition.New(m, partition.Prefix{Root: root})
	results := rule.Evaluate(m, p)
	return fixture{m: m, p: p, r: report.New(results, report.Stats{Stats: m.Stats(), Artifacts: 1})}
}

func TestNodeRows(t *testing.T) {
	f := leaky(t)

	pkgs := packageRows(f.m, "run")
	require.Len(t, pkgs, 3)
	assert.Equal(t, "app/cmd", pkgs[0]["path"])
	assert.Equal(t, "run", pkgs[0]["run_id"])

	types := typeRows(f.m, "run")
	require.Len(t, types, 3)
	assert.Equal(t, "app/cmd", types[0]["full_name"])
	assert.Equal(t, string(model.KindPackage), types[0]["kind"])

	members := memberRows(f.m, "run")
	require.Len(t, members, 3)
	assert.Equal(t, "app/cmd.main", members[0]["full_name"])
	assert.Equal(t, "app/cmd", members[0]["type"])
	assert.Equal(t, int64(3), members[0]["line"])

	calls := callRows(f.m, "run")
	require.Len(t, calls, 2)
	assert.Equal(t, true, calls[0]["dynamic"])
}

func TestModuleRows(t *testing.T) {
	f := leaky(t)

	rows := moduleRows(f.p, f.r, "run")
	require.Len(t, rows, 2)
	assert.Equal(t, root+"/a", rows[0]["id"])
	assert.Equal(t, string(rule.Fail), rows[0]["status"])
	assert.Equal(t, int64(2), rows[0]["inbound"])
	assert.Equal(t, []string{root + "/a"}, rows[0]["namespaces"])
	assert.Equal(t, string(rule.Vacuous), rows[1]["status"])
}

func TestViolationRows(t *testing.T) {
	f := leaky(t)

	rows := violationRows(f.r, "run")
	require.Len(t, rows, 2)
	assert.Equal(t, "app/cmd.main", rows[0]["caller"])
	assert.Equal(t, report.NoModule, rows[0]["caller_module"])
	assert.Equal(t, root+"/b.Bar.Helper", rows[1]["caller"])
	assert.Equal(t, root+"/b", rows[1]["caller_module"])
	assert.Equal(t, "b/bar.go:7", rows[1]["site"])
}

func TestRegistry(t *testing.T) {
	f := leaky(t)

	reg := Registry(f.r)
	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	// artifacts, 5 object kinds, 3 statuses, violations, passed, last run
	assert.Equal(t, 12, n)

	err = testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP modguard_violations Calls crossing a module boundary.
# TYPE modguard_violations gauge
modguard_violations 2
# HELP modguard_check_passed 1 if the last check passed, 0 otherwise.
# TYPE modguard_check_passed gauge
modguard_check_passed 0
`), "modguard_violations", "modguard_check_passed")
	assert.NoError(t, err)
}

func TestWriteMetrics(t *testing.T) {
	f := leaky(t)
	path := filepath.Join(t.TempDir(), "modguard.prom")

	require.NoError(t, WriteMetrics(path, f.r))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `modguard_modules{status="fail"} 1`)
	assert.Contains(t, text, `modguard_modules{status="vacuous"} 1`)
	assert.Contains(t, text, `modguard_model_objects{kind="members"} 3`)
	assert.Contains(t, text, "modguard_artifacts 1")
}

func TestWriteMetricsBadPath(t *testing.T) {
	f := leaky(t)
	err := WriteMetrics(filepath.Join(t.TempDir(), "missing", "x.prom"), f.r)
	assert.Error(t, err)
}
