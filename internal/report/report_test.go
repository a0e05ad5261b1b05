package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"go-modguard/internal/rule"
)

func failing() []rule.Result {
	return []rule.Result{
		{
			Module:  "app/modules/a",
			Status:  rule.Fail,
			Members: 2,
			Inbound: 3,
			Violations: []rule.Violation{
				{Module: "app/modules/a", Caller: "app/modules/b.Bar.Helper", Callee: "app/modules/a.Foo.DoWork", CallerModule: "app/modules/b"},
				{Module: "app/modules/a", Caller: "app/cmd.main", Callee: "app/modules/a.Foo.DoWork", Site: "cmd/main.go:12"},
			},
		},
		{Module: "app/modules/b", Status: rule.Vacuous, Members: 1},
		{Module: "app/modules/c", Status: rule.Pass, Members: 4, Inbound: 2},
	}
}

func TestNewOutcome(t *testing.T) {
	r := New(failing(), Stats{Artifacts: 2})
	assert.Equal(t, Fail, r.Outcome)
	assert.False(t, r.Passed())
	assert.Equal(t, 3, r.Stats.Modules)
	assert.Equal(t, 2, r.Stats.Violations)
	assert.Equal(t, 2, r.Stats.Artifacts)
	assert.Len(t, r.Violations(), 2)
	assert.Equal(t, 1, r.Count(rule.Vacuous))

	ok := New(failing()[1:], Stats{})
	assert.Equal(t, Pass, ok.Outcome)
	assert.Empty(t, ok.Violations())

	empty := New(nil, Stats{})
	assert.True(t, empty.Passed(), "no modules at all is a pass")
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, New(failing(), Stats{}), Text, Options{NoColor: true}))

	out := buf.String()
	assert.Contains(t, out, "module isolation: FAIL")
	assert.Contains(t, out, "app/modules/b.Bar.Helper -> app/modules/a.Foo.DoWork  caller module: app/modules/b")
	assert.Contains(t, out, "app/cmd.main -> app/modules/a.Foo.DoWork  caller module: none")
	assert.Contains(t, out, "at cmd/main.go:12")
	assert.NotContains(t, out, "app/modules/c", "passing modules are listed only in verbose mode")

	buf.Reset()
	require.NoError(t, Write(&buf, New(failing(), Stats{}), Text, Options{NoColor: true, Verbose: true}))
	assert.Contains(t, buf.String(), "app/modules/c (pass, 4 members, 2 inbound calls)")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, New(failing(), Stats{Artifacts: 1}), JSON, Options{}))

	var got struct {
		Outcome string `json:"outcome"`
		Stats   struct {
			Artifacts  int `json:"artifacts"`
			Violations int `json:"violations"`
		} `json:"stats"`
		Modules []struct {
			Module     string `json:"module"`
			Violations []struct {
				CallerModule string `json:"caller_module"`
			} `json:"violations"`
		} `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "fail", got.Outcome)
	assert.Equal(t, 1, got.Stats.Artifacts)
	assert.Equal(t, 2, got.Stats.Violations)
	require.Len(t, got.Modules, 3)
	require.Len(t, got.Modules[0].Violations, 2)
	assert.Equal(t, "app/modules/b", got.Modules[0].Violations[0].CallerModule)
	assert.Equal(t, NoModule, got.Modules[0].Violations[1].CallerModule)
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, New(failing(), Stats{}), YAML, Options{}))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "fail", got["outcome"])
	assert.Contains(t, buf.String(), "caller_module: none")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": Text, "TEXT": Text, " json ": JSON, "yaml": YAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}
