package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-modguard/internal/partition"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"."}, cfg.Dirs)
	assert.Equal(t, "go.mod", cfg.Glob)
	assert.Equal(t, ".modguardignore", cfg.IgnoreFile)
	assert.Equal(t, "vta", cfg.Algorithm)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.False(t, cfg.Neo4j.Enabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yml := `dirs: [build/out, build/extra]
module_root: example.com/shop/modules
expose:
  - "**/api"
neo4j:
  password: secret
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".modguard.yaml"), []byte(yml), 0o644))
	t.Setenv("MODGUARD_ALGORITHM", "cha")
	t.Setenv("PIPELINE_TYPE", "nightly")
	t.Setenv("MODGUARD_ARTIFACTS_DIR", "/srv/artifacts")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"build/out", "build/extra"}, cfg.Dirs)
	assert.Equal(t, "example.com/shop/modules", cfg.ModuleRoot)
	assert.Equal(t, []string{"**/api"}, cfg.Expose)
	assert.Equal(t, "cha", cfg.Algorithm)
	assert.True(t, cfg.Neo4j.Enabled())
	require.NoError(t, cfg.Validate())

	roots, err := cfg.Roots().Resolve()
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/artifacts"}, roots)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "config", cfgErr.Key)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{name: "root", mutate: func(c *Config) { c.ModuleRoot = "example.com/x" }},
		{name: "pattern", mutate: func(c *Config) { c.ModulePattern = `^example\.com/x/([^/]+)` }},
		{name: "neither", mutate: func(*Config) {}, wantKey: "module_root"},
		{
			name: "both",
			mutate: func(c *Config) {
				c.ModuleRoot = "a"
				c.ModulePattern = "b"
			},
			wantKey: "module_root",
		},
		{name: "bad pattern", mutate: func(c *Config) { c.ModulePattern = "(" }, wantKey: "module_pattern"},
		{name: "root is only a separator", mutate: func(c *Config) { c.ModuleRoot = "/" }, wantKey: "module_root"},
		{name: "root is blank", mutate: func(c *Config) { c.ModuleRoot = " //" }, wantKey: "module_root"},
		{
			name: "bad algorithm",
			mutate: func(c *Config) {
				c.ModuleRoot = "a"
				c.Algorithm = "rta"
			},
			wantKey: "algorithm",
		},
		{
			name: "bad format",
			mutate: func(c *Config) {
				c.ModuleRoot = "a"
				c.Format = "xml"
			},
			wantKey: "format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantKey == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantKey, cfgErr.Key)
		})
	}
}

func TestIdentityTrimsTrailingSeparator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModuleRoot = "example.com/shop/modules//"
	id, err := cfg.Identity()
	require.NoError(t, err)

	mod, ok := id.ModuleOf("example.com/shop/modules/orders/internal")
	require.True(t, ok)
	assert.Equal(t, partition.ModuleID("example.com/shop/modules/orders"), mod)
}

func TestPipelineRoots(t *testing.T) {
	tests := []struct {
		name    string
		roots   PipelineRoots
		want    []string
		wantKey string
	}{
		{name: "local", roots: PipelineRoots{Dirs: []string{"a", "b"}}, want: []string{"a", "b"}},
		{name: "local empty", roots: PipelineRoots{}, wantKey: "dirs"},
		{
			name:  "pull request",
			roots: PipelineRoots{Type: PipelinePullRequest, Dirs: []string{"a"}, CIDirs: []string{"ci"}},
			want:  []string{"ci"},
		},
		{
			name:  "pull request falls back",
			roots: PipelineRoots{Type: PipelinePullRequest, Dirs: []string{"a"}},
			want:  []string{"a"},
		},
		{
			name:  "nightly",
			roots: PipelineRoots{Type: PipelineNightly, Dirs: []string{"a"}, ArtifactsDir: "/art"},
			want:  []string{"/art"},
		},
		{name: "nightly without dir", roots: PipelineRoots{Type: PipelineNightly, Dirs: []string{"a"}}, wantKey: "artifacts_dir"},
		{name: "unknown", roots: PipelineRoots{Type: "weekly"}, wantKey: "pipeline_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.roots.Resolve()
			if tt.wantKey != "" {
				var cfgErr *Error
				require.True(t, errors.As(err, &cfgErr), "want config error, got %v", err)
				assert.Equal(t, tt.wantKey, cfgErr.Key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
