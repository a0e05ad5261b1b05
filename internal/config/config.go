// Package config loads modguard settings from defaults, an optional config
// file, MODGUARD_* environment variables and command-line flags, and
// resolves the search roots for the pipeline the check runs in.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"go-modguard/internal/artifact"
	"go-modguard/internal/collect"
	"go-modguard/internal/partition"
	"go-modguard/internal/report"
)

const (
	// AppName is the application name.
	AppName = "modguard"
	// ConfigFileName is the config file looked up in the working directory,
	// without extension.
	ConfigFileName = ".modguard"
	// EnvPrefix prefixes environment overrides, e.g. MODGUARD_MODULE_ROOT.
	EnvPrefix = "MODGUARD"
)

// Config holds every setting of a check run.
type Config struct {
	Dirs          []string `mapstructure:"dirs"`
	CIDirs        []string `mapstructure:"ci_dirs"`
	Glob          string   `mapstructure:"glob"`
	Include       []string `mapstructure:"include"`
	IgnoreFile    string   `mapstructure:"ignore_file"`
	ModuleRoot    string   `mapstructure:"module_root"`
	ModulePattern string   `mapstructure:"module_pattern"`
	Expose        []string `mapstructure:"expose"`
	Algorithm     string   `mapstructure:"algorithm"`
	Format        string   `mapstructure:"format"`
	NoColor       bool     `mapstructure:"no_color"`
	Verbose       bool     `mapstructure:"verbose"`
	PipelineType  string   `mapstructure:"pipeline_type"`
	ArtifactsDir  string   `mapstructure:"artifacts_dir"`
	MetricsFile   string   `mapstructure:"metrics_file"`
	Neo4j         Neo4j    `mapstructure:"neo4j"`
}

// Neo4j configures the optional graph export.
type Neo4j struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Clean    bool   `mapstructure:"clean"`
}

// Enabled reports whether the export is configured.
func (n Neo4j) Enabled() bool {
	return n.URI != "" && n.Password != ""
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Dirs:       []string{"."},
		Glob:       artifact.DefaultGlob,
		IgnoreFile: artifact.DefaultIgnoreFile,
		Algorithm:  string(collect.VTA),
		Format:     string(report.Text),
		Neo4j: Neo4j{
			URI:  "bolt://localhost:7687",
			User: "neo4j",
		},
	}
}

// New returns a viper instance primed with defaults and environment
// bindings. Flags can be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("dirs", d.Dirs)
	v.SetDefault("ci_dirs", d.CIDirs)
	v.SetDefault("glob", d.Glob)
	v.SetDefault("include", d.Include)
	v.SetDefault("ignore_file", d.IgnoreFile)
	v.SetDefault("module_root", d.ModuleRoot)
	v.SetDefault("module_pattern", d.ModulePattern)
	v.SetDefault("expose", d.Expose)
	v.SetDefault("algorithm", d.Algorithm)
	v.SetDefault("format", d.Format)
	v.SetDefault("no_color", d.NoColor)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("pipeline_type", d.PipelineType)
	v.SetDefault("artifacts_dir", d.ArtifactsDir)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("neo4j.uri", d.Neo4j.URI)
	v.SetDefault("neo4j.user", d.Neo4j.User)
	v.SetDefault("neo4j.password", d.Neo4j.Password)
	v.SetDefault("neo4j.clean", d.Neo4j.Clean)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// CI systems set these without our prefix.
	_ = v.BindEnv("pipeline_type", EnvPrefix+"_PIPELINE_TYPE", "PIPELINE_TYPE")
	_ = v.BindEnv("artifacts_dir", EnvPrefix+"_ARTIFACTS_DIR", "ARTIFACTS_DIR")
	return v
}

// Load reads the config file into v and decodes the result. An explicit path
// must exist; otherwise .modguard.{yaml,yml,json,toml} in the working
// directory is used when present.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &Error{Key: "config", Err: fmt.Errorf("read %s: %w", path, err)}
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, &Error{Key: "config", Err: err}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Key: "config", Err: fmt.Errorf("decode: %w", err)}
	}
	return &cfg, nil
}

// Validate checks settings that do not depend on the filesystem.
func (c *Config) Validate() error {
	if _, err := c.Identity(); err != nil {
		return err
	}
	if _, err := collect.ParseAlgorithm(c.Algorithm); err != nil {
		return &Error{Key: "algorithm", Err: err}
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return &Error{Key: "format", Err: err}
	}
	return nil
}

// Identity builds the module identity from module_root or module_pattern.
// Exactly one of them must be set.
func (c *Config) Identity() (partition.Identity, error) {
	switch {
	case c.ModuleRoot != "" && c.ModulePattern != "":
		return nil, &Error{Key: "module_root", Err: errors.New("module_root and module_pattern are mutually exclusive")}
	case c.ModuleRoot != "":
		root := strings.TrimRight(strings.TrimSpace(c.ModuleRoot), "/")
		if root == "" {
			return nil, &Error{Key: "module_root", Err: fmt.Errorf("%q names no namespace", c.ModuleRoot)}
		}
		return partition.Prefix{Root: root, Sep: "/"}, nil
	case c.ModulePattern != "":
		re, err := regexp.Compile(c.ModulePattern)
		if err != nil {
			return nil, &Error{Key: "module_pattern", Err: err}
		}
		return partition.Regexp(re), nil
	default:
		return nil, &Error{Key: "module_root", Err: errors.New("one of module_root or module_pattern is required")}
	}
}

// Roots returns the search-root resolver for the configured pipeline.
func (c *Config) Roots() Resolver {
	return PipelineRoots{
		Type:         c.PipelineType,
		Dirs:         c.Dirs,
		CIDirs:       c.CIDirs,
		ArtifactsDir: c.ArtifactsDir,
	}
}
