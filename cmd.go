package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"go-modguard/internal/artifact"
	"go-modguard/internal/check"
	"go-modguard/internal/collect"
	"go-modguard/internal/config"
	"go-modguard/internal/export"
	"go-modguard/internal/report"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

// Exit codes.
const (
	exitOK    = 0
	exitFail  = 1
	exitError = 2
)

// ExitError ends the command with Code. Err, when set, is logged.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// app holds what the subcommands share.
type app struct {
	v       *viper.Viper
	cfgFile string
	stdout  io.Writer
	stderr  io.Writer
	logger  *log.Logger
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{v: config.New(), stdout: stdout, stderr: stderr}
	a.logger = log.NewWithOptions(stderr, log.Options{Prefix: config.AppName})

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			a.logger.Error(exitErr.Err)
		}
		return exitErr.Code
	}
	a.logger.Error(err)
	return exitError
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Check that modules are only called from inside themselves",
		Long: `modguard loads Go modules found under the search roots, builds their
call graph and checks module isolation: a member owned by a module may only
be called by members owned by the same module.

Modules are the namespaces directly under --module-root, or the first
capture group of --module-pattern.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./.modguard.yaml)")
	pf.BoolP("verbose", "v", false, "enable debug logging and list passing modules")
	pf.Bool("no-color", false, "disable colored output")
	pf.String("glob", artifact.DefaultGlob, "file name pattern that marks an artifact")
	pf.StringSlice("include", nil, "only check modules whose path matches one of these patterns")
	pf.String("ignore-file", artifact.DefaultIgnoreFile, `gitignore-style file read from each root ("-" disables)`)
	pf.String("module-root", "", "namespace whose direct children are modules")
	pf.String("module-pattern", "", "regular expression whose first group names the module")
	pf.StringSlice("expose", nil, "namespace patterns any module may call")
	pf.String("algorithm", string(collect.VTA), "call graph algorithm (vta or cha)")
	a.bind(pf, "verbose", "no_color", "glob", "include", "ignore_file", "module_root", "module_pattern", "expose", "algorithm")

	root.AddCommand(a.checkCmd(), a.modulesCmd(), a.versionCmd())
	return root
}

// bind binds flags to config keys. Flag names use dashes where keys use
// underscores.
func (a *app) bind(flags *pflag.FlagSet, keys ...string) {
	for _, key := range keys {
		_ = a.v.BindPFlag(key, flags.Lookup(strings.ReplaceAll(key, "_", "-")))
	}
}

func (a *app) checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [dirs...]",
		Short: "Run the module isolation check",
		Long: `Run the module isolation check over the artifacts under dirs (or the
configured search roots) and print the report.

Exit status is 0 when every module passes, 1 when any module is called from
outside, and 2 on configuration or load errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, res, err := a.check(cmd.Context(), args)
			if err != nil {
				return err
			}

			format, _ := report.ParseFormat(cfg.Format)
			opts := report.Options{NoColor: cfg.NoColor, Verbose: cfg.Verbose}
			if err := report.Write(a.stdout, res.Report, format, opts); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			if cfg.MetricsFile != "" {
				if err := export.WriteMetrics(cfg.MetricsFile, res.Report); err != nil {
					return err
				}
				a.logger.Debug("metrics written", "path", cfg.MetricsFile)
			}
			if cfg.Neo4j.Enabled() {
				if err := a.exportGraph(cmd.Context(), cfg, res); err != nil {
					return err
				}
			}

			if !res.Report.Passed() {
				return &ExitError{Code: exitFail}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("format", "f", string(report.Text), "report format (text, json or yaml)")
	f.String("metrics-file", "", "write Prometheus metrics to this file")
	f.String("neo4j-uri", "bolt://localhost:7687", "Neo4j bolt URI")
	f.String("neo4j-user", "neo4j", "Neo4j username")
	f.String("neo4j-pass", "", "Neo4j password; export is skipped when empty")
	f.Bool("clean", false, "remove previously exported graph data before loading")
	a.bind(f, "format", "metrics_file")
	_ = a.v.BindPFlag("neo4j.uri", f.Lookup("neo4j-uri"))
	_ = a.v.BindPFlag("neo4j.user", f.Lookup("neo4j-user"))
	_ = a.v.BindPFlag("neo4j.password", f.Lookup("neo4j-pass"))
	_ = a.v.BindPFlag("neo4j.clean", f.Lookup("clean"))
	return cmd
}

func (a *app) modulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules [dirs...]",
		Short: "List the modules found and their sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, res, err := a.check(cmd.Context(), args)
			if err != nil {
				return err
			}

			r := lipgloss.NewRenderer(a.stdout)
			if cfg.NoColor {
				r = lipgloss.NewRenderer(io.Discard)
			}
			id := r.NewStyle().Bold(true)
			dim := r.NewStyle().Faint(true)

			mods := res.Partition.Modules()
			if len(mods) == 0 {
				fmt.Fprintln(a.stdout, dim.Render("no modules found"))
				return nil
			}
			for _, mod := range mods {
				fmt.Fprintf(a.stdout, "%s %s\n", id.Render(string(mod.ID)),
					dim.Render(fmt.Sprintf("(%d members, %d namespaces)", len(mod.Members), len(mod.Namespaces))))
			}
			return nil
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.stdout, "%s %s (commit: %s)\n", config.AppName, Version, Commit)
		},
	}
}

// check loads the configuration and runs the pipeline. Positional dirs
// replace the configured dirs; a pipeline type that resolves its own roots
// still wins over them.
func (a *app) check(ctx context.Context, dirs []string) (*config.Config, *check.Result, error) {
	if len(dirs) > 0 {
		a.v.Set("dirs", dirs)
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return nil, nil, &ExitError{Code: exitError, Err: err}
	}
	if cfg.Verbose {
		a.logger.SetLevel(log.DebugLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, &ExitError{Code: exitError, Err: err}
	}
	roots, err := cfg.Roots().Resolve()
	if err != nil {
		return nil, nil, &ExitError{Code: exitError, Err: err}
	}
	if len(dirs) > 0 && !slices.Equal(roots, dirs) {
		a.logger.Warn("positional dirs ignored for pipeline type",
			"pipeline_type", cfg.PipelineType, "dirs", dirs, "roots", roots)
	}
	identity, _ := cfg.Identity()
	algo, _ := collect.ParseAlgorithm(cfg.Algorithm)

	res, err := check.Run(ctx, check.Options{
		Roots: roots,
		Discover: artifact.Options{
			Glob:       cfg.Glob,
			Include:    cfg.Include,
			IgnoreFile: cfg.IgnoreFile,
		},
		Identity:  identity,
		Algorithm: algo,
		Expose:    cfg.Expose,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, nil, &ExitError{Code: exitError, Err: err}
	}
	return cfg, res, nil
}

func (a *app) exportGraph(ctx context.Context, cfg *config.Config, res *check.Result) error {
	exp, err := export.NewNeo4jExporter(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, a.logger)
	if err != nil {
		return &ExitError{Code: exitError, Err: err}
	}
	defer exp.Close(ctx)

	if cfg.Neo4j.Clean {
		if err := exp.Clean(ctx); err != nil {
			return &ExitError{Code: exitError, Err: err}
		}
	}
	if err := exp.CreateIndexes(ctx); err != nil {
		return &ExitError{Code: exitError, Err: err}
	}
	if err := exp.Export(ctx, res.Model, res.Partition, res.Report); err != nil {
		return &ExitError{Code: exitError, Err: err}
	}
	return nil
}
