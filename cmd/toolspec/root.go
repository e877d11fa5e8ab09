package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	_ "github.com/wilhg/toolspec/pkg/adapters/llm/fake"
	_ "github.com/wilhg/toolspec/pkg/adapters/llm/gemini"
	_ "github.com/wilhg/toolspec/pkg/adapters/llm/openai"
	"github.com/wilhg/toolspec/pkg/config"
	"github.com/wilhg/toolspec/pkg/errmodel"
	"github.com/wilhg/toolspec/pkg/logging"
	tsotel "github.com/wilhg/toolspec/pkg/otel"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeResolution indicates the target module could not be resolved.
	ExitCodeResolution = 2
	// ExitCodeConfig indicates invalid configuration or arguments.
	ExitCodeConfig = 3
)

// app carries state shared by every command of one invocation.
type app struct {
	configPath string
	cfg        config.Config
	flags      *config.Config
	lookupEnv  func(string) (string, bool)
	shutdown   func(context.Context) error
}

func run(args []string) int {
	root := newRootCmd(&app{lookupEnv: os.LookupEnv})
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return getExitCode(err)
	}
	return ExitCodeSuccess
}

// getExitCode maps error categories to exit codes for scripting.
func getExitCode(err error) int {
	var ce *errmodel.Error
	if errors.As(err, &ce) {
		switch ce.Category {
		case errmodel.CategoryResolution:
			return ExitCodeResolution
		case errmodel.CategoryValidation:
			return ExitCodeConfig
		}
	}
	return ExitCodeError
}

func newRootCmd(a *app) *cobra.Command {
	d := config.Defaults()
	a.flags = &d
	root := &cobra.Command{
		Use:   "toolspec",
		Short: "Derive MCP tool and resource definitions from a library",
		Long: `toolspec walks a library's public surface (a Go package, or a pre-generated
descriptor catalogue), classifies each class's methods into MCP tools and
resources with an LLM backend, and falls back to name-derived tools when no
backend is available. Reports are printed as JSON.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           version,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.shutdown != nil {
				return a.shutdown(cmd.Context())
			}
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "toolspec version %s\n" .Version}}`)

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "config file (default $TOOLSPEC_CONFIG)")
	f.StringVar(&a.flags.Source, "source", d.Source, "descriptor source: go or manifest")
	f.StringVar(&a.flags.Manifest, "manifest", "", "descriptor catalogue (YAML or JSON) for --source manifest")
	f.StringVar(&a.flags.Dir, "dir", "", "directory the go command runs in")
	f.BoolVar(&a.flags.Recursive, "recursive", false, "also walk sub-packages of the target")
	f.StringSliceVar(&a.flags.BuildTags, "build-tags", nil, "build tags for loading Go packages")
	f.BoolVar(&a.flags.IncludePrivate, "include-private", false, "include private names")
	f.StringVar(&a.flags.Filter, "filter", "", "only classify methods matching this case-insensitive regex")
	f.StringVar(&a.flags.Provider, "provider", d.Provider, "analysis backend: openai, gemini, fake or none")
	f.StringVar(&a.flags.Model, "model", "", "backend model identifier")
	f.StringVar(&a.flags.APIKey, "api-key", "", "backend credential (default from the provider's environment variable)")
	f.IntVar(&a.flags.MaxRetries, "max-retries", d.MaxRetries, "attempts per group before falling back")
	f.DurationVar(&a.flags.BackoffUnit, "backoff-unit", d.BackoffUnit, "base wait between attempts; the i-th retry waits 2^i units")
	f.StringVar(&a.flags.Store, "store", "", "run store DSN (sqlite:... or postgres://...)")
	f.StringVar(&a.flags.PromptsDir, "prompts-dir", "", "directory of <name>.tmpl prompt overrides")
	f.StringVar(&a.flags.LogLevel, "log-level", d.LogLevel, "debug, info, warn or error")
	f.BoolVar(&a.flags.LogJSON, "log-json", false, "emit logs as JSON")
	f.BoolVar(&a.flags.Trace, "trace", false, "export trace spans to stderr")

	root.AddCommand(
		newDiscoverCmd(a),
		newConvertCmd(a),
		newAnalyzeCmd(a),
		newRunsCmd(a),
		newMCPCmd(a),
		newPromptsCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup layers defaults, the config file, the environment and changed flags,
// then initializes logging and tracing.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	path := a.configPath
	if path == "" {
		path, _ = a.lookupEnv("TOOLSPEC_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(a.lookupEnv); err != nil {
		return err
	}
	applyFlags(cmd.Flags(), a.flags, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := logging.ParseLevel(cfg.LogLevel)
	logging.Init(level, cmd.ErrOrStderr(), cfg.LogJSON)
	logging.Debug("cli", "effective config: %+v", cfg.Redacted())

	if cfg.Trace {
		shutdown, err := tsotel.Init(cmd.Context(), tsotel.Config{ServiceVersion: version, UseStdout: true, Writer: cmd.ErrOrStderr()})
		if err != nil {
			return err
		}
		a.shutdown = shutdown
	}
	return nil
}

func applyFlags(fs *pflag.FlagSet, from, to *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("source", func() { to.Source = from.Source })
	set("manifest", func() { to.Manifest = from.Manifest })
	set("dir", func() { to.Dir = from.Dir })
	set("recursive", func() { to.Recursive = from.Recursive })
	set("build-tags", func() { to.BuildTags = from.BuildTags })
	set("include-private", func() { to.IncludePrivate = from.IncludePrivate })
	set("filter", func() { to.Filter = from.Filter })
	set("provider", func() { to.Provider = from.Provider })
	set("model", func() { to.Model = from.Model })
	set("api-key", func() { to.APIKey = from.APIKey })
	set("max-retries", func() { to.MaxRetries = from.MaxRetries })
	set("backoff-unit", func() { to.BackoffUnit = from.BackoffUnit })
	set("store", func() { to.Store = from.Store })
	set("prompts-dir", func() { to.PromptsDir = from.PromptsDir })
	set("log-level", func() { to.LogLevel = from.LogLevel })
	set("log-json", func() { to.LogJSON = from.LogJSON })
	set("trace", func() { to.Trace = from.Trace })
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
