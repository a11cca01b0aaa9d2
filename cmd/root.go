package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmorgan81/modelsweep/internal/batch"
	"github.com/dmorgan81/modelsweep/internal/config"
	"github.com/dmorgan81/modelsweep/internal/inject"
	"github.com/dmorgan81/modelsweep/internal/log"
	"github.com/dmorgan81/modelsweep/internal/progress"
	"github.com/dmorgan81/modelsweep/internal/prompt"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type options struct {
	configPath  string
	modelsPath  string
	modelsParam string
	prompt      string
	output      string
	backend     string
	device      string
	precision   string
	seed        int64
	seedPolicy  string
	steps       int
	guidance    float64
	width       int
	height      int
	safety      bool
	bucket      string
	verbose     bool
	jsonLogs    bool
}

// NewRootCmd returns the modelsweep command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{})
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "modelsweep",
		Short:         "Render one prompt with every model in a registry",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Settings file (TOML)")
	flags.StringVarP(&opts.modelsPath, "models", "m", "", "Model registry JSON file")
	flags.StringVar(&opts.modelsParam, "models-param", "", "SSM parameter holding the model registry")
	flags.StringVarP(&opts.output, "output", "o", "", "Output folder")
	flags.BoolVarP(&opts.verbose, "verbose", "V", false, "Verbose output")
	flags.BoolVar(&opts.jsonLogs, "json-logs", false, "Log JSON lines instead of console output")

	rf := rootCmd.Flags()
	rf.StringVarP(&opts.prompt, "prompt", "p", "", "Prompt for image generation (read interactively when empty)")
	rf.StringVarP(&opts.backend, "backend", "b", "", "Inference backend ("+joined(config.Backends)+")")
	rf.StringVar(&opts.device, "device", "", "Execution device ("+joined(config.Devices)+")")
	rf.StringVar(&opts.precision, "precision", "", "Numeric precision ("+joined(config.Precisions)+")")
	rf.Int64Var(&opts.seed, "seed", 0, "Base random seed")
	rf.StringVar(&opts.seedPolicy, "seed-policy", "", "Seed handling across models ("+joined(config.SeedPolicies)+")")
	rf.IntVar(&opts.steps, "steps", 0, "Number of inference steps")
	rf.Float64Var(&opts.guidance, "guidance", 0, "Guidance scale")
	rf.IntVar(&opts.width, "width", 0, "Image width")
	rf.IntVar(&opts.height, "height", 0, "Image height")
	rf.BoolVar(&opts.safety, "safety-checker", false, "Keep the backend's content safety checker enabled")
	rf.StringVar(&opts.bucket, "bucket", "", "Also upload images to this S3 bucket")
	rootCmd.MarkPersistentFlagFilename("models", "json")
	rootCmd.MarkPersistentFlagFilename("config", "toml")
	rootCmd.MarkPersistentFlagDirname("output")

	rootCmd.AddCommand(newModelsCmd(opts))
	return rootCmd
}

// Execute runs the command tree and exits non-zero on fatal errors.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.New(rootCmd.ErrOrStderr(), slog.LevelInfo).Error("modelsweep failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func joined(s []string) string {
	return strings.Join(s, ", ")
}

func newLogger(w io.Writer, opts *options) *slog.Logger {
	level := lo.Ternary(opts.verbose, slog.LevelDebug, slog.LevelInfo)
	if opts.jsonLogs {
		return log.NewJSON(w, level)
	}
	return log.New(w, level)
}

// loadConfig layers explicitly set flags over the settings file.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			apply()
		}
	}
	set("models", func() { cfg.Registry.Path, cfg.Registry.Parameter = opts.modelsPath, "" })
	set("models-param", func() { cfg.Registry.Parameter = opts.modelsParam })
	set("output", func() { cfg.Output.Dir = opts.output })
	set("backend", func() { cfg.Pipeline.Backend = opts.backend })
	set("device", func() { cfg.Pipeline.Device = opts.device })
	set("precision", func() { cfg.Pipeline.Precision = opts.precision })
	set("seed", func() { cfg.Generation.Seed = opts.seed })
	set("seed-policy", func() { cfg.Generation.SeedPolicy = opts.seedPolicy })
	set("steps", func() { cfg.Generation.Steps = opts.steps })
	set("guidance", func() { cfg.Generation.Guidance = opts.guidance })
	set("width", func() { cfg.Generation.Width = opts.width })
	set("height", func() { cfg.Generation.Height = opts.height })
	set("safety-checker", func() { cfg.Pipeline.DisableSafetyChecker = !opts.safety })
	set("bucket", func() { cfg.Output.Bucket = opts.bucket })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runBatch(cmd *cobra.Command, opts *options) error {
	stderr := cmd.ErrOrStderr()
	logger := newLogger(stderr, opts)
	ctx := log.NewContext(cmd.Context(), logger)

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	text := opts.prompt
	if text == "" {
		r := &prompt.Reader{In: cmd.InOrStdin(), Out: stderr}
		if text, err = r.Read(ctx); err != nil {
			return err
		}
	}

	run := uuid.NewString()
	var bar batch.Progress = progress.Discard{}
	if !opts.jsonLogs {
		bar = progress.New(stderr, "Generating images")
	}

	injector := inject.Setup(ctx, cfg, bar, run)
	defer func() {
		if err := injector.Shutdown(); err != nil {
			logger.Debug("shutting down", "err", err)
		}
	}()

	runner, err := inject.Runner(injector)
	if err != nil {
		return err
	}

	logger.Info("starting run", "run", run, "backend", cfg.Pipeline.Backend, "device", cfg.Pipeline.Device)
	summary, err := runner.Run(ctx, text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted", "attempted", summary.Attempted)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d images saved to %s\n",
		len(summary.Succeeded), summary.Attempted, cfg.Output.Dir)
	return nil
}
