package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"kubewarden-airgap/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	debug   = false
	noColor = false
)

// logLevel is raised to debug once --debug has been parsed.
var logLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)

func main() {
	logger, err := newConsoleLogger(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	initCommands(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logr.NewContext(ctx, zapr.NewLogger(logger))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kubewarden-airgap",
	Short: "Move a Kubewarden release into an air-gapped cluster",
	Long: `kubewarden-airgap moves a Kubewarden release into an air-gapped environment:
- list:    build the dependency manifest of the current release
- pull:    cache every image, policy and chart of a manifest
- push:    replay the cache into a private registry
- install: install the cached charts against that registry`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set debug mode globally so logStructuredError can check it
		cli.SetDebugMode(debug)
		if debug {
			logLevel.SetLevel(zap.DebugLevel)
		}
		cli.ConfigureColor(noColor)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logs and structured error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func initCommands(logger *zap.Logger) {
	rootCmd.AddCommand(cli.NewListCmd(logger))
	rootCmd.AddCommand(cli.NewPullCmd(logger))
	rootCmd.AddCommand(cli.NewPushCmd(logger))
	rootCmd.AddCommand(cli.NewInstallCmd(logger))
	rootCmd.AddCommand(cli.NewDiffCmd(logger))
	rootCmd.AddCommand(cli.NewConfigCmd())
}

// newConsoleLogger returns a human-friendly console logger on stderr, so
// that stdout only carries command output such as a listed manifest.
// Error level is the default so structured error logs still show.
func newConsoleLogger(level zap.AtomicLevel) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = level
	cfg.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "",
		CallerKey:      "",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	return cfg.Build()
}
