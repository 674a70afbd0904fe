package cli

// This file wires the pipeline phases to their tool backends and resolves
// the options shared by the list, pull, push and install commands.

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	helmcli "helm.sh/helm/v3/pkg/cli"

	"kubewarden-airgap/internal/airgap"
	"kubewarden-airgap/internal/cluster"
	"kubewarden-airgap/internal/tools"
	"kubewarden-airgap/pkg/manifest"
)

// PreflightChecker verifies a cluster before an install.
type PreflightChecker interface {
	Check(ctx context.Context, steps []airgap.InstallStep) (*cluster.Report, error)
}

// Backends builds the collaborators of each phase. They are called after the
// flags are resolved, once per command.
type Backends struct {
	Images    func(backend, workDir string) (airgap.ImageTransport, error)
	Policies  func() airgap.PolicyTransport
	Charts    func(workDir string) airgap.ChartClient
	Releases  func(token string) airgap.ReleaseAssets
	Preflight func() (PreflightChecker, error)
}

// DefaultBackends runs docker (or crane), kwctl and helm, and reads release
// assets from GitHub.
func DefaultBackends(logger *zap.Logger) Backends {
	return Backends{
		Images: func(backend, workDir string) (airgap.ImageTransport, error) {
			switch backend {
			case BackendDocker, "":
				return tools.NewDockerImages(tools.DefaultExecutor, workDir, logger), nil
			case BackendCrane:
				return tools.NewCraneImages(), nil
			default:
				return nil, newWithSentinel(ErrUnknownImageBackend,
					fmt.Sprintf("unknown image backend %q (want %s or %s)", backend, BackendDocker, BackendCrane))
			}
		},
		Policies: func() airgap.PolicyTransport {
			return tools.NewKwctlPolicies(tools.DefaultExecutor, logger)
		},
		Charts: func(workDir string) airgap.ChartClient {
			return tools.NewHelmClient(tools.DefaultExecutor, helmcli.New(), workDir, logger)
		},
		Releases: func(token string) airgap.ReleaseAssets {
			return tools.NewGitHubReleases(token, tools.DefaultReleaseOwner, tools.DefaultReleaseRepo, logger)
		},
		Preflight: func() (PreflightChecker, error) {
			settings := helmcli.New()
			client, err := cluster.NewClientset(settings.KubeConfig, settings.KubeContext)
			if err != nil {
				return nil, err
			}
			return cluster.NewPreflight(client, logger), nil
		},
	}
}

// AirgapManager runs the pipeline phases with injected dependencies.
type AirgapManager struct {
	backends   Backends
	printer    *Printer
	logger     *zap.Logger
	loadConfig func() (*CLIConfig, error)
}

// NewAirgapManager creates an AirgapManager with the given dependencies.
func NewAirgapManager(backends Backends, printer *Printer, logger *zap.Logger) *AirgapManager {
	return &AirgapManager{
		backends:   backends,
		printer:    printer,
		logger:     logger,
		loadConfig: LoadCLIConfig,
	}
}

// DefaultAirgapManager returns an AirgapManager using the default backends.
func DefaultAirgapManager(logger *zap.Logger) *AirgapManager {
	return NewAirgapManager(DefaultBackends(logger), DefaultPrinter, logger)
}

// fail prints msg, logs err in debug mode and returns it.
func (m *AirgapManager) fail(err error, msg string) error {
	m.printer.Error(fmt.Sprintf("%s: %v", msg, err))
	logStructuredError(m.logger, err, msg)
	return err
}

// phaseFlags are the flags shared by the phase commands.
type phaseFlags struct {
	manifest      string
	workDir       string
	registry      string
	insecure      bool
	dryRun        bool
	defaultLatest bool
	imageBackend  string
	githubToken   string
}

func (f *phaseFlags) bindWorkDir(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.workDir, "workdir", ".", "Directory holding the archives and chart files (env "+EnvWorkDir+")")
}

func (f *phaseFlags) bindManifest(cmd *cobra.Command, usage string) {
	cmd.Flags().StringVarP(&f.manifest, "manifest", "m", "", usage)
}

func (f *phaseFlags) bindRegistry(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.registry, "registry", "r", "", "Target registry host[:port] (env "+EnvRegistry+")")
	cmd.Flags().BoolVar(&f.insecure, "insecure", false, "Allow plain HTTP or unverified TLS towards the registry (env "+EnvInsecure+")")
}

func (f *phaseFlags) bindDryRun(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print every action instead of running it")
}

func (f *phaseFlags) bindImageBackend(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.imageBackend, "image-backend", BackendDocker, "Image transport: docker or crane (env "+EnvImageBackend+")")
}

// resolved is the outcome of layering flags over the loaded configuration.
type resolved struct {
	opts         airgap.Options
	imageBackend string
	githubToken  string
}

func (m *AirgapManager) resolve(cmd *cobra.Command, f *phaseFlags) (resolved, error) {
	cfg, err := m.loadConfig()
	if err != nil {
		return resolved{}, m.fail(err, "Failed to load configuration")
	}
	changed := cmd.Flags().Changed
	if changed("workdir") {
		cfg.WorkDir = f.workDir
	}
	if changed("registry") {
		cfg.Registry = f.registry
	}
	if changed("insecure") {
		cfg.Insecure = f.insecure
	}
	if changed("image-backend") {
		cfg.ImageBackend = f.imageBackend
	}
	if changed("github-token") {
		cfg.GitHubToken = f.githubToken
	}
	return resolved{
		opts: airgap.Options{
			Registry:      cfg.Registry,
			Insecure:      cfg.Insecure,
			DryRun:        f.dryRun,
			WorkDir:       cfg.WorkDir,
			DefaultLatest: f.defaultLatest,
		},
		imageBackend: cfg.ImageBackend,
		githubToken:  cfg.GitHubToken,
	}, nil
}

func (m *AirgapManager) requireManifest(path string) error {
	if path == "" {
		return m.fail(newWithSentinel(ErrManifestRequired, "a manifest file is required; pass --manifest FILE"), "Missing manifest")
	}
	return nil
}

func (m *AirgapManager) requireRegistry(opts airgap.Options) error {
	if opts.Registry == "" {
		return m.fail(newWithSentinel(ErrRegistryRequired,
			"a target registry is required; pass --registry, set "+EnvRegistry+" or run \"config set-registry\""), "Missing registry")
	}
	return nil
}

func (m *AirgapManager) loadManifest(path string) (*manifest.Manifest, error) {
	mf, err := manifest.Load(path)
	if err != nil {
		return nil, m.fail(err, "Failed to load manifest")
	}
	m.logger.Debug("manifest loaded",
		zap.String("path", path),
		zap.Int("images", len(mf.Images)),
		zap.Int("policies", len(mf.Policies)),
		zap.Int("charts", len(mf.Charts)))
	return mf, nil
}
