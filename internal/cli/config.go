package cli

// This file implements CLI configuration resolution and the "config" command.
// Precedence is flags > environment (KUBEWARDEN_AIRGAP_*) > config file.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"kubewarden-airgap/pkg/reference"
)

// Environment variables read by LoadCLIConfig.
const (
	EnvRegistry     = "KUBEWARDEN_AIRGAP_REGISTRY"
	EnvInsecure     = "KUBEWARDEN_AIRGAP_INSECURE"
	EnvWorkDir      = "KUBEWARDEN_AIRGAP_WORKDIR"
	EnvGitHubToken  = "KUBEWARDEN_AIRGAP_GITHUB_TOKEN"
	EnvImageBackend = "KUBEWARDEN_AIRGAP_IMAGE_BACKEND"
)

// Image backends selectable with --image-backend.
const (
	BackendDocker = "docker"
	BackendCrane  = "crane"
)

// Test seams.
var (
	getenv      = os.Getenv
	userHomeDir = os.UserHomeDir
)

// CLIConfig holds the settings shared by every command.
type CLIConfig struct {
	Registry     string `yaml:"registry,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty"`
	WorkDir      string `yaml:"workdir,omitempty"`
	ImageBackend string `yaml:"imageBackend,omitempty"`
	// GitHubToken is only read from the environment or a flag.
	GitHubToken string `yaml:"-"`
}

func defaultCLIConfig() CLIConfig {
	return CLIConfig{WorkDir: ".", ImageBackend: BackendDocker}
}

func configPath() (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", wrapWithSentinel(ErrGetHomeDirectoryFailed, err, fmt.Sprintf("failed to get home directory: %v", err))
	}
	return filepath.Join(home, ".kubewarden-airgap", "config.yaml"), nil
}

// loadConfigFile returns the stored config, or nil when there is none.
func loadConfigFile() (*CLIConfig, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is scoped to the user's config directory.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, wrapWithSentinelAndContext(ErrReadConfigFailed, err,
			fmt.Sprintf("failed to read config: %v", err), map[string]any{"path": path})
	}
	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, wrapWithSentinelAndContext(ErrUnmarshalConfigFailed, err,
			fmt.Sprintf("failed to unmarshal config %s: %v", path, err), map[string]any{"path": path})
	}
	return &cfg, nil
}

func saveConfigFile(cfg *CLIConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return wrapWithSentinelAndContext(ErrSaveConfigFailed, err,
			fmt.Sprintf("failed to create config directory: %v", err), map[string]any{"path": path})
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return wrapWithSentinel(ErrSaveConfigFailed, err, fmt.Sprintf("failed to marshal config: %v", err))
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return wrapWithSentinelAndContext(ErrSaveConfigFailed, err,
			fmt.Sprintf("failed to write config: %v", err), map[string]any{"path": path})
	}
	return nil
}

// LoadCLIConfig layers the config file and the environment over the
// defaults. Flags are applied by each command.
func LoadCLIConfig() (*CLIConfig, error) {
	cfg := defaultCLIConfig()

	fileCfg, err := loadConfigFile()
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if fileCfg.Registry != "" {
			cfg.Registry = fileCfg.Registry
		}
		cfg.Insecure = fileCfg.Insecure
		if fileCfg.WorkDir != "" {
			cfg.WorkDir = fileCfg.WorkDir
		}
		if fileCfg.ImageBackend != "" {
			cfg.ImageBackend = fileCfg.ImageBackend
		}
	}

	if v := getenv(EnvRegistry); v != "" {
		cfg.Registry = v
	}
	if v := getenv(EnvInsecure); v != "" {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, wrapWithSentinelAndContext(ErrInvalidEnvValue, err,
				fmt.Sprintf("%s must be a boolean, got %q", EnvInsecure, v), map[string]any{"env": EnvInsecure})
		}
		cfg.Insecure = insecure
	}
	if v := getenv(EnvWorkDir); v != "" {
		cfg.WorkDir = v
	}
	if v := getenv(EnvGitHubToken); v != "" {
		cfg.GitHubToken = v
	}
	if v := getenv(EnvImageBackend); v != "" {
		cfg.ImageBackend = v
	}
	return &cfg, nil
}

// NewConfigCmd returns the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the stored configuration",
		Long:  "Commands for the configuration stored in ~/.kubewarden-airgap/config.yaml",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetRegistryCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadCLIConfig()
			if err != nil {
				Error("Failed to load configuration")
				return err
			}
			token := ""
			if cfg.GitHubToken != "" {
				token = "(set)"
			}
			TableBoxed([][]string{
				{"Setting", "Value"},
				{"registry", cfg.Registry},
				{"insecure", strconv.FormatBool(cfg.Insecure)},
				{"workdir", cfg.WorkDir},
				{"image backend", cfg.ImageBackend},
				{"github token", token},
			})
			return nil
		},
	}
}

func newConfigSetRegistryCmd() *cobra.Command {
	var insecure bool

	cmd := &cobra.Command{
		Use:   "set-registry HOST[:PORT]",
		Short: "Store the default target registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return SetRegistry(args[0], insecure, cmd.Flags().Changed("insecure"))
		},
	}

	cmd.Flags().BoolVar(&insecure, "insecure", false, "Also store whether the registry is insecure")

	return cmd
}

// SetRegistry validates authority and stores it in the config file. The
// insecure setting is only updated when setInsecure is true.
func SetRegistry(authority string, insecure, setInsecure bool) error {
	if err := reference.ValidateAuthority(authority); err != nil {
		Error("Invalid registry")
		return err
	}
	cfg, err := loadConfigFile()
	if err != nil {
		Error("Failed to load configuration")
		return err
	}
	if cfg == nil {
		cfg = &CLIConfig{}
	}
	cfg.Registry = authority
	if setInsecure {
		cfg.Insecure = insecure
	}
	if err := saveConfigFile(cfg); err != nil {
		Error("Failed to save configuration")
		return err
	}
	Success(fmt.Sprintf("Default registry set to %s", authority))
	return nil
}
