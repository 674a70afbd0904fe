package tools

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"kubewarden-airgap/internal/airgap"
)

// KwctlPolicies is the policy transport backed by the kwctl CLI.
type KwctlPolicies struct {
	tool   *Tool
	logger *zap.Logger
}

var _ airgap.PolicyTransport = (*KwctlPolicies)(nil)

// Sources is the kwctl sources file.
type Sources struct {
	InsecureSources []string `yaml:"insecure_sources,omitempty"`
}

// createTemp is a test seam for the sources file location.
var createTemp = os.CreateTemp

func NewKwctlPolicies(exec Executor, logger *zap.Logger) *KwctlPolicies {
	return &KwctlPolicies{tool: NewTool("kwctl", exec), logger: logger}
}

func (k *KwctlPolicies) Pull(ctx context.Context, uri string) error {
	k.logger.Debug("kwctl pull", zap.String("policy", uri))
	return k.tool.Run(ctx, []string{"pull", uri})
}

func (k *KwctlPolicies) Save(ctx context.Context, uris []string, archive string) error {
	k.logger.Debug("kwctl save", zap.Int("policies", len(uris)), zap.String("archive", archive))
	args := append([]string{"save", "--output", archive}, uris...)
	return k.tool.Run(ctx, args)
}

func (k *KwctlPolicies) Load(ctx context.Context, archive string) error {
	k.logger.Debug("kwctl load", zap.String("archive", archive))
	return k.tool.Run(ctx, []string{"load", "--input", archive})
}

// Push pushes uri from the local policy store to targetURI. Insecure
// registries are handed to kwctl through a temporary sources file.
func (k *KwctlPolicies) Push(ctx context.Context, uri, targetURI string, opts airgap.PushOptions) error {
	args := []string{"push"}
	if len(opts.InsecureRegistries) > 0 {
		path, cleanup, err := writeSourcesFile(Sources{InsecureSources: opts.InsecureRegistries})
		if err != nil {
			return err
		}
		defer cleanup()
		args = append(args, "--sources-path", path)
	}
	args = append(args, uri, targetURI)
	k.logger.Debug("kwctl push", zap.String("policy", uri), zap.String("target", targetURI))
	return k.tool.Run(ctx, args)
}

func writeSourcesFile(sources Sources) (string, func(), error) {
	data, err := yaml.Marshal(sources)
	if err != nil {
		return "", nil, fmt.Errorf("marshal sources: %w", err)
	}
	f, err := createTemp("", "kwctl-sources-*.yaml")
	if err != nil {
		return "", nil, fmt.Errorf("create sources file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write sources file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close sources file: %w", err)
	}
	return f.Name(), cleanup, nil
}
