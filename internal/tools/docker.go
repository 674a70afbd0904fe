package tools

import (
	"context"

	"go.uber.org/zap"

	"kubewarden-airgap/internal/airgap"
)

// DockerImages is the image transport backed by the docker CLI. It works
// against the local daemon's image store.
type DockerImages struct {
	tool   *Tool
	logger *zap.Logger
}

var _ airgap.ImageTransport = (*DockerImages)(nil)

// NewDockerImages creates a docker transport whose archive paths must stay
// under workDir.
func NewDockerImages(exec Executor, workDir string, logger *zap.Logger) *DockerImages {
	return &DockerImages{
		tool:   NewTool("docker", exec, NoShellMeta(), PathUnder(workDir)),
		logger: logger,
	}
}

func (d *DockerImages) Pull(ctx context.Context, ref string) error {
	d.logger.Debug("docker pull", zap.String("image", ref))
	return d.tool.Run(ctx, []string{"pull", ref})
}

func (d *DockerImages) Save(ctx context.Context, refs []string, archive string) error {
	d.logger.Debug("docker save", zap.Int("images", len(refs)), zap.String("archive", archive))
	args := append([]string{"save", "-o", archive}, refs...)
	return d.tool.Run(ctx, args)
}

func (d *DockerImages) Load(ctx context.Context, archive string) error {
	d.logger.Debug("docker load", zap.String("archive", archive))
	return d.tool.Run(ctx, []string{"load", "-i", archive})
}

func (d *DockerImages) Tag(ctx context.Context, ref, newRef string) error {
	return d.tool.Run(ctx, []string{"tag", ref, newRef})
}

// Push pushes ref. Insecure registries are a daemon setting for docker, so
// opts only shows up in the debug log.
func (d *DockerImages) Push(ctx context.Context, ref string, opts airgap.PushOptions) error {
	d.logger.Debug("docker push", zap.String("image", ref), zap.Strings("insecure", opts.InsecureRegistries))
	return d.tool.Run(ctx, []string{"push", ref})
}
