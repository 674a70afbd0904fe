package cli

// This file implements the "push" command, which replays the cache into the
// target registry.

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kubewarden-airgap/internal/airgap"
)

// NewPushCmd returns the push subcommand.
func NewPushCmd(logger *zap.Logger) *cobra.Command {
	return NewPushCmdWithManager(DefaultAirgapManager(logger))
}

// NewPushCmdWithManager returns the push subcommand using the provided manager.
func NewPushCmdWithManager(mgr *AirgapManager) *cobra.Command {
	var flags phaseFlags

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the cached images and policies to a registry",
		Long: `Load the cached archives and push every image and policy of the manifest
to the target registry. Only the registry part of each reference changes:
docker.io/x:1 pushed to localhost:5000 becomes localhost:5000/x:1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := mgr.resolve(cmd, &flags)
			if err != nil {
				return err
			}
			return mgr.Push(cmd.Context(), flags.manifest, r)
		},
	}

	flags.bindManifest(cmd, "Manifest file produced by list (required)")
	flags.bindWorkDir(cmd)
	flags.bindRegistry(cmd)
	flags.bindDryRun(cmd)
	flags.bindImageBackend(cmd)
	cmd.Flags().BoolVar(&flags.defaultLatest, "default-latest", false, "Tag registry:// policies without a tag or digest as :latest")

	return cmd
}

// Push runs the push phase.
func (m *AirgapManager) Push(ctx context.Context, manifestPath string, r resolved) error {
	if err := m.requireManifest(manifestPath); err != nil {
		return err
	}
	if err := m.requireRegistry(r.opts); err != nil {
		return err
	}
	mf, err := m.loadManifest(manifestPath)
	if err != nil {
		return err
	}
	images, err := m.backends.Images(r.imageBackend, r.opts.WorkDir)
	if err != nil {
		return m.fail(err, "Invalid image backend")
	}

	m.printer.Header(fmt.Sprintf("Pushing artifacts to %s", r.opts.Registry))
	pusher := airgap.NewPusher(images, m.backends.Policies(), m.logger, m.printer)
	if err := pusher.Push(ctx, mf, r.opts); err != nil {
		return m.fail(err, "Push failed")
	}
	m.printer.Success("Push finished")
	return nil
}
