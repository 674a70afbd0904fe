package cli

// This file implements the "pull" command, which fills the local cache from
// a manifest.

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kubewarden-airgap/internal/airgap"
)

// NewPullCmd returns the pull subcommand.
func NewPullCmd(logger *zap.Logger) *cobra.Command {
	return NewPullCmdWithManager(DefaultAirgapManager(logger))
}

// NewPullCmdWithManager returns the pull subcommand using the provided manager.
func NewPullCmdWithManager(mgr *AirgapManager) *cobra.Command {
	var flags phaseFlags

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Cache every artifact of a manifest",
		Long: `Pull the images and policies of a manifest into one archive per category
and every chart into its own <chart>-<version>.tgz file. Existing archives and
chart files are skipped, so an interrupted pull can simply be re-run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := mgr.resolve(cmd, &flags)
			if err != nil {
				return err
			}
			return mgr.Pull(cmd.Context(), flags.manifest, r)
		},
	}

	flags.bindManifest(cmd, "Manifest file produced by list (required)")
	flags.bindWorkDir(cmd)
	flags.bindDryRun(cmd)
	flags.bindImageBackend(cmd)
	cmd.Flags().BoolVar(&flags.defaultLatest, "default-latest", false, "Tag registry:// policies without a tag or digest as :latest")

	return cmd
}

// Pull runs the pull phase.
func (m *AirgapManager) Pull(ctx context.Context, manifestPath string, r resolved) error {
	if err := m.requireManifest(manifestPath); err != nil {
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

	m.printer.Header("Pulling artifacts")
	puller := airgap.NewPuller(images, m.backends.Policies(), m.backends.Charts(r.opts.WorkDir), m.logger, m.printer)
	if err := puller.Pull(ctx, mf, r.opts); err != nil {
		return m.fail(err, "Pull failed")
	}
	m.printer.Success("Cache is complete in " + r.opts.WorkDir)
	return nil
}
