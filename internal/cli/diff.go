package cli

// This file implements the "diff" command, which compares two manifests.

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kubewarden-airgap/pkg/manifest"
)

// NewDiffCmd returns the diff subcommand.
func NewDiffCmd(logger *zap.Logger) *cobra.Command {
	return NewDiffCmdWithManager(DefaultAirgapManager(logger))
}

// NewDiffCmdWithManager returns the diff subcommand using the provided manager.
func NewDiffCmdWithManager(mgr *AirgapManager) *cobra.Command {
	return &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Show what changed between two manifests",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return mgr.Diff(args[0], args[1])
		},
	}
}

// Diff prints a unified diff of the canonical forms of two manifest files.
func (m *AirgapManager) Diff(oldPath, newPath string) error {
	old, err := m.loadManifest(oldPath)
	if err != nil {
		return err
	}
	updated, err := m.loadManifest(newPath)
	if err != nil {
		return err
	}
	out, err := manifest.Diff(oldPath, old, newPath, updated)
	if err != nil {
		return m.fail(err, "Failed to diff manifests")
	}
	if out == "" {
		m.printer.Info("Manifests are identical")
		return nil
	}
	m.printer.Printf("%s", out)
	return nil
}
