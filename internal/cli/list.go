package cli

// This file implements the "list" command, which discovers the current
// artifacts and writes the dependency manifest.

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kubewarden-airgap/internal/airgap"
)

// NewListCmd returns the list subcommand.
func NewListCmd(logger *zap.Logger) *cobra.Command {
	return NewListCmdWithManager(DefaultAirgapManager(logger))
}

// NewListCmdWithManager returns the list subcommand using the provided manager.
func NewListCmdWithManager(mgr *AirgapManager) *cobra.Command {
	var flags phaseFlags
	var certManager bool
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Build the dependency manifest",
		Long: `Discover the images, policies and charts of the current Kubewarden release
and print them as a manifest. Charts are read from the locally configured helm
repositories, so run "helm repo update" first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := mgr.resolve(cmd, &flags)
			if err != nil {
				return err
			}
			return mgr.List(cmd.Context(), r, certManager, output)
		},
	}

	cmd.Flags().BoolVar(&certManager, "cert-manager", false, "Include cert-manager images and chart")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the manifest to FILE instead of stdout")
	cmd.Flags().StringVar(&flags.githubToken, "github-token", "", "GitHub token for the release API (env "+EnvGitHubToken+")")

	return cmd
}

// List builds the manifest and prints it, or saves it when output is set.
func (m *AirgapManager) List(ctx context.Context, r resolved, includeCertManager bool, output string) error {
	// Progress lines would corrupt a manifest printed on stdout.
	var reporter airgap.Reporter
	if output != "" {
		reporter = m.printer
	}
	builder := airgap.NewBuilder(
		m.backends.Charts(r.opts.WorkDir),
		m.backends.Releases(r.githubToken),
		airgap.DefaultBuilderConfig(),
		m.logger,
		reporter,
	)

	mf, err := builder.Build(ctx, includeCertManager)
	if err != nil {
		return m.fail(err, "Failed to build manifest")
	}

	if output == "" {
		data, err := mf.MarshalIndent()
		if err != nil {
			return m.fail(err, "Failed to encode manifest")
		}
		m.printer.Printf("%s", data)
		return nil
	}

	if err := mf.Save(output); err != nil {
		return m.fail(err, "Failed to write manifest")
	}
	m.printer.Success(fmt.Sprintf("Wrote %d images, %d policies and %d charts to %s",
		len(mf.Images), len(mf.Policies), len(mf.Charts), output))
	return nil
}
