package cli

// This file implements the "install" command, which installs the cached
// charts against the target registry.

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kubewarden-airgap/internal/airgap"
	"kubewarden-airgap/pkg/manifest"
)

// NewInstallCmd returns the install subcommand.
func NewInstallCmd(logger *zap.Logger) *cobra.Command {
	return NewInstallCmdWithManager(DefaultAirgapManager(logger))
}

// NewInstallCmdWithManager returns the install subcommand using the provided manager.
func NewInstallCmdWithManager(mgr *AirgapManager) *cobra.Command {
	var flags phaseFlags
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the cached charts",
		Long: `Install cert-manager (when the manifest carries it), then the Kubewarden
CRDs, controller and defaults charts, with every image pointed at the target
registry. The order comes from the charts present, not from their position in
the manifest. A failed step stops the sequence and nothing is rolled back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := mgr.resolve(cmd, &flags)
			if err != nil {
				return err
			}
			return mgr.Install(cmd.Context(), flags.manifest, r, skipPreflight)
		},
	}

	flags.bindManifest(cmd, "Manifest file (default: manifest.json in the work directory)")
	flags.bindWorkDir(cmd)
	flags.bindRegistry(cmd)
	flags.bindDryRun(cmd)
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Do not check the cluster before installing")

	return cmd
}

// Install runs the install phase. A live install checks the cluster first
// unless skipPreflight is set.
func (m *AirgapManager) Install(ctx context.Context, manifestPath string, r resolved, skipPreflight bool) error {
	if manifestPath == "" {
		manifestPath = filepath.Join(r.opts.WorkDir, manifest.DefaultFileName)
	}
	if err := m.requireRegistry(r.opts); err != nil {
		return err
	}
	mf, err := m.loadManifest(manifestPath)
	if err != nil {
		return err
	}

	if !r.opts.DryRun && !skipPreflight {
		if err := m.preflight(ctx, mf, r.opts); err != nil {
			return err
		}
	}

	m.printer.Header(fmt.Sprintf("Installing Kubewarden from %s", r.opts.Registry))
	installer := airgap.NewInstaller(m.backends.Charts(r.opts.WorkDir), m.logger, m.printer)
	steps, err := installer.Install(ctx, mf, r.opts)
	if err != nil {
		return m.fail(err, "Install failed")
	}
	if r.opts.DryRun {
		m.printer.Section("Install plan")
		m.printer.Table(planTable(steps))
		return nil
	}
	m.printer.Success("Kubewarden installed")
	return nil
}

func (m *AirgapManager) preflight(ctx context.Context, mf *manifest.Manifest, opts airgap.Options) error {
	steps, err := airgap.Plan(mf, opts)
	if err != nil {
		return m.fail(err, "Invalid manifest")
	}
	checker, err := m.backends.Preflight()
	if err != nil {
		return m.fail(err, "Cluster preflight failed")
	}
	stop := m.printer.SpinnerStart("Checking cluster")
	report, err := checker.Check(ctx, steps)
	if err != nil {
		stop(false, "Cluster check failed")
		return m.fail(err, "Cluster preflight failed")
	}
	stop(true, fmt.Sprintf("Cluster reachable (Kubernetes %s)", report.ServerVersion))
	for _, ns := range report.Namespaces {
		if !ns.Exists {
			m.printer.Info(fmt.Sprintf("Namespace %s will be created", ns.Name))
		}
	}
	return nil
}

func planTable(steps []airgap.InstallStep) [][]string {
	rows := [][]string{{"Step", "Release", "Namespace", "Chart file", "Values"}}
	for i, step := range steps {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			step.Request.Release,
			step.Request.Namespace,
			step.Request.ChartFile,
			step.Request.Describe(),
		})
	}
	return rows
}
