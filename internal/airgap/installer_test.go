package airgap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kubewarden-airgap/pkg/manifest"
	"kubewarden-airgap/pkg/reference"
)

// chartWorkDir returns a work directory holding the pulled chart files.
func chartWorkDir(t *testing.T, charts []string) string {
	t.Helper()
	dir := t.TempDir()
	for _, entry := range charts {
		chart, err := reference.ParseChart(entry)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, chart.FileName()), []byte("chart"), 0o600))
	}
	return dir
}

func releases(steps []InstallStep) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Request.Release)
	}
	return out
}

func TestPlan(t *testing.T) {
	permutations := [][]string{
		{coreCharts[0], coreCharts[1], coreCharts[2]},
		{coreCharts[2], coreCharts[0], coreCharts[1]},
		{coreCharts[1], coreCharts[2], coreCharts[0]},
		{coreCharts[2], coreCharts[1], coreCharts[0]},
	}
	for _, charts := range permutations {
		steps, err := Plan(newManifest(nil, nil, charts), Options{WorkDir: "/cache", Registry: "localhost:5000"})
		require.NoError(t, err)
		assert.Equal(t, []string{"kubewarden-crds", "kubewarden-controller", "kubewarden-defaults"}, releases(steps))
	}

	t.Run("cert-manager goes first", func(t *testing.T) {
		charts := append([]string{}, coreCharts...)
		charts = append(charts, certManagerChart)
		steps, err := Plan(newManifest(nil, nil, charts), Options{WorkDir: "/cache", Registry: "localhost:5000"})
		require.NoError(t, err)
		require.Len(t, steps, 4)

		first := steps[0]
		assert.Equal(t, manifest.RoleCertManager, first.Role)
		want := InstallRequest{
			ChartFile: "/cache/cert-manager-v1.13.2.tgz",
			Release:   CertManagerRelease,
			Namespace: CertManagerNamespace,
			Wait:      true,
			Values: []Value{
				{Key: "installCRDs", Value: "true"},
				{Key: "image.repository", Value: "localhost:5000/jetstack/cert-manager-controller"},
				{Key: "webhook.image.repository", Value: "localhost:5000/jetstack/cert-manager-webhook"},
				{Key: "cainjector.image.repository", Value: "localhost:5000/jetstack/cert-manager-cainjector"},
				{Key: "startupapicheck.image.repository", Value: "localhost:5000/jetstack/cert-manager-startupapicheck"},
			},
		}
		if diff := cmp.Diff(want, first.Request); diff != "" {
			t.Errorf("cert-manager request mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("values per role", func(t *testing.T) {
		steps, err := Plan(newManifest(nil, nil, coreCharts), Options{WorkDir: "/cache", Registry: "localhost:5000", Insecure: true})
		require.NoError(t, err)

		crds, controller, defaults := steps[0].Request, steps[1].Request, steps[2].Request
		assert.Empty(t, crds.Values)
		assert.False(t, crds.Wait)
		assert.Equal(t, KubewardenNamespace, crds.Namespace)
		assert.Equal(t, "/cache/kubewarden-crds-1.4.0.tgz", crds.ChartFile)

		assert.True(t, controller.Wait)
		assert.Equal(t, "global.cattle.systemDefaultRegistry=localhost:5000", controller.Describe())

		assert.False(t, defaults.Wait)
		assert.Equal(t,
			"global.cattle.systemDefaultRegistry=localhost:5000,recommendedPolicies.enabled=true,policyServer.insecureSources={localhost:5000}",
			defaults.Describe())
	})

	t.Run("secure registry has no insecure sources", func(t *testing.T) {
		steps, err := Plan(newManifest(nil, nil, coreCharts), Options{WorkDir: "/cache", Registry: "localhost:5000"})
		require.NoError(t, err)
		assert.NotContains(t, steps[2].Request.Describe(), InsecureSourcesKey)
	})

	t.Run("missing core chart", func(t *testing.T) {
		_, err := Plan(newManifest(nil, nil, coreCharts[:2]), Options{WorkDir: "/cache", Registry: "localhost:5000"})
		require.Error(t, err)
		assert.ErrorIs(t, err, manifest.ErrMissingChart)
		assert.Contains(t, err.Error(), "defaults")
	})
}

func TestInstallerInstall(t *testing.T) {
	newInstaller := func() (*Installer, *fakeCharts, *fakeReporter) {
		charts := &fakeCharts{calls: &calls{}}
		reporter := &fakeReporter{}
		return NewInstaller(charts, zap.NewNop(), reporter), charts, reporter
	}

	t.Run("installs in order", func(t *testing.T) {
		dir := chartWorkDir(t, coreCharts)
		installer, charts, _ := newInstaller()

		steps, err := installer.Install(context.Background(), newManifest(nil, nil, coreCharts), Options{WorkDir: dir, Registry: "localhost:5000"})
		require.NoError(t, err)
		assert.Len(t, steps, 3)
		assert.Equal(t, []string{
			"install kubewarden-crds",
			"install kubewarden-controller",
			"install kubewarden-defaults",
		}, charts.log)
	})

	t.Run("missing core chart installs nothing", func(t *testing.T) {
		dir := chartWorkDir(t, coreCharts)
		installer, charts, _ := newInstaller()

		_, err := installer.Install(context.Background(), newManifest(nil, nil, coreCharts[1:]), Options{WorkDir: dir, Registry: "localhost:5000"})
		require.Error(t, err)
		assert.ErrorIs(t, err, manifest.ErrMissingChart)
		assert.Contains(t, err.Error(), "crds")
		assert.Empty(t, charts.log)
	})

	t.Run("missing chart file installs nothing", func(t *testing.T) {
		dir := chartWorkDir(t, coreCharts[:2])
		installer, charts, _ := newInstaller()

		_, err := installer.Install(context.Background(), newManifest(nil, nil, coreCharts), Options{WorkDir: dir, Registry: "localhost:5000"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrChartFileNotFound)
		assert.Contains(t, err.Error(), "kubewarden-defaults-1.9.0.tgz")
		assert.Empty(t, charts.log)
	})

	t.Run("failure stops the sequence", func(t *testing.T) {
		dir := chartWorkDir(t, coreCharts)
		installer, charts, _ := newInstaller()
		charts.installErr = map[string]error{"kubewarden-controller": errors.New("timed out waiting for the condition")}

		_, err := installer.Install(context.Background(), newManifest(nil, nil, coreCharts), Options{WorkDir: dir, Registry: "localhost:5000"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInstallFailed)
		assert.Equal(t, []string{"install kubewarden-crds", "install kubewarden-controller"}, charts.log)
		assert.Len(t, charts.installed, 1)
	})

	t.Run("registry is required", func(t *testing.T) {
		installer, charts, _ := newInstaller()
		_, err := installer.Install(context.Background(), newManifest(nil, nil, coreCharts), Options{WorkDir: t.TempDir()})
		assert.ErrorIs(t, err, ErrRegistryRequired)
		assert.Empty(t, charts.log)
	})

	t.Run("dry run installs nothing", func(t *testing.T) {
		dir := chartWorkDir(t, coreCharts)
		installer, charts, reporter := newInstaller()

		steps, err := installer.Install(context.Background(), newManifest(nil, nil, coreCharts), Options{WorkDir: dir, Registry: "localhost:5000", DryRun: true})
		require.NoError(t, err)
		assert.Len(t, steps, 3)
		assert.Empty(t, charts.log)
		assert.Len(t, reporter.with("dry-run"), 3)
	})
}
