package airgap

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"kubewarden-airgap/pkg/manifest"
	"kubewarden-airgap/pkg/reference"
)

// Namespaces and value keys used by the install plan.
const (
	CertManagerNamespace = "cert-manager"
	CertManagerRelease   = "cert-manager"
	KubewardenNamespace  = "kubewarden"

	DefaultRegistryKey     = "global.cattle.systemDefaultRegistry"
	RecommendedPoliciesKey = "recommendedPolicies.enabled"
	InsecureSourcesKey     = "policyServer.insecureSources"
)

// certManagerImages maps the cert-manager chart value keys to the image
// repositories they point at, relative to the target registry.
var certManagerImages = []Value{
	{Key: "image.repository", Value: "jetstack/cert-manager-controller"},
	{Key: "webhook.image.repository", Value: "jetstack/cert-manager-webhook"},
	{Key: "cainjector.image.repository", Value: "jetstack/cert-manager-cainjector"},
	{Key: "startupapicheck.image.repository", Value: "jetstack/cert-manager-startupapicheck"},
}

// InstallStep is one chart install of the plan.
type InstallStep struct {
	Role    manifest.ChartRole
	Chart   reference.Chart
	Request InstallRequest
}

// Plan derives the install sequence from the manifest. The order depends only
// on which roles are present: cert-manager (when the manifest carries it),
// then CRDs, controller and defaults.
func Plan(m *manifest.Manifest, opts Options) ([]InstallStep, error) {
	byRole, err := m.ChartsByRole()
	if err != nil {
		return nil, err
	}

	roles := manifest.CoreRoles
	if m.IncludesCertManager() {
		roles = append([]manifest.ChartRole{manifest.RoleCertManager}, manifest.CoreRoles...)
	}

	steps := make([]InstallStep, 0, len(roles))
	for _, role := range roles {
		chart := byRole[role]
		req := InstallRequest{
			ChartFile: filepath.Join(opts.WorkDir, chart.FileName()),
			Release:   chart.Name,
			Namespace: KubewardenNamespace,
		}
		switch role {
		case manifest.RoleCertManager:
			req.Release = CertManagerRelease
			req.Namespace = CertManagerNamespace
			req.Wait = true
			req.Values = append(req.Values, Value{Key: "installCRDs", Value: "true"})
			for _, img := range certManagerImages {
				req.Values = append(req.Values, Value{Key: img.Key, Value: opts.Registry + "/" + img.Value})
			}
		case manifest.RoleCRDs:
		case manifest.RoleController:
			req.Wait = true
			req.Values = []Value{{Key: DefaultRegistryKey, Value: opts.Registry}}
		case manifest.RoleDefaults:
			req.Values = []Value{
				{Key: DefaultRegistryKey, Value: opts.Registry},
				{Key: RecommendedPoliciesKey, Value: "true"},
			}
			if opts.Insecure {
				req.Values = append(req.Values, Value{Key: InsecureSourcesKey, Value: "{" + opts.Registry + "}"})
			}
		}
		steps = append(steps, InstallStep{Role: role, Chart: chart, Request: req})
	}
	return steps, nil
}

// Describe renders the values of a request as key=value pairs.
func (r InstallRequest) Describe() string {
	pairs := make([]string, 0, len(r.Values))
	for _, v := range r.Values {
		pairs = append(pairs, v.Key+"="+v.Value)
	}
	return strings.Join(pairs, ",")
}

// Installer installs the charts of a manifest against the target registry.
type Installer struct {
	charts   ChartClient
	logger   *zap.Logger
	reporter Reporter
}

func NewInstaller(charts ChartClient, logger *zap.Logger, reporter Reporter) *Installer {
	return &Installer{charts: charts, logger: logger, reporter: reporterOrNop(reporter)}
}

// Install runs the plan. Every chart file must exist before the first install
// starts. Any failure stops the sequence; nothing is rolled back.
func (i *Installer) Install(ctx context.Context, m *manifest.Manifest, opts Options) ([]InstallStep, error) {
	if err := opts.Validate(true); err != nil {
		return nil, err
	}
	steps, err := Plan(m, opts)
	if err != nil {
		return nil, err
	}
	for _, step := range steps {
		exists, err := fileExists(step.Request.ChartFile)
		if err != nil {
			return steps, err
		}
		if !exists {
			return steps, newWithSentinel(ErrChartFileNotFound,
				fmt.Sprintf("%s not found for %s; run pull first", step.Request.ChartFile, step.Chart.Name)).
				WithContextMap(map[string]any{"chart": step.Chart.String(), "file": step.Request.ChartFile})
		}
	}

	for _, step := range steps {
		i.reporter.Section(fmt.Sprintf("Installing %s", step.Chart.Name))
		if opts.DryRun {
			i.reporter.DryRun(fmt.Sprintf("install %s from %s in namespace %s", step.Request.Release, step.Request.ChartFile, step.Request.Namespace))
			continue
		}
		i.logger.Debug("installing chart",
			zap.String("role", string(step.Role)),
			zap.String("release", step.Request.Release),
			zap.String("namespace", step.Request.Namespace))
		if err := i.charts.Install(ctx, step.Request); err != nil {
			return steps, wrapWithSentinelAndContext(ErrInstallFailed, err,
				fmt.Sprintf("failed to install %s: %v", step.Chart.Name, err),
				map[string]any{"release": step.Request.Release, "namespace": step.Request.Namespace, "chart": step.Chart.String()})
		}
		i.reporter.Success(fmt.Sprintf("Installed %s", step.Request.Release))
	}
	return steps, nil
}
