package airgap

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kubewarden-airgap/pkg/manifest"
	"kubewarden-airgap/pkg/reference"
)

// BuilderConfig names the discovery sources of a manifest.
type BuilderConfig struct {
	// ChartPrefix selects the platform charts in the local repositories,
	// matched against "<repo>/<chart>".
	ChartPrefix string
	// DefaultsChart is the chart whose version keys the release assets.
	DefaultsChart string
	// ReleaseTagPrefix is prepended to the defaults chart version to form the
	// release tag.
	ReleaseTagPrefix string
	ImagesAsset      string
	PoliciesAsset    string
	// CertManagerChart is the pinned cert-manager chart reference.
	CertManagerChart string
}

// DefaultBuilderConfig returns the Kubewarden discovery settings.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		ChartPrefix:      "kubewarden/",
		DefaultsChart:    "kubewarden-defaults",
		ReleaseTagPrefix: "kubewarden-defaults-",
		ImagesAsset:      "images.txt",
		PoliciesAsset:    "policylist.txt",
		CertManagerChart: "https://charts.jetstack.io/cert-manager:v1.13.2",
	}
}

// Builder assembles a dependency manifest from the discovery collaborators.
type Builder struct {
	charts   ChartClient
	assets   ReleaseAssets
	config   BuilderConfig
	logger   *zap.Logger
	reporter Reporter
}

func NewBuilder(charts ChartClient, assets ReleaseAssets, config BuilderConfig, logger *zap.Logger, reporter Reporter) *Builder {
	return &Builder{
		charts:   charts,
		assets:   assets,
		config:   config,
		logger:   logger,
		reporter: reporterOrNop(reporter),
	}
}

// Build discovers the current artifacts. Any empty or malformed discovery
// result fails the whole build; no partial manifest is returned.
func (b *Builder) Build(ctx context.Context, includeCertManager bool) (*manifest.Manifest, error) {
	hits, err := b.charts.Search(ctx, b.config.ChartPrefix)
	if err != nil {
		return nil, wrapWithSentinelAndContext(ErrDiscoveryFailed, err,
			fmt.Sprintf("failed to search local chart repositories for %q: %v", b.config.ChartPrefix, err),
			map[string]any{"prefix": b.config.ChartPrefix})
	}
	version, err := b.defaultsVersion(hits)
	if err != nil {
		return nil, err
	}
	b.reporter.Info(fmt.Sprintf("Using %s %s", b.config.DefaultsChart, version))

	tag := b.config.ReleaseTagPrefix + version
	images, policies, err := b.listings(ctx, tag)
	if err != nil {
		return nil, err
	}

	m := manifest.New()
	m.AddImages(images...)
	m.AddPolicies(policies...)

	if includeCertManager {
		certImages, chart, err := b.certManager(ctx)
		if err != nil {
			return nil, err
		}
		m.AddImages(certImages...)
		m.AddCharts(chart)
	}

	for _, hit := range hits {
		m.AddCharts(hit.Reference().String())
	}

	if err := m.Validate(); err != nil {
		return nil, wrapWithSentinel(ErrDiscoveryFailed, err, fmt.Sprintf("discovered manifest is invalid: %v", err))
	}
	b.logger.Debug("manifest built",
		zap.Int("images", len(m.Images)),
		zap.Int("policies", len(m.Policies)),
		zap.Int("charts", len(m.Charts)))
	return m, nil
}

func (b *Builder) defaultsVersion(hits []ChartVersion) (string, error) {
	for _, hit := range hits {
		if hit.Name == b.config.DefaultsChart {
			return hit.Version, nil
		}
	}
	return "", newWithSentinel(ErrChartNotFound,
		fmt.Sprintf("chart %s not found in local repositories; add the repository and run \"helm repo update\"", b.config.DefaultsChart)).
		WithContext("chart", b.config.DefaultsChart)
}

func (b *Builder) listings(ctx context.Context, tag string) (images, policies []string, err error) {
	assets, err := b.assets.ListAssets(ctx, tag)
	if err != nil {
		return nil, nil, wrapWithSentinelAndContext(ErrDiscoveryFailed, err,
			fmt.Sprintf("failed to list release assets of %s: %v", tag, err),
			map[string]any{"release": tag})
	}

	images, err = b.fetchListing(ctx, assets, tag, b.config.ImagesAsset)
	if err != nil {
		return nil, nil, err
	}
	for _, image := range images {
		if _, err := reference.ParseImage(image); err != nil {
			return nil, nil, wrapWithSentinelAndContext(ErrDiscoveryFailed, err,
				fmt.Sprintf("%s lists a malformed image %q", b.config.ImagesAsset, image),
				map[string]any{"release": tag, "asset": b.config.ImagesAsset})
		}
	}

	policies, err = b.fetchListing(ctx, assets, tag, b.config.PoliciesAsset)
	if err != nil {
		return nil, nil, err
	}
	for _, policy := range policies {
		if _, err := reference.ParsePolicy(policy); err != nil {
			return nil, nil, wrapWithSentinelAndContext(ErrDiscoveryFailed, err,
				fmt.Sprintf("%s lists a malformed policy %q", b.config.PoliciesAsset, policy),
				map[string]any{"release": tag, "asset": b.config.PoliciesAsset})
		}
	}
	return images, policies, nil
}

func (b *Builder) fetchListing(ctx context.Context, assets []Asset, tag, name string) ([]string, error) {
	var url string
	for _, a := range assets {
		if a.Name == name {
			url = a.URL
			break
		}
	}
	if url == "" {
		return nil, newWithSentinel(ErrAssetNotFound, fmt.Sprintf("release %s has no %s asset", tag, name)).
			WithContextMap(map[string]any{"release": tag, "asset": name})
	}

	data, err := b.assets.Fetch(ctx, url)
	if err != nil {
		return nil, wrapWithSentinelAndContext(ErrDiscoveryFailed, err,
			fmt.Sprintf("failed to download %s: %v", name, err),
			map[string]any{"release": tag, "asset": name, "url": url})
	}
	lines := splitLines(string(data))
	if len(lines) == 0 {
		return nil, newWithSentinel(ErrEmptyListing, fmt.Sprintf("%s of release %s is empty", name, tag)).
			WithContextMap(map[string]any{"release": tag, "asset": name})
	}
	b.logger.Debug("fetched listing", zap.String("asset", name), zap.Int("entries", len(lines)))
	return lines, nil
}

func (b *Builder) certManager(ctx context.Context) ([]string, string, error) {
	chart, err := reference.ParseChart(b.config.CertManagerChart)
	if err != nil {
		return nil, "", wrapWithSentinel(ErrDiscoveryFailed, err, fmt.Sprintf("invalid cert-manager chart %q", b.config.CertManagerChart))
	}
	rendered, err := b.charts.Template(ctx, chart)
	if err != nil {
		return nil, "", wrapWithSentinelAndContext(ErrDiscoveryFailed, err,
			fmt.Sprintf("failed to render %s: %v", chart, err),
			map[string]any{"chart": chart.String()})
	}
	images, err := ExtractImages(rendered)
	if err != nil {
		return nil, "", wrapWithSentinelAndContext(ErrDiscoveryFailed, err,
			fmt.Sprintf("failed to read rendered %s: %v", chart, err),
			map[string]any{"chart": chart.String()})
	}
	if len(images) == 0 {
		return nil, "", newWithSentinel(ErrNoImagesInTemplate, fmt.Sprintf("no images found in rendered %s", chart)).
			WithContext("chart", chart.String())
	}
	for _, image := range images {
		if _, err := reference.ParseImage(image); err != nil {
			return nil, "", wrapWithSentinelAndContext(ErrDiscoveryFailed, err,
				fmt.Sprintf("rendered %s references a malformed image %q", chart, image),
				map[string]any{"chart": chart.String()})
		}
	}
	b.reporter.Info(fmt.Sprintf("Found %d cert-manager image(s)", len(images)))
	return images, chart.String(), nil
}

// splitLines splits a listing into trimmed, non-empty lines.
func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
