package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"

	gogithub "github.com/google/go-github/v68/github"
	"go.uber.org/zap"

	"kubewarden-airgap/internal/airgap"
)

// Kubewarden publishes its image and policy lists as assets of the helm-charts
// releases.
const (
	DefaultReleaseOwner = "kubewarden"
	DefaultReleaseRepo  = "helm-charts"
)

// maxAssetSize bounds a downloaded listing.
const maxAssetSize = 16 << 20

// GitHubReleases lists and downloads release assets of one repository.
type GitHubReleases struct {
	client *gogithub.Client
	owner  string
	repo   string
	logger *zap.Logger
}

var _ airgap.ReleaseAssets = (*GitHubReleases)(nil)

// NewGitHubReleases creates an anonymous client, or a token authenticated one
// when token is set.
func NewGitHubReleases(token, owner, repo string, logger *zap.Logger) *GitHubReleases {
	client := gogithub.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return NewGitHubReleasesWithClient(client, owner, repo, logger)
}

// NewGitHubReleasesWithClient wraps an existing go-github client.
func NewGitHubReleasesWithClient(client *gogithub.Client, owner, repo string, logger *zap.Logger) *GitHubReleases {
	return &GitHubReleases{client: client, owner: owner, repo: repo, logger: logger}
}

// ListAssets returns the assets of the release tagged tag.
func (g *GitHubReleases) ListAssets(ctx context.Context, tag string) ([]airgap.Asset, error) {
	release, _, err := g.client.Repositories.GetReleaseByTag(ctx, g.owner, g.repo, tag)
	if err != nil {
		return nil, fmt.Errorf("get release %s/%s@%s: %w", g.owner, g.repo, tag, err)
	}
	assets := make([]airgap.Asset, 0, len(release.Assets))
	for _, a := range release.Assets {
		assets = append(assets, airgap.Asset{Name: a.GetName(), URL: a.GetBrowserDownloadURL()})
	}
	g.logger.Debug("listed release assets",
		zap.String("release", release.GetTagName()),
		zap.Int("assets", len(assets)))
	return assets, nil
}

// Fetch downloads an asset through the same authenticated client.
func (g *GitHubReleases) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := g.client.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := g.client.BareDo(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > maxAssetSize {
		return nil, fmt.Errorf("download %s: asset larger than %d bytes", url, maxAssetSize)
	}
	return data, nil
}
