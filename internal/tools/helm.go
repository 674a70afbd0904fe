package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/helmpath"
	"helm.sh/helm/v3/pkg/repo"

	"kubewarden-airgap/internal/airgap"
	"kubewarden-airgap/pkg/reference"
)

// ErrNoRepositories is returned by Search when no chart repository is
// configured locally.
var ErrNoRepositories = errors.New("no helm repositories configured")

// HelmClient searches the locally configured chart repositories through the
// Helm SDK and runs pull, template and install through the helm CLI.
type HelmClient struct {
	tool     *Tool
	settings *cli.EnvSettings
	logger   *zap.Logger
}

var _ airgap.ChartClient = (*HelmClient)(nil)

// NewHelmClient creates a client. Chart files handed to helm must stay under
// workDir. A nil settings value reads the usual HELM_* environment.
func NewHelmClient(exec Executor, settings *cli.EnvSettings, workDir string, logger *zap.Logger) *HelmClient {
	if settings == nil {
		settings = cli.New()
	}
	return &HelmClient{
		tool:     NewTool("helm", exec, NoShellMeta(), PathUnder(workDir)),
		settings: settings,
		logger:   logger,
	}
}

// Search reads repositories.yaml and every cached repository index, and
// returns the latest stable version of each chart whose "<repo>/<chart>" name
// starts with prefix. Run "helm repo update" first to refresh the indexes.
func (h *HelmClient) Search(_ context.Context, prefix string) ([]airgap.ChartVersion, error) {
	f, err := repo.LoadFile(h.settings.RepositoryConfig)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoRepositories, h.settings.RepositoryConfig)
		}
		return nil, fmt.Errorf("load repository file: %w", err)
	}
	if len(f.Repositories) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRepositories, h.settings.RepositoryConfig)
	}

	var hits []airgap.ChartVersion
	for _, entry := range f.Repositories {
		indexPath := filepath.Join(h.settings.RepositoryCache, helmpath.CacheIndexFile(entry.Name))
		index, err := repo.LoadIndexFile(indexPath)
		if err != nil {
			return nil, fmt.Errorf("load index for repository %q: %w", entry.Name, err)
		}
		h.logger.Debug("loaded repository index",
			zap.String("repo", entry.Name),
			zap.Int("charts", len(index.Entries)))

		for name, versions := range index.Entries {
			if !strings.HasPrefix(entry.Name+"/"+name, prefix) {
				continue
			}
			if v := latestStable(versions); v != "" {
				hits = append(hits, airgap.ChartVersion{
					RepoURL: strings.TrimSuffix(entry.URL, "/"),
					Name:    name,
					Version: v,
				})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Name != hits[j].Name {
			return hits[i].Name < hits[j].Name
		}
		return hits[i].RepoURL < hits[j].RepoURL
	})
	return hits, nil
}

// latestStable returns the first non-prerelease version. Index entries are
// sorted newest first when loaded.
func latestStable(versions repo.ChartVersions) string {
	for _, cv := range versions {
		v, err := semver.NewVersion(cv.Version)
		if err != nil || v.Prerelease() != "" {
			continue
		}
		return cv.Version
	}
	return ""
}

// Pull downloads chart into destDir.
func (h *HelmClient) Pull(ctx context.Context, chart reference.Chart, destDir string) (string, error) {
	args := append([]string{"pull"}, chartSource(chart)...)
	args = append(args, "--version", chart.Version, "--destination", destDir)
	h.logger.Debug("helm pull", zap.String("chart", chart.String()), zap.String("destination", destDir))
	if err := h.tool.Run(ctx, args); err != nil {
		return "", err
	}
	return filepath.Join(destDir, chart.FileName()), nil
}

// Template renders chart with its default values and returns the manifests.
func (h *HelmClient) Template(ctx context.Context, chart reference.Chart) ([]byte, error) {
	args := append([]string{"template", chart.Name}, chartSource(chart)...)
	args = append(args, "--version", chart.Version)
	h.logger.Debug("helm template", zap.String("chart", chart.String()))
	return h.tool.Output(ctx, args)
}

// Install runs a plain helm install. Existing releases are not upgraded.
func (h *HelmClient) Install(ctx context.Context, req airgap.InstallRequest) error {
	args := []string{"install", req.Release, req.ChartFile, "--namespace", req.Namespace, "--create-namespace"}
	for _, v := range req.Values {
		args = append(args, "--set", v.Key+"="+v.Value)
	}
	if req.Wait {
		args = append(args, "--wait")
	}
	h.logger.Debug("helm install",
		zap.String("release", req.Release),
		zap.String("namespace", req.Namespace),
		zap.String("chart", req.ChartFile))
	return h.tool.Run(ctx, args)
}

func chartSource(chart reference.Chart) []string {
	if chart.IsOCI() {
		return []string{chart.Repo + "/" + chart.Name}
	}
	return []string{chart.Name, "--repo", chart.Repo}
}
