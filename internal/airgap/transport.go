package airgap

import (
	"context"

	"kubewarden-airgap/pkg/reference"
)

// PushOptions are passed to every push call.
type PushOptions struct {
	// InsecureRegistries lists registry authorities that may be reached over
	// plain HTTP or with unverified TLS.
	InsecureRegistries []string
}

// IsInsecure reports whether authority is on the insecure allow-list.
func (o PushOptions) IsInsecure(authority string) bool {
	for _, r := range o.InsecureRegistries {
		if r == authority {
			return true
		}
	}
	return false
}

// ImageTransport moves container images between registries and archives.
type ImageTransport interface {
	Pull(ctx context.Context, ref string) error
	Save(ctx context.Context, refs []string, archive string) error
	Load(ctx context.Context, archive string) error
	Tag(ctx context.Context, ref, newRef string) error
	Push(ctx context.Context, ref string, opts PushOptions) error
}

// PolicyTransport moves policy bundles between sources, archives and
// registries.
type PolicyTransport interface {
	Pull(ctx context.Context, uri string) error
	Save(ctx context.Context, uris []string, archive string) error
	Load(ctx context.Context, archive string) error
	Push(ctx context.Context, uri, targetURI string, opts PushOptions) error
}

// ChartVersion is one search hit from the local chart repositories.
type ChartVersion struct {
	RepoURL string
	Name    string
	Version string
}

// Reference renders the hit as a manifest chart entry.
func (c ChartVersion) Reference() reference.Chart {
	return reference.Chart{Repo: c.RepoURL, Name: c.Name, Version: c.Version}
}

// InstallRequest is a single chart install.
type InstallRequest struct {
	ChartFile string
	Release   string
	Namespace string
	Values    []Value
	Wait      bool
}

// Value is one --set assignment. Order is preserved.
type Value struct {
	Key   string
	Value string
}

// ChartClient searches, fetches, renders and installs Helm charts.
type ChartClient interface {
	// Search returns the latest version of every chart whose name starts
	// with prefix, across all configured repositories.
	Search(ctx context.Context, prefix string) ([]ChartVersion, error)
	// Pull downloads chart into destDir and returns the file path.
	Pull(ctx context.Context, chart reference.Chart, destDir string) (string, error)
	// Template renders chart with default values.
	Template(ctx context.Context, chart reference.Chart) ([]byte, error)
	Install(ctx context.Context, req InstallRequest) error
}

// Asset is one downloadable file of a release.
type Asset struct {
	Name string
	URL  string
}

// ReleaseAssets lists and downloads release assets.
type ReleaseAssets interface {
	ListAssets(ctx context.Context, tag string) ([]Asset, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}
