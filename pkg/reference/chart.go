package reference

import (
	"fmt"
	"strings"
)

// ChartArchiveExt is the extension of a packaged chart.
const ChartArchiveExt = "tgz"

// Chart is the parsed form of a "repoURL/name:version" chart reference.
type Chart struct {
	// Repo is everything up to the last path segment, scheme included
	// (https://charts.kubewarden.io or oci://ghcr.io/kubewarden/charts).
	Repo    string
	Name    string
	Version string
}

// ParseChart parses a chart reference. The version is mandatory.
func ParseChart(s string) (Chart, error) {
	if s == "" || strings.TrimSpace(s) != s {
		return Chart{}, malformed(s, "chart reference must be a non-empty string without surrounding whitespace")
	}
	rest, version := splitTag(s)
	if version == "" {
		return Chart{}, malformed(s, "chart reference has no version")
	}
	i := strings.LastIndex(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return Chart{}, malformed(s, "chart reference must look like repoURL/name:version")
	}
	c := Chart{Repo: rest[:i], Name: rest[i+1:], Version: version}
	if strings.HasSuffix(c.Repo, ":/") || strings.HasSuffix(c.Repo, "://") {
		return Chart{}, malformed(s, "chart repository has no host")
	}
	return c, nil
}

// String renders the chart back into "repoURL/name:version".
func (c Chart) String() string {
	return c.Repo + "/" + c.Name + ":" + c.Version
}

// FileName is the file a chart pull produces: "<name>-<version>.tgz".
func (c Chart) FileName() string {
	return ChartFileName(c.Name, c.Version)
}

// IsOCI reports whether the chart lives in an OCI registry.
func (c Chart) IsOCI() bool {
	return strings.HasPrefix(c.Repo, "oci://")
}

// ChartFileName returns the deterministic file name for a chart version.
func ChartFileName(name, version string) string {
	return fmt.Sprintf("%s-%s.%s", name, version, ChartArchiveExt)
}
