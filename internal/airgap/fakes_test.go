package airgap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kubewarden-airgap/pkg/manifest"
	"kubewarden-airgap/pkg/reference"
)

// calls records collaborator invocations as "op arg arg ..." strings.
type calls struct {
	log []string
}

func (c *calls) record(op string, args ...string) {
	c.log = append(c.log, strings.Join(append([]string{op}, args...), " "))
}

func (c *calls) count(op string) int {
	n := 0
	for _, l := range c.log {
		if l == op || strings.HasPrefix(l, op+" ") {
			n++
		}
	}
	return n
}

// mutating reports calls that change local or remote state.
func (c *calls) mutating() []string {
	var out []string
	for _, l := range c.log {
		for _, op := range []string{"pull", "save", "load", "tag", "push", "policy-pull", "policy-save", "policy-load", "policy-push", "install", "chart-pull"} {
			if l == op || strings.HasPrefix(l, op+" ") {
				out = append(out, l)
			}
		}
	}
	return out
}

type fakeImages struct {
	*calls
	pullErr map[string]error
	pushErr map[string]error
	saveErr error
	pushed  []string
	opts    []PushOptions
}

func (f *fakeImages) Pull(_ context.Context, ref string) error {
	f.record("pull", ref)
	return f.pullErr[ref]
}

func (f *fakeImages) Save(_ context.Context, refs []string, archive string) error {
	f.record("save", append([]string{archive}, refs...)...)
	if f.saveErr != nil {
		// a half written file must never become the archive
		_ = os.WriteFile(archive, []byte("partial"), 0o600)
		return f.saveErr
	}
	return os.WriteFile(archive, []byte(strings.Join(refs, "\n")), 0o600)
}

func (f *fakeImages) Load(_ context.Context, archive string) error {
	f.record("load", archive)
	return nil
}

func (f *fakeImages) Tag(_ context.Context, ref, newRef string) error {
	f.record("tag", ref, newRef)
	return nil
}

func (f *fakeImages) Push(_ context.Context, ref string, opts PushOptions) error {
	f.record("push", ref)
	f.pushed = append(f.pushed, ref)
	f.opts = append(f.opts, opts)
	return f.pushErr[ref]
}

type fakePolicies struct {
	*calls
	pullErr map[string]error
	pushErr map[string]error
	pushed  [][2]string
	opts    []PushOptions
}

func (f *fakePolicies) Pull(_ context.Context, uri string) error {
	f.record("policy-pull", uri)
	return f.pullErr[uri]
}

func (f *fakePolicies) Save(_ context.Context, uris []string, archive string) error {
	f.record("policy-save", append([]string{archive}, uris...)...)
	return os.WriteFile(archive, []byte(strings.Join(uris, "\n")), 0o600)
}

func (f *fakePolicies) Load(_ context.Context, archive string) error {
	f.record("policy-load", archive)
	return nil
}

func (f *fakePolicies) Push(_ context.Context, uri, target string, opts PushOptions) error {
	f.record("policy-push", uri, target)
	f.pushed = append(f.pushed, [2]string{uri, target})
	f.opts = append(f.opts, opts)
	return f.pushErr[uri]
}

type fakeCharts struct {
	*calls
	hits       []ChartVersion
	searchErr  error
	rendered   string
	pullErr    map[string]error
	installErr map[string]error
	installed  []InstallRequest
}

func (f *fakeCharts) Search(_ context.Context, prefix string) ([]ChartVersion, error) {
	f.record("search", prefix)
	return f.hits, f.searchErr
}

func (f *fakeCharts) Pull(_ context.Context, chart reference.Chart, destDir string) (string, error) {
	f.record("chart-pull", chart.String())
	if err := f.pullErr[chart.Name]; err != nil {
		return "", err
	}
	path := filepath.Join(destDir, chart.FileName())
	return path, os.WriteFile(path, []byte("chart"), 0o600)
}

func (f *fakeCharts) Template(_ context.Context, chart reference.Chart) ([]byte, error) {
	f.record("template", chart.String())
	return []byte(f.rendered), nil
}

func (f *fakeCharts) Install(_ context.Context, req InstallRequest) error {
	f.record("install", req.Release)
	if err := f.installErr[req.Release]; err != nil {
		return err
	}
	f.installed = append(f.installed, req)
	return nil
}

type fakeAssets struct {
	*calls
	assets  []Asset
	content map[string]string
	listErr error
}

func (f *fakeAssets) ListAssets(_ context.Context, tag string) ([]Asset, error) {
	f.record("list-assets", tag)
	return f.assets, f.listErr
}

func (f *fakeAssets) Fetch(_ context.Context, url string) ([]byte, error) {
	f.record("fetch", url)
	data, ok := f.content[url]
	if !ok {
		return nil, fmt.Errorf("404 %s", url)
	}
	return []byte(data), nil
}

type fakeReporter struct {
	lines []string
}

func (r *fakeReporter) Section(title string) { r.lines = append(r.lines, "section: "+title) }
func (r *fakeReporter) Info(msg string)      { r.lines = append(r.lines, "info: "+msg) }
func (r *fakeReporter) Success(msg string)   { r.lines = append(r.lines, "success: "+msg) }
func (r *fakeReporter) Warn(msg string)      { r.lines = append(r.lines, "warn: "+msg) }
func (r *fakeReporter) DryRun(action string) { r.lines = append(r.lines, "dry-run: "+action) }

func (r *fakeReporter) with(prefix string) []string {
	var out []string
	for _, l := range r.lines {
		if strings.HasPrefix(l, prefix+": ") {
			out = append(out, strings.TrimPrefix(l, prefix+": "))
		}
	}
	return out
}

// skips returns the skip decisions reported by a phase.
func (r *fakeReporter) skips() []string {
	var out []string
	for _, l := range r.with("info") {
		if strings.Contains(l, "skipping") {
			out = append(out, l)
		}
	}
	return out
}

var coreCharts = []string{
	"https://charts.kubewarden.io/kubewarden-crds:1.4.0",
	"https://charts.kubewarden.io/kubewarden-controller:2.0.5",
	"https://charts.kubewarden.io/kubewarden-defaults:1.9.0",
}

const certManagerChart = "https://charts.jetstack.io/cert-manager:v1.13.2"

func newManifest(images, policies, charts []string) *manifest.Manifest {
	m := manifest.New()
	m.AddImages(images...)
	m.AddPolicies(policies...)
	m.AddCharts(charts...)
	return m
}

func listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
