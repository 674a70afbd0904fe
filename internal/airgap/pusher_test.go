package airgap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kubewarden-airgap/pkg/reference"
)

type pushFixture struct {
	calls    *calls
	images   *fakeImages
	policies *fakePolicies
	reporter *fakeReporter
	pusher   *Pusher
}

func newPushFixture() *pushFixture {
	c := &calls{}
	f := &pushFixture{
		calls:    c,
		images:   &fakeImages{calls: c},
		policies: &fakePolicies{calls: c},
		reporter: &fakeReporter{},
	}
	f.pusher = NewPusher(f.images, f.policies, zap.NewNop(), f.reporter)
	return f
}

// cachedWorkDir returns a work directory holding both archives.
func cachedWorkDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{ImagesArchive, PoliciesArchive} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("archive"), 0o600))
	}
	return dir
}

func TestPusherPush(t *testing.T) {
	t.Run("retargets every entry", func(t *testing.T) {
		dir := cachedWorkDir(t)
		f := newPushFixture()
		m := newManifest(
			[]string{"docker.io/x:1", "ghcr.io/kubewarden/policy-server:v1.9.0"},
			[]string{"registry://ghcr.io/org/pol:v1"},
			coreCharts)

		err := f.pusher.Push(context.Background(), m, Options{WorkDir: dir, Registry: "localhost:5000"})
		require.NoError(t, err)

		want := []string{
			"load " + filepath.Join(dir, ImagesArchive),
			"tag docker.io/x:1 localhost:5000/x:1",
			"push localhost:5000/x:1",
			"tag ghcr.io/kubewarden/policy-server:v1.9.0 localhost:5000/kubewarden/policy-server:v1.9.0",
			"push localhost:5000/kubewarden/policy-server:v1.9.0",
			"policy-load " + filepath.Join(dir, PoliciesArchive),
			"policy-push registry://ghcr.io/org/pol:v1 registry://localhost:5000/org/pol:v1",
		}
		if diff := cmp.Diff(want, f.calls.log); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
		for _, opts := range append(f.images.opts, f.policies.opts...) {
			assert.Empty(t, opts.InsecureRegistries)
		}
	})

	t.Run("pushed images resolve to the target registry", func(t *testing.T) {
		dir := cachedWorkDir(t)
		f := newPushFixture()
		m := newManifest([]string{"quay.io/jetstack/cert-manager-webhook:v1.13.2", "docker.io/x:1"}, nil, coreCharts)

		require.NoError(t, f.pusher.Push(context.Background(), m, Options{WorkDir: dir, Registry: "registry.internal:5000"}))
		require.Len(t, f.images.pushed, 2)
		for _, ref := range f.images.pushed {
			parsed, err := reference.ParseImage(ref)
			require.NoError(t, err)
			assert.Equal(t, "registry.internal:5000", parsed.Authority)
		}
	})

	t.Run("insecure registry is passed to every push", func(t *testing.T) {
		dir := cachedWorkDir(t)
		f := newPushFixture()
		m := newManifest([]string{"docker.io/x:1"}, []string{"registry://ghcr.io/org/pol:v1"}, coreCharts)

		require.NoError(t, f.pusher.Push(context.Background(), m, Options{WorkDir: dir, Registry: "localhost:5000", Insecure: true}))
		for _, opts := range append(f.images.opts, f.policies.opts...) {
			assert.True(t, opts.IsInsecure("localhost:5000"))
		}
	})

	t.Run("missing archive warns and skips", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, PoliciesArchive), []byte("archive"), 0o600))
		f := newPushFixture()
		m := newManifest([]string{"docker.io/x:1"}, []string{"registry://ghcr.io/org/pol:v1"}, coreCharts)

		require.NoError(t, f.pusher.Push(context.Background(), m, Options{WorkDir: dir, Registry: "localhost:5000"}))
		assert.Zero(t, f.images.count("load"))
		assert.Zero(t, f.images.count("push"))
		assert.Equal(t, 1, f.policies.count("policy-push"))

		warnings := f.reporter.with("warn")
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], ImagesArchive)
		assert.Contains(t, warnings[0], "run pull first")
	})

	t.Run("empty category is skipped", func(t *testing.T) {
		dir := cachedWorkDir(t)
		f := newPushFixture()
		m := newManifest(nil, []string{"registry://ghcr.io/org/pol:v1"}, coreCharts)

		require.NoError(t, f.pusher.Push(context.Background(), m, Options{WorkDir: dir, Registry: "localhost:5000"}))
		assert.Zero(t, f.images.count("load"))
		assert.Empty(t, f.reporter.with("warn"))
	})

	t.Run("categories fail independently", func(t *testing.T) {
		dir := cachedWorkDir(t)
		f := newPushFixture()
		f.images.pushErr = map[string]error{"localhost:5000/x:1": errors.New("denied")}
		m := newManifest([]string{"docker.io/x:1", "docker.io/y:2"}, []string{"registry://ghcr.io/org/pol:v1"}, coreCharts)

		err := f.pusher.Push(context.Background(), m, Options{WorkDir: dir, Registry: "localhost:5000"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTransportFailed)
		assert.Contains(t, err.Error(), "docker.io/x:1")

		assert.Equal(t, []string{"localhost:5000/x:1"}, f.images.pushed)
		assert.Len(t, f.policies.pushed, 1)
	})

	t.Run("both categories failing reports both", func(t *testing.T) {
		dir := cachedWorkDir(t)
		f := newPushFixture()
		f.images.pushErr = map[string]error{"localhost:5000/x:1": errors.New("denied")}
		f.policies.pushErr = map[string]error{"registry://ghcr.io/org/pol:v1": errors.New("unauthorized")}
		m := newManifest([]string{"docker.io/x:1"}, []string{"registry://ghcr.io/org/pol:v1"}, coreCharts)

		err := f.pusher.Push(context.Background(), m, Options{WorkDir: dir, Registry: "localhost:5000"})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "denied") && strings.Contains(err.Error(), "unauthorized"), err.Error())
	})

	t.Run("registry is required", func(t *testing.T) {
		f := newPushFixture()
		err := f.pusher.Push(context.Background(), newManifest(nil, nil, coreCharts), Options{WorkDir: t.TempDir()})
		assert.ErrorIs(t, err, ErrRegistryRequired)
		assert.Empty(t, f.calls.log)
	})

	t.Run("malformed registry is rejected", func(t *testing.T) {
		f := newPushFixture()
		err := f.pusher.Push(context.Background(), newManifest(nil, nil, coreCharts), Options{WorkDir: t.TempDir(), Registry: "https://localhost:5000"})
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})

	t.Run("dry run reports every action", func(t *testing.T) {
		dir := cachedWorkDir(t)
		f := newPushFixture()
		m := newManifest([]string{"docker.io/x:1"}, []string{"registry://ghcr.io/org/pol:v1"}, coreCharts)

		require.NoError(t, f.pusher.Push(context.Background(), m, Options{WorkDir: dir, Registry: "localhost:5000", DryRun: true}))
		assert.Empty(t, f.calls.mutating())

		want := []string{
			"load " + filepath.Join(dir, ImagesArchive),
			"tag docker.io/x:1 as localhost:5000/x:1",
			"push localhost:5000/x:1",
			"load " + filepath.Join(dir, PoliciesArchive),
			"push registry://ghcr.io/org/pol:v1 as registry://localhost:5000/org/pol:v1",
		}
		if diff := cmp.Diff(want, f.reporter.with("dry-run")); diff != "" {
			t.Errorf("dry-run actions mismatch (-want +got):\n%s", diff)
		}
	})

	for _, local := range []string{"./policy.wasm", "file:///opt/policies/pol.wasm"} {
		t.Run("local policy cannot be pushed "+local, func(t *testing.T) {
			dir := cachedWorkDir(t)
			f := newPushFixture()
			m := newManifest(nil, []string{local}, coreCharts)

			err := f.pusher.Push(context.Background(), m, Options{WorkDir: dir, Registry: "localhost:5000"})
			assert.ErrorIs(t, err, reference.ErrMalformedReference)
			assert.Zero(t, f.policies.count("policy-push"))
			assert.Empty(t, f.policies.pushed)
		})
	}
}
