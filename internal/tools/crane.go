package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/tarball"

	"kubewarden-airgap/internal/airgap"
)

// CraneImages is a daemonless image transport. Pulled or loaded images are
// kept in memory, keyed by their fully qualified name, until they are saved
// or pushed.
type CraneImages struct {
	images map[string]v1.Image
	opts   []crane.Option
}

var _ airgap.ImageTransport = (*CraneImages)(nil)

// NewCraneImages creates a transport. opts are added to every registry call.
func NewCraneImages(opts ...crane.Option) *CraneImages {
	return &CraneImages{images: map[string]v1.Image{}, opts: opts}
}

func (c *CraneImages) Pull(ctx context.Context, ref string) error {
	key, err := imageKey(ref)
	if err != nil {
		return err
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("pulling image", "ref", ref)
	img, err := crane.Pull(ref, c.options(ctx)...)
	if err != nil {
		terr := transportError("pull", ref, err)
		logTransportError(logr.FromContextOrDiscard(ctx), terr, "crane pull failed")
		return terr
	}
	c.images[key] = img
	return nil
}

func (c *CraneImages) Save(ctx context.Context, refs []string, archive string) error {
	m := make(map[string]v1.Image, len(refs))
	for _, ref := range refs {
		img, err := c.lookup(ref)
		if err != nil {
			return err
		}
		m[archiveTag(ref)] = img
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("saving images", "count", len(m), "archive", archive)
	if err := crane.MultiSave(m, archive); err != nil {
		return fmt.Errorf("save %s: %w", archive, err)
	}
	return nil
}

// Load reads every tagged image of a docker-save style tarball.
func (c *CraneImages) Load(ctx context.Context, archive string) error {
	opener := func() (io.ReadCloser, error) {
		// #nosec G304 -- archive is a fixed name inside the work directory.
		return os.Open(archive)
	}
	manifest, err := tarball.LoadManifest(opener)
	if err != nil {
		return fmt.Errorf("load %s: %w", archive, err)
	}
	for _, desc := range manifest {
		for _, repoTag := range desc.RepoTags {
			tag, err := name.NewTag(repoTag)
			if err != nil {
				return fmt.Errorf("load %s: %w", archive, err)
			}
			img, err := tarball.Image(opener, &tag)
			if err != nil {
				return fmt.Errorf("load %s from %s: %w", repoTag, archive, err)
			}
			c.images[tag.Name()] = img
			if digest, ok := digestFromTag(tag); ok {
				c.images[digest] = img
			}
		}
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("loaded images", "archive", archive, "count", len(manifest))
	return nil
}

func (c *CraneImages) Tag(_ context.Context, ref, newRef string) error {
	img, err := c.lookup(ref)
	if err != nil {
		return err
	}
	key, err := imageKey(newRef)
	if err != nil {
		return err
	}
	c.images[key] = img
	return nil
}

// Push uploads ref. Registries on the insecure list are reached over plain
// HTTP or with unverified TLS.
func (c *CraneImages) Push(ctx context.Context, ref string, opts airgap.PushOptions) error {
	img, err := c.lookup(ref)
	if err != nil {
		return err
	}
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return fmt.Errorf("parse %s: %w", ref, err)
	}
	o := c.options(ctx)
	if opts.IsInsecure(parsed.Context().RegistryStr()) {
		o = append(o, crane.Insecure)
	}
	logr.FromContextOrDiscard(ctx).V(1).Info("pushing image", "ref", ref)
	if err := crane.Push(img, ref, o...); err != nil {
		terr := transportError("push", ref, err).WithContext("registry", parsed.Context().RegistryStr())
		logTransportError(logr.FromContextOrDiscard(ctx), terr, "crane push failed")
		return terr
	}
	return nil
}

func (c *CraneImages) lookup(ref string) (v1.Image, error) {
	key, err := imageKey(ref)
	if err != nil {
		return nil, err
	}
	img, ok := c.images[key]
	if !ok {
		return nil, fmt.Errorf("image %s is not in the local working set", ref)
	}
	return img, nil
}

func (c *CraneImages) options(ctx context.Context) []crane.Option {
	o := make([]crane.Option, 0, len(c.opts)+1)
	o = append(o, c.opts...)
	return append(o, crane.WithContext(ctx))
}

func imageKey(ref string) (string, error) {
	r, err := name.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", ref, err)
	}
	return r.Name(), nil
}

const digestTagPrefix = "sha256-"

// archiveTag turns repo@sha256:x into repo:sha256-x, since the tarball only
// records tagged names.
func archiveTag(ref string) string {
	repo, digest, ok := strings.Cut(ref, "@sha256:")
	if !ok {
		return ref
	}
	if i := strings.LastIndex(repo, ":"); i > strings.LastIndex(repo, "/") {
		repo = repo[:i]
	}
	return repo + ":" + digestTagPrefix + digest
}

// digestFromTag reverses archiveTag.
func digestFromTag(tag name.Tag) (string, bool) {
	t := tag.TagStr()
	if !strings.HasPrefix(t, digestTagPrefix) {
		return "", false
	}
	d, err := name.NewDigest(tag.Context().Name() + "@sha256:" + strings.TrimPrefix(t, digestTagPrefix))
	if err != nil {
		return "", false
	}
	return d.Name(), true
}
