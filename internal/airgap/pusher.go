package airgap

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"kubewarden-airgap/pkg/manifest"
	"kubewarden-airgap/pkg/reference"
)

// Pusher replays the cached archives into the target registry. The manifest,
// not the archive content, decides what is pushed.
type Pusher struct {
	images   ImageTransport
	policies PolicyTransport
	logger   *zap.Logger
	reporter Reporter
}

func NewPusher(images ImageTransport, policies PolicyTransport, logger *zap.Logger, reporter Reporter) *Pusher {
	return &Pusher{
		images:   images,
		policies: policies,
		logger:   logger,
		reporter: reporterOrNop(reporter),
	}
}

// Push pushes images and policies. The categories are independent: a failure
// in one does not stop the other, and all failures are returned joined.
func (p *Pusher) Push(ctx context.Context, m *manifest.Manifest, opts Options) error {
	if err := opts.Validate(true); err != nil {
		return err
	}
	m, err := effectiveManifest(m, opts)
	if err != nil {
		return err
	}

	var errs []error
	if err := p.pushImages(ctx, m.Entries(manifest.CategoryImages), opts); err != nil {
		errs = append(errs, err)
	}

	if err := p.pushPolicies(ctx, m.Entries(manifest.CategoryPolicies), opts); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Pusher) pushImages(ctx context.Context, images []string, opts Options) error {
	archive := filepath.Join(opts.WorkDir, ImagesArchive)
	ok, err := p.prepare(ctx, manifest.CategoryImages, images, archive, opts, p.images.Load)
	if err != nil || !ok {
		return err
	}

	pushOpts := opts.PushOptions()
	for _, image := range images {
		target, err := reference.RetargetImage(image, opts.Registry)
		if err != nil {
			return err
		}
		if opts.DryRun {
			p.reporter.DryRun(fmt.Sprintf("tag %s as %s", image, target))
			p.reporter.DryRun(fmt.Sprintf("push %s", target))
			continue
		}
		if err := p.images.Tag(ctx, image, target); err != nil {
			return pushFailure(manifest.CategoryImages, image, target, err)
		}
		if err := p.images.Push(ctx, target, pushOpts); err != nil {
			return pushFailure(manifest.CategoryImages, image, target, err)
		}
		p.reporter.Success(fmt.Sprintf("Pushed %s", target))
	}
	return nil
}

func (p *Pusher) pushPolicies(ctx context.Context, policies []string, opts Options) error {
	archive := filepath.Join(opts.WorkDir, PoliciesArchive)
	ok, err := p.prepare(ctx, manifest.CategoryPolicies, policies, archive, opts, p.policies.Load)
	if err != nil || !ok {
		return err
	}

	pushOpts := opts.PushOptions()
	for _, uri := range policies {
		target, err := reference.RetargetPolicy(uri, opts.Registry)
		if err != nil {
			return err
		}
		if opts.DryRun {
			p.reporter.DryRun(fmt.Sprintf("push %s as %s", uri, target))
			continue
		}
		if err := p.policies.Push(ctx, uri, target, pushOpts); err != nil {
			return pushFailure(manifest.CategoryPolicies, uri, target, err)
		}
		p.reporter.Success(fmt.Sprintf("Pushed %s", target))
	}
	return nil
}

// prepare checks the preconditions of a category and loads its archive. It
// returns false when the category is skipped.
func (p *Pusher) prepare(ctx context.Context, category manifest.Category, entries []string, archive string, opts Options,
	load func(context.Context, string) error,
) (bool, error) {
	p.reporter.Section(fmt.Sprintf("Pushing %s to %s", category, opts.Registry))
	if len(entries) == 0 {
		p.reporter.Info(fmt.Sprintf("No %s in manifest, skipping", category))
		return false, nil
	}
	exists, err := fileExists(archive)
	if err != nil {
		return false, err
	}
	if !exists {
		missing := newWithSentinel(ErrMissingArchive, fmt.Sprintf("%s not found, skipping %s; run pull first", archive, category)).
			WithContext("archive", archive)
		p.reporter.Warn(missing.Error())
		p.logger.Debug("archive missing", zap.String("category", string(category)), zap.Error(missing))
		return false, nil
	}
	if opts.DryRun {
		p.reporter.DryRun(fmt.Sprintf("load %s", archive))
		return true, nil
	}
	if err := load(ctx, archive); err != nil {
		return false, wrapWithSentinelAndContext(ErrTransportFailed, err,
			fmt.Sprintf("failed to load %s: %v", archive, err),
			map[string]any{"category": string(category), "archive": archive})
	}
	return true, nil
}

func pushFailure(category manifest.Category, source, target string, err error) error {
	return wrapWithSentinelAndContext(ErrTransportFailed, err,
		fmt.Sprintf("failed to push %s to %s: %v", source, target, err),
		map[string]any{"category": string(category), "reference": source, "target": target})
}
