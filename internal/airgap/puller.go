package airgap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"kubewarden-airgap/pkg/manifest"
	"kubewarden-airgap/pkg/reference"
)

// Well-known archive names inside the work directory.
const (
	ImagesArchive   = "kubewarden-images.tar"
	PoliciesArchive = "kubewarden-policies.tar.gz"
)

const partialSuffix = ".partial"

// Puller fills the local cache from a manifest. An existing archive or chart
// file is the only marker that its content has been fetched.
type Puller struct {
	images   ImageTransport
	policies PolicyTransport
	charts   ChartClient
	logger   *zap.Logger
	reporter Reporter
}

func NewPuller(images ImageTransport, policies PolicyTransport, charts ChartClient, logger *zap.Logger, reporter Reporter) *Puller {
	return &Puller{
		images:   images,
		policies: policies,
		charts:   charts,
		logger:   logger,
		reporter: reporterOrNop(reporter),
	}
}

// Pull caches images, then policies, then charts. The first failure aborts
// the phase.
func (p *Puller) Pull(ctx context.Context, m *manifest.Manifest, opts Options) error {
	if err := opts.Validate(false); err != nil {
		return err
	}
	m, err := effectiveManifest(m, opts)
	if err != nil {
		return err
	}

	if !opts.DryRun {
		if err := os.MkdirAll(opts.WorkDir, 0o750); err != nil {
			return wrapWithSentinelAndContext(ErrArchiveFailed, err,
				fmt.Sprintf("failed to create work directory %s: %v", opts.WorkDir, err),
				map[string]any{"workdir": opts.WorkDir})
		}
		lock, err := LockWorkspace(opts.WorkDir)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				p.logger.Warn("failed to release work directory lock", zap.Error(err))
			}
		}()
	}

	if err := p.pullArchive(ctx, opts, archiveJob{
		category: manifest.CategoryImages,
		entries:  m.Entries(manifest.CategoryImages),
		archive:  filepath.Join(opts.WorkDir, ImagesArchive),
		pull:     p.images.Pull,
		save:     p.images.Save,
	}); err != nil {
		return err
	}

	if err := p.pullArchive(ctx, opts, archiveJob{
		category: manifest.CategoryPolicies,
		entries:  m.Entries(manifest.CategoryPolicies),
		archive:  filepath.Join(opts.WorkDir, PoliciesArchive),
		pull:     p.policies.Pull,
		save:     p.policies.Save,
	}); err != nil {
		return err
	}

	return p.pullCharts(ctx, m, opts)
}

type archiveJob struct {
	category manifest.Category
	entries  []string
	archive  string
	pull     func(ctx context.Context, ref string) error
	save     func(ctx context.Context, refs []string, archive string) error
}

func (p *Puller) pullArchive(ctx context.Context, opts Options, job archiveJob) error {
	p.reporter.Section(fmt.Sprintf("Pulling %s", job.category))
	if len(job.entries) == 0 {
		p.reporter.Info(fmt.Sprintf("No %s in manifest, skipping", job.category))
		return nil
	}
	exists, err := fileExists(job.archive)
	if err != nil {
		return err
	}
	if exists {
		p.reporter.Info(fmt.Sprintf("%s already exists, skipping %s", job.archive, job.category))
		return nil
	}

	for _, ref := range job.entries {
		if opts.DryRun {
			p.reporter.DryRun(fmt.Sprintf("pull %s", ref))
			continue
		}
		p.reporter.Info(fmt.Sprintf("Pulling %s", ref))
		if err := job.pull(ctx, ref); err != nil {
			return wrapWithSentinelAndContext(ErrTransportFailed, err,
				fmt.Sprintf("failed to pull %s: %v", ref, err),
				map[string]any{"category": string(job.category), "reference": ref})
		}
	}

	if opts.DryRun {
		p.reporter.DryRun(fmt.Sprintf("save %d %s to %s", len(job.entries), job.category, job.archive))
		return nil
	}
	if err := p.saveAtomically(ctx, job); err != nil {
		return err
	}
	p.reporter.Success(fmt.Sprintf("Saved %d %s to %s", len(job.entries), job.category, job.archive))
	return nil
}

// saveAtomically writes the archive under a temporary name and renames it
// into place, so an interrupted save never looks like a complete cache.
func (p *Puller) saveAtomically(ctx context.Context, job archiveJob) error {
	partial := job.archive + partialSuffix
	if err := os.Remove(partial); err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrapWithSentinelAndContext(ErrArchiveFailed, err,
			fmt.Sprintf("failed to remove stale %s: %v", partial, err),
			map[string]any{"archive": partial})
	}
	if err := job.save(ctx, job.entries, partial); err != nil {
		_ = os.Remove(partial)
		return wrapWithSentinelAndContext(ErrTransportFailed, err,
			fmt.Sprintf("failed to save %s archive: %v", job.category, err),
			map[string]any{"category": string(job.category), "archive": job.archive})
	}
	if err := os.Rename(partial, job.archive); err != nil {
		_ = os.Remove(partial)
		return wrapWithSentinelAndContext(ErrArchiveFailed, err,
			fmt.Sprintf("failed to move %s into place: %v", job.archive, err),
			map[string]any{"archive": job.archive})
	}
	p.logger.Debug("archive written", zap.String("archive", job.archive), zap.Int("entries", len(job.entries)))
	return nil
}

func (p *Puller) pullCharts(ctx context.Context, m *manifest.Manifest, opts Options) error {
	p.reporter.Section("Pulling charts")
	for _, entry := range m.Entries(manifest.CategoryCharts) {
		chart, err := reference.ParseChart(entry)
		if err != nil {
			return err
		}
		file := filepath.Join(opts.WorkDir, chart.FileName())
		exists, err := fileExists(file)
		if err != nil {
			return err
		}
		if exists {
			p.reporter.Info(fmt.Sprintf("%s already exists, skipping", file))
			continue
		}
		if opts.DryRun {
			p.reporter.DryRun(fmt.Sprintf("pull chart %s into %s", chart, opts.WorkDir))
			continue
		}
		if _, err := p.charts.Pull(ctx, chart, opts.WorkDir); err != nil {
			return wrapWithSentinelAndContext(ErrTransportFailed, err,
				fmt.Sprintf("failed to pull chart %s: %v", chart, err),
				map[string]any{"category": string(manifest.CategoryCharts), "reference": entry})
		}
		p.reporter.Success(fmt.Sprintf("Pulled %s", chart.FileName()))
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, wrapWithSentinelAndContext(ErrArchiveFailed, err,
			fmt.Sprintf("failed to check %s: %v", path, err),
			map[string]any{"path": path})
	}
}
