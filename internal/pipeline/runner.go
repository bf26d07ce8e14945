package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Run walks the input tree in lexical order, mirrors every directory and
// converts every file on up to cfg.Jobs workers. It returns once all
// dispatched files are done.
//
// Per-file failures are counted in the returned stats, not returned as an
// error. The error result is reserved for walk failures and cancellation;
// stats are returned in both cases.
func (p *Processor) Run(ctx context.Context) (*RunStats, error) {
	start := time.Now()
	root := p.cfg.InputDir

	var g errgroup.Group
	g.SetLimit(p.cfg.Jobs)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			p.stats.record(Failed, 0, 0)
			p.log.Warn("cannot read", zap.String("path", p.rel(path)), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return p.HandleDir(path)
		}
		if !d.Type().IsRegular() {
			p.log.Debug("skipped, not a regular file", zap.String("file", p.rel(path)))
			return nil
		}

		// Output paths are claimed here, in walk order, so collision
		// suffixes do not depend on which worker finishes first.
		t, err := p.plan(path)
		if err != nil {
			p.fail(path, err)
			return nil
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := p.process(t); err != nil {
				p.fail(path, err)
			}
			return nil
		})
		return nil
	})
	_ = g.Wait()

	p.logSummary(time.Since(start))

	if walkErr != nil {
		return p.stats, fmt.Errorf("failed to walk %s: %w", root, walkErr)
	}
	return p.stats, nil
}

func (p *Processor) logSummary(elapsed time.Duration) {
	s := p.stats
	p.log.Info("run complete",
		zap.Int("total", s.Total),
		zap.Int("converted", s.Converted),
		zap.Int("copied", s.Copied),
		zap.Int("skipped", s.Skipped),
		zap.Int("failed", s.Failed),
		zap.String("input", FormatBytes(s.InputBytes)),
		zap.String("output", FormatBytes(s.OutputBytes)),
		zap.String("saved", FormatBytes(s.SpaceSaved())),
		zap.Duration("elapsed", elapsed.Round(time.Millisecond)),
	)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// FormatBytes renders n with a binary unit suffix, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	const unit = 1024
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	if n < unit {
		return fmt.Sprintf("%s%d B", sign, n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%s%.1f %ciB", sign, float64(n)/float64(div), "KMGTPE"[exp])
}
