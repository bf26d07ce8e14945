package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ironsheep/image-convert/internal/config"
	"github.com/ironsheep/image-convert/internal/imaging"
	"github.com/ironsheep/image-convert/internal/naming"
)

// Processor converts files from the input tree into the output tree.
type Processor struct {
	cfg      *config.Config
	log      *zap.Logger
	resolver *naming.Resolver
	filter   imaging.Filter
	target   imaging.Format
	enc      imaging.EncodeOptions
	stats    *RunStats
}

// New validates the encoder-facing parts of cfg and returns a Processor.
// cfg is expected to have passed Validate.
func New(cfg *config.Config, log *zap.Logger) (*Processor, error) {
	filter, err := imaging.ParseFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}
	level, err := cfg.PNGCompression.Level()
	if err != nil {
		return nil, err
	}
	var bg color.Color = color.White
	if cfg.Background != "" {
		if bg, err = imaging.ParseHexColor(cfg.Background); err != nil {
			return nil, fmt.Errorf("invalid background: %w", err)
		}
	}

	return &Processor{
		cfg:      cfg,
		log:      log,
		resolver: naming.NewResolver(),
		filter:   filter,
		target:   cfg.TargetFormat(),
		enc: imaging.EncodeOptions{
			JPEGQuality:    cfg.JPEGQuality,
			WebPQuality:    float32(cfg.WebPQuality),
			WebPLossless:   cfg.WebPLossless,
			PNGCompression: level,
			Quantize:       cfg.Quantize,
			QuantizeIters:  cfg.QuantizeIters,
			Background:     bg,
		},
		stats: &RunStats{},
	}, nil
}

// Stats returns the counters accumulated so far.
func (p *Processor) Stats() *RunStats {
	return p.stats
}

// rel returns path relative to the input root, for logging.
func (p *Processor) rel(path string) string {
	if r, err := filepath.Rel(p.cfg.InputDir, path); err == nil {
		return r
	}
	return path
}

// outputDir returns the directory in the output tree mirroring the
// directory that contains path.
func (p *Processor) outputDir(path string) (string, error) {
	r, err := filepath.Rel(p.cfg.InputDir, filepath.Dir(path))
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the input directory", path)
	}
	return filepath.Join(p.cfg.OutputDir, r), nil
}

// HandleDir mirrors the input directory dir into the output tree.
func (p *Processor) HandleDir(dir string) error {
	r, err := filepath.Rel(p.cfg.InputDir, dir)
	if err != nil {
		return fmt.Errorf("failed to mirror %s: %w", dir, err)
	}
	out := filepath.Join(p.cfg.OutputDir, r)
	if p.cfg.DryRun {
		p.log.Debug("would create directory", zap.String("dir", out))
		return nil
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	return nil
}

// HandleFile processes one input file and records the outcome. Errors are
// logged and counted as well as returned.
func (p *Processor) HandleFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t, err := p.plan(path)
	if err == nil {
		err = p.process(t)
	}
	if err != nil {
		p.fail(path, err)
	}
	return err
}

func (p *Processor) fail(path string, err error) {
	p.stats.record(Failed, 0, 0)
	p.log.Error("conversion failed", zap.String("file", p.rel(path)), zap.Error(err))
}

// task is one input file whose output path has been claimed.
type task struct {
	path  string
	dst   string // empty for skipped non-image files
	image bool
	to    imaging.Format
}

// plan picks and claims the output path of path. Collision suffixes are
// handed out in call order, so callers must plan files in walk order.
func (p *Processor) plan(path string) (*task, error) {
	t := &task{path: path, image: imaging.IsImage(path)}
	if !t.image && !p.cfg.CopyOther {
		return t, nil
	}
	dir, err := p.outputDir(path)
	if err != nil {
		return nil, err
	}
	if !t.image {
		t.dst = p.resolver.Resolve(path, filepath.Join(dir, filepath.Base(path)))
		return t, nil
	}

	from, err := imaging.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	t.to = from
	if p.target != "" {
		t.to = p.target
	}
	stem, err := p.cfg.Rename.Stem(path, nil)
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(path)
	if t.to != from {
		ext = t.to.Ext()
	}
	if p.cfg.Rename == naming.ModeSlug {
		ext = strings.ToLower(ext)
	}
	t.dst = p.resolver.Resolve(path, filepath.Join(dir, stem+ext))
	return t, nil
}

func (p *Processor) process(t *task) error {
	if t.image {
		return p.convert(t)
	}
	return p.copyOther(t)
}

// convert runs the transcoder on a single image.
func (p *Processor) convert(t *task) error {
	if p.cfg.SkipExisting && upToDate(t.path, t.dst) {
		p.stats.record(Skipped, 0, 0)
		p.log.Debug("up to date", zap.String("file", p.rel(t.path)))
		return nil
	}
	if p.cfg.DryRun {
		p.stats.record(Converted, 0, 0)
		p.log.Info("would convert", zap.String("file", p.rel(t.path)), zap.String("to", t.dst), zap.String("format", string(t.to)))
		return nil
	}

	src, err := imaging.Load(t.path, p.cfg.AutoOrient)
	if err != nil {
		return err
	}

	// Re-encoding an animation would keep only its first frame.
	if src.Animated && t.to == imaging.GIF {
		n, err := writeAtomic(t.dst, func(w io.Writer) error {
			_, err := w.Write(src.Data)
			return err
		})
		if err != nil {
			return err
		}
		p.stats.record(Copied, src.Info.FileSizeBytes, n)
		p.log.Info("copied animation", zap.String("file", p.rel(t.path)), zap.String("to", t.dst))
		return nil
	}
	if src.Animated {
		p.log.Warn("animated gif reduced to first frame", zap.String("file", p.rel(t.path)))
	}

	img, resized := imaging.Fit(src.Image, p.cfg.MaxWidth, p.cfg.MaxHeight, p.filter)
	if resized && p.cfg.Sharpen {
		img = imaging.Sharpen(img)
	}

	n, err := writeAtomic(t.dst, func(w io.Writer) error {
		return imaging.Encode(w, img, t.to, p.enc)
	})
	if err != nil {
		return err
	}

	p.stats.record(Converted, src.Info.FileSizeBytes, n)
	p.log.Info("converted",
		zap.String("file", p.rel(t.path)),
		zap.String("to", t.dst),
		zap.String("format", string(t.to)),
		zap.Int("src_width", src.Info.Width),
		zap.Int("src_height", src.Info.Height),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.Int64("bytes_in", src.Info.FileSizeBytes),
		zap.Int64("bytes_out", n),
	)
	return nil
}

// copyOther copies a non-image file verbatim when CopyOther is set and skips
// it otherwise.
func (p *Processor) copyOther(t *task) error {
	if t.dst == "" {
		p.stats.record(Skipped, 0, 0)
		p.log.Debug("skipped, not an image", zap.String("file", p.rel(t.path)))
		return nil
	}
	if p.cfg.SkipExisting && upToDate(t.path, t.dst) {
		p.stats.record(Skipped, 0, 0)
		p.log.Debug("up to date", zap.String("file", p.rel(t.path)))
		return nil
	}
	if p.cfg.DryRun {
		p.stats.record(Copied, 0, 0)
		p.log.Info("would copy", zap.String("file", p.rel(t.path)), zap.String("to", t.dst))
		return nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", t.path, err)
	}
	defer f.Close()

	n, err := writeAtomic(t.dst, func(w io.Writer) error {
		_, err := io.Copy(w, f)
		return err
	})
	if err != nil {
		return err
	}
	p.stats.record(Copied, n, n)
	p.log.Debug("copied", zap.String("file", p.rel(t.path)), zap.String("to", t.dst))
	return nil
}
