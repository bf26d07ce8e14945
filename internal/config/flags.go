package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// BindFlags registers every option on fs, bound directly to the fields of c.
// The current values of c become the flag defaults shown in --help.
func BindFlags(fs *pflag.FlagSet, c *Config) {
	fs.StringVarP(&c.ConfigFile, "config", "c", c.ConfigFile, "YAML config file")

	fs.IntVarP(&c.MaxWidth, "max-width", "W", c.MaxWidth, "maximum output width in pixels (0 = unbounded)")
	fs.IntVarP(&c.MaxHeight, "max-height", "H", c.MaxHeight, "maximum output height in pixels (0 = unbounded)")
	fs.StringVar(&c.Filter, "filter", c.Filter, "resample filter: lanczos, catmullrom, linear, box, nearest")
	fs.BoolVar(&c.Sharpen, "sharpen", c.Sharpen, "sharpen images after downscaling")

	fs.StringVarP(&c.Format, "format", "f", c.Format, "output format: keep, jpeg, png, webp, gif, bmp, tiff")
	fs.IntVarP(&c.JPEGQuality, "jpeg-quality", "q", c.JPEGQuality, "JPEG quality (1-100)")
	fs.IntVar(&c.WebPQuality, "webp-quality", c.WebPQuality, "WebP quality (0-100)")
	fs.BoolVar(&c.WebPLossless, "webp-lossless", c.WebPLossless, "encode WebP losslessly")
	fs.StringVar((*string)(&c.PNGCompression), "png-compression", string(c.PNGCompression), "PNG compression: default, none, fast, best")
	fs.BoolVar(&c.Quantize, "quantize", c.Quantize, "reduce PNG output to a 256-colour palette")
	fs.IntVar(&c.QuantizeIters, "quantize-iters", c.QuantizeIters, "palette clustering iterations")
	fs.StringVar(&c.Background, "background", c.Background, "fill colour for transparency when writing JPEG")
	fs.BoolVar(&c.AutoOrient, "auto-orient", c.AutoOrient, "apply EXIF orientation")

	fs.StringVarP((*string)(&c.Rename), "rename", "r", string(c.Rename), "rename files: none, slug, hash, date")

	fs.BoolVar(&c.CopyOther, "copy-other", c.CopyOther, "copy non-image files unchanged")
	fs.BoolVar(&c.SkipExisting, "skip-existing", c.SkipExisting, "skip files whose output is newer than the source")
	fs.BoolVar(&c.Clean, "clean", c.Clean, "clear a non-empty output directory before converting")
	fs.BoolVarP(&c.Yes, "yes", "y", c.Yes, "do not ask before clearing the output directory")
	fs.BoolVarP(&c.DryRun, "dry-run", "n", c.DryRun, "log what would be done without writing anything")
	fs.IntVarP(&c.Jobs, "jobs", "j", c.Jobs, "number of images converted in parallel")
	fs.BoolVarP(&c.Watch, "watch", "w", c.Watch, "keep running and convert files as they change")

	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "also write logs to this file")
}

// Resolve rebuilds c from defaults, the config file named by --config, the
// environment, and finally the flags set explicitly on fs. Flags always win.
//
// fs must have been bound to c with BindFlags and already parsed.
func Resolve(fs *pflag.FlagSet, c *Config) error {
	explicit := make(map[string]string)
	fs.Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	configFile := c.ConfigFile
	*c = Default()
	c.ConfigFile = configFile

	if configFile != "" {
		if err := LoadFile(configFile, c); err != nil {
			return err
		}
	}
	if err := LoadEnv(c); err != nil {
		return err
	}

	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("failed to apply --%s: %w", name, err)
		}
	}
	return nil
}
