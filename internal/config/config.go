// Package config holds runtime configuration: defaults, the optional YAML
// config file, the IMAGE_CONVERT_* environment overlay, CLI flag binding and
// validation.
package config

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-convert/internal/imaging"
	"github.com/ironsheep/image-convert/internal/naming"
)

// EnvPrefix is the prefix of every environment variable read by LoadEnv.
const EnvPrefix = "IMAGE_CONVERT"

// FormatKeep keeps each image in its source format.
const FormatKeep = "keep"

// PNGCompression names a PNG compression level.
type PNGCompression string

const (
	PNGDefault PNGCompression = "default"
	PNGNone    PNGCompression = "none"
	PNGFast    PNGCompression = "fast"
	PNGBest    PNGCompression = "best"
)

// Level maps the name onto the encoder constant.
func (p PNGCompression) Level() (png.CompressionLevel, error) {
	switch p {
	case PNGDefault:
		return png.DefaultCompression, nil
	case PNGNone:
		return png.NoCompression, nil
	case PNGFast:
		return png.BestSpeed, nil
	case PNGBest:
		return png.BestCompression, nil
	}
	return 0, fmt.Errorf("invalid png compression %q (use default, none, fast or best)", string(p))
}

// Config holds all runtime settings. It is populated by [Default], then by
// the config file, the environment and finally the CLI flags that were set
// explicitly.
type Config struct {
	// Paths (positional args, or the config file).
	InputDir  string `yaml:"input" envconfig:"INPUT"`
	OutputDir string `yaml:"output" envconfig:"OUTPUT"`

	// ConfigFile is only ever set from the --config flag.
	ConfigFile string `yaml:"-" ignored:"true"`

	// Resize policy. Zero leaves that axis unbounded.
	MaxWidth  int    `yaml:"max_width" envconfig:"MAX_WIDTH"`
	MaxHeight int    `yaml:"max_height" envconfig:"MAX_HEIGHT"`
	Filter    string `yaml:"filter" envconfig:"FILTER"`   // Default: "lanczos".
	Sharpen   bool   `yaml:"sharpen" envconfig:"SHARPEN"` // Sharpen after a downscale.

	// Encoding.
	Format         string         `yaml:"format" envconfig:"FORMAT"`             // Default: "keep".
	JPEGQuality    int            `yaml:"jpeg_quality" envconfig:"JPEG_QUALITY"` // Default: 82.
	WebPQuality    int            `yaml:"webp_quality" envconfig:"WEBP_QUALITY"` // Default: 80.
	WebPLossless   bool           `yaml:"webp_lossless" envconfig:"WEBP_LOSSLESS"`
	PNGCompression PNGCompression `yaml:"png_compression" envconfig:"PNG_COMPRESSION"` // Default: "best".
	Quantize       bool           `yaml:"quantize" envconfig:"QUANTIZE"`
	QuantizeIters  int            `yaml:"quantize_iters" envconfig:"QUANTIZE_ITERS"` // Default: 5.
	Background     string         `yaml:"background" envconfig:"BACKGROUND"`         // Default: "#ffffff".
	AutoOrient     bool           `yaml:"auto_orient" envconfig:"AUTO_ORIENT"`       // Default: true.

	// Naming.
	Rename naming.Mode `yaml:"rename" envconfig:"RENAME"` // Default: "none".

	// Behavior flags.
	CopyOther    bool `yaml:"copy_other" envconfig:"COPY_OTHER"`
	SkipExisting bool `yaml:"skip_existing" envconfig:"SKIP_EXISTING"`
	Clean        bool `yaml:"clean" envconfig:"CLEAN"` // Default: true.
	Yes          bool `yaml:"yes" envconfig:"YES"`
	DryRun       bool `yaml:"dry_run" envconfig:"DRY_RUN"`
	Jobs         int  `yaml:"jobs" envconfig:"JOBS"` // Default: number of CPUs.
	Watch        bool `yaml:"watch" envconfig:"WATCH"`

	// Logging.
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"` // Default: "info".
	LogFile  string `yaml:"log_file" envconfig:"LOG_FILE"`
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{
		Filter:         "lanczos",
		Format:         FormatKeep,
		JPEGQuality:    82,
		WebPQuality:    80,
		PNGCompression: PNGBest,
		QuantizeIters:  5,
		Background:     "#ffffff",
		AutoOrient:     true,
		Rename:         naming.ModeNone,
		Clean:          true,
		Jobs:           runtime.NumCPU(),
		LogLevel:       "info",
	}
}

// LoadFile overlays the YAML file at path onto c. Keys missing from the file
// leave the current values untouched.
func LoadFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// LoadEnv overlays IMAGE_CONVERT_* environment variables onto c.
func LoadEnv(c *Config) error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// NormalizeDirArg strips trailing slashes from a directory path.
// The filesystem root "/" is returned unchanged.
func NormalizeDirArg(path string) string {
	if path == "/" {
		return "/"
	}
	return strings.TrimRight(path, "/")
}

// TargetFormat returns the output format forced by Format, or "" when every
// image keeps its source format.
func (c *Config) TargetFormat() imaging.Format {
	if c.keepFormat() {
		return ""
	}
	f, _ := imaging.ParseFormat(c.Format)
	return f
}

func (c *Config) keepFormat() bool {
	return strings.EqualFold(strings.TrimSpace(c.Format), FormatKeep)
}

// Validate checks ranges and enum fields and requires both directories.
func (c *Config) Validate() error {
	if c.MaxWidth < 0 || c.MaxHeight < 0 {
		return errors.New("max width and height must not be negative")
	}
	if _, err := imaging.ParseFilter(c.Filter); err != nil {
		return err
	}
	if !c.keepFormat() {
		if _, err := imaging.ParseFormat(c.Format); err != nil {
			return fmt.Errorf("invalid format %q (use keep, jpeg, png, webp, gif, bmp or tiff)", c.Format)
		}
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality %d out of range 1-100", c.JPEGQuality)
	}
	if c.WebPQuality < 0 || c.WebPQuality > 100 {
		return fmt.Errorf("webp quality %d out of range 0-100", c.WebPQuality)
	}
	if _, err := c.PNGCompression.Level(); err != nil {
		return err
	}
	if c.QuantizeIters < 1 {
		return errors.New("quantize iterations must be at least 1")
	}
	if _, err := imaging.ParseHexColor(c.Background); err != nil {
		return fmt.Errorf("invalid background: %w", err)
	}
	if !c.Rename.Valid() {
		return fmt.Errorf("invalid rename mode %q (use none, slug, hash or date)", string(c.Rename))
	}
	if c.Jobs < 1 {
		return errors.New("jobs must be at least 1")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (use debug, info, warn or error)", c.LogLevel)
	}

	if c.InputDir == "" || c.OutputDir == "" {
		return errors.New("need both input_dir and output_dir")
	}
	return nil
}

// ValidatePaths ensures the resolved input and output directories are
// disjoint. Output inside input would make the walker pick up its own output;
// input inside output would be deleted when the output is cleared. Both
// arguments must be absolute, symlink-resolved paths.
func ValidatePaths(inputAbs, outputAbs string) error {
	if inputAbs == outputAbs {
		return errors.New("output directory must differ from input directory")
	}
	if within(inputAbs, outputAbs) {
		return errors.New("output directory must not be inside input directory")
	}
	if within(outputAbs, inputAbs) {
		return errors.New("input directory must not be inside output directory")
	}
	return nil
}

// within reports whether path equals dir or lies below it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
