// Package cli wires configuration, output preparation, the conversion
// pipeline and the watcher into the image-convert root command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/image-convert/internal/config"
	"github.com/ironsheep/image-convert/internal/logging"
	"github.com/ironsheep/image-convert/internal/output"
	"github.com/ironsheep/image-convert/internal/pipeline"
	"github.com/ironsheep/image-convert/internal/watch"
)

// ErrFilesFailed is returned when the run finished but at least one file
// could not be converted.
var ErrFilesFailed = errors.New("some files failed to convert")

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// NewRootCommand returns the image-convert command.
func NewRootCommand(info BuildInfo) *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "image-convert [flags] <input_dir> <output_dir>",
		Short: "Resize and re-encode a tree of images",
		Long: `image-convert walks input_dir, scales every image down to fit the
configured bounds, re-encodes it and writes it to the same relative path
under output_dir.

Settings are read from defaults, then the --config YAML file, then
IMAGE_CONVERT_* environment variables, then the flags given on the
command line.`,
		Args:          cobra.MaximumNArgs(2),
		Version:       fmt.Sprintf("%s (built %s, commit %s)", info.Version, info.BuildTime, info.GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Resolve(cmd.Flags(), &cfg); err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.InputDir = args[0]
			}
			if len(args) > 1 {
				cfg.OutputDir = args[1]
			}
			return run(cmd, &cfg, info)
		},
	}
	config.BindFlags(cmd.Flags(), &cfg)
	cmd.Flags().SortFlags = false

	return cmd
}

func run(cmd *cobra.Command, cfg *config.Config, info BuildInfo) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg.InputDir = config.NormalizeDirArg(cfg.InputDir)
	cfg.OutputDir = config.NormalizeDirArg(cfg.OutputDir)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closeLog, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer closeLog()

	log.Debug("image-convert starting",
		zap.String("version", info.Version),
		zap.String("commit", info.GitCommit),
		zap.Int("jobs", cfg.Jobs),
	)

	in, err := resolvePath(cfg.InputDir)
	if err != nil {
		return fmt.Errorf("input directory: %w", err)
	}
	fi, err := os.Stat(in)
	if err != nil {
		return fmt.Errorf("input directory: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("input directory: %s is not a directory", cfg.InputDir)
	}
	out, err := resolvePath(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("output directory: %w", err)
	}
	if err := config.ValidatePaths(in, out); err != nil {
		return err
	}
	cfg.InputDir, cfg.OutputDir = in, out

	prompter := output.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	opts := output.Options{Clean: cfg.Clean, Yes: cfg.Yes, DryRun: cfg.DryRun}
	if err := output.Prepare(out, opts, prompter, log); err != nil {
		return err
	}

	p, err := pipeline.New(cfg, log)
	if err != nil {
		return err
	}
	stats, err := p.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.Watch {
		w, err := watch.New(in, p, log)
		if err != nil {
			return err
		}
		if err := w.Run(ctx); err != nil {
			return err
		}
	}

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d files: %w", stats.Failed, stats.Total, ErrFilesFailed)
	}
	return nil
}

// resolvePath returns the absolute, symlink-free form of path. Trailing
// components that do not exist yet are kept as given.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	var missing []string
	dir := abs
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			parts := append([]string{resolved}, missing...)
			return filepath.Join(parts...), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		missing = append([]string{filepath.Base(dir)}, missing...)
		dir = parent
	}
}
