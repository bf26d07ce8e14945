// Package output prepares the output directory before a run: it creates a
// missing directory and, after confirmation, clears a non-empty one.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrAborted is returned when the user declines clearing the output
// directory.
var ErrAborted = errors.New("aborted: output directory not cleared")

// Options controls Prepare.
type Options struct {
	// Clean clears a non-empty directory. When false, new files are merged
	// into whatever is already there.
	Clean bool

	// Yes answers the deletion question without asking.
	Yes bool

	// DryRun only logs what would be done.
	DryRun bool
}

// Prompter asks the user a yes/no question.
type Prompter interface {
	Confirm(question string) (bool, error)
}

// LinePrompter reads answers line by line from a reader.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter returns a Prompter that writes questions to out and reads
// answers from in.
func NewPrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Confirm prints question followed by " [y/N] " and accepts "y" or "yes" in
// any case. Anything else, including end of input, is a no.
func (p *LinePrompter) Confirm(question string) (bool, error) {
	if _, err := fmt.Fprintf(p.out, "%s [y/N] ", question); err != nil {
		return false, err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Prepare makes dir ready to receive output.
//
//   - missing: created, with parents.
//   - not a directory: error.
//   - empty: nothing to do.
//   - non-empty with Clean: the contents are removed once confirmed (or Yes
//     is set); a refusal returns ErrAborted. dir itself is kept.
//   - non-empty without Clean: left alone.
func Prepare(dir string, opts Options, prompter Prompter, log *zap.Logger) error {
	fi, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if opts.DryRun {
			log.Info("would create output directory", zap.String("dir", dir))
			return nil
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		log.Debug("created output directory", zap.String("dir", dir))
		return nil
	case err != nil:
		return fmt.Errorf("failed to stat output directory: %w", err)
	case !fi.IsDir():
		return fmt.Errorf("output path %s exists and is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	if !opts.Clean {
		log.Info("output directory not empty, merging", zap.String("dir", dir), zap.Int("entries", len(entries)))
		return nil
	}

	if !opts.Yes {
		ok, err := prompter.Confirm(fmt.Sprintf("Output directory %s is not empty. Delete its contents?", dir))
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}

	if opts.DryRun {
		log.Info("would clear output directory", zap.String("dir", dir), zap.Int("entries", len(entries)))
		return nil
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clear output directory: %w", err)
		}
	}
	log.Info("cleared output directory", zap.String("dir", dir), zap.Int("entries", len(entries)))
	return nil
}
