package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes each published record to a fixed path. The write is
// atomic: the record lands in a temporary file in the destination directory
// which is renamed over the target, so a dashboard polling the file never
// observes a truncated record. The temporary file is removed on every
// failure path.
type FileSink struct {
	dir  string
	path string
}

// NewFileSink creates a sink writing to dir/name, creating dir (and
// parents) when absent.
func NewFileSink(dir, name string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: create output dir %s: %w", dir, err)
	}
	return &FileSink{dir: dir, path: filepath.Join(dir, name)}, nil
}

// Name identifies the sink in logs and metrics.
func (s *FileSink) Name() string { return "file" }

// Path returns the destination path.
func (s *FileSink) Path() string { return s.path }

// Deliver writes the record followed by a newline. ctx is consulted before
// starting; local writes are not otherwise cancellable.
func (s *FileSink) Deliver(ctx context.Context, body string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("file sink: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	// CreateTemp makes the file owner-only; the record must stay readable
	// by the web-server user that serves it after the rename.
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("file sink: chmod temp file: %w", err)
	}
	if _, err = tmp.WriteString(body + "\n"); err != nil {
		return fmt.Errorf("file sink: write: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("file sink: sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("file sink: close: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("file sink: rename into place: %w", err)
	}
	return nil
}
