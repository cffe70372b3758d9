package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// SpoolSink appends every published record to a zstd-compressed spool file,
// one frame per record. Frames are self-delimiting, so the spool decodes as
// a plain concatenation of records for replay or diagnostics. Best-effort:
// the publishing worker treats spool failures like any other sink failure.
type SpoolSink struct {
	path string
	enc  *zstd.Encoder
}

// NewSpoolSink creates a spool at path, creating the parent directory when
// absent.
func NewSpoolSink(path string) (*SpoolSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("spool sink: create dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("spool sink: create encoder: %w", err)
	}
	return &SpoolSink{path: path, enc: enc}, nil
}

// Name identifies the sink in logs and metrics.
func (s *SpoolSink) Name() string { return "spool" }

// Deliver appends one compressed frame holding the record and a newline.
func (s *SpoolSink) Deliver(ctx context.Context, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame := s.enc.EncodeAll([]byte(body+"\n"), nil)

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("spool sink: open: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(frame); err != nil {
		return fmt.Errorf("spool sink: append: %w", err)
	}
	return nil
}
