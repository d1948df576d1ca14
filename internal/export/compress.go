package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// CompressedExt marks zstd-compressed exports.
const CompressedExt = ".zst"

// Compress wraps w so everything written is zstd-compressed. Close flushes
// the frame but leaves w open.
func Compress(w io.Writer, level int) (io.WriteCloser, error) {
	if level <= 0 {
		level = 3
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return enc, nil
}

// Decompress wraps r when name carries the compressed extension and returns
// the name without it. Other readers pass through.
func Decompress(r io.Reader, name string) (io.ReadCloser, string, error) {
	if !strings.HasSuffix(strings.ToLower(name), CompressedExt) {
		return io.NopCloser(r), name, nil
	}
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return dec.IOReadCloser(), name[:len(name)-len(CompressedExt)], nil
}
