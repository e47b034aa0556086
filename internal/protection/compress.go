package protection

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// deflate compresses data into a zlib frame.
func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("protection: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("protection: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// inflate decompresses a zlib frame.
func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("protection: decompress: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("protection: decompress: %w", err)
	}
	return out, nil
}
