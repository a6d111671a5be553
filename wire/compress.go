package wire

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Deflate zlib-compresses packet at BestSpeed, matching the fast
// compression level used before a payload is encrypted.
func Deflate(packet []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("wire: new zlib writer: %w", err)
	}
	if _, err := w.Write(packet); err != nil {
		return nil, fmt.Errorf("wire: zlib write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("wire: zlib close: %w", err)
	}
	return buf.Bytes(), nil
}

// Inflate reverses Deflate after a payload has been decrypted.
func Inflate(packet []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(packet))
	if err != nil {
		return nil, fmt.Errorf("wire: new zlib reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wire: zlib read: %w", err)
	}
	return out, nil
}
