package dump

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Reader is a dump source, transparently decompressed
type Reader struct {
	io.Reader
	closers []io.Closer
}

// Open opens a JSON-lines dump file. Gzip compression is detected from the
// content, not the file name. "-" reads standard input.
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}

	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f)
	return r, nil
}

// NewReader wraps src, decompressing it when it starts with the gzip magic bytes
func NewReader(src io.Reader) (*Reader, error) {
	buffered := bufio.NewReaderSize(src, 1<<16)

	magic, err := buffered.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read dump header: %w", err)
	}

	if len(magic) == len(gzipMagic) && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		gz, err := gzip.NewReader(buffered)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return &Reader{Reader: gz, closers: []io.Closer{gz}}, nil
	}

	return &Reader{Reader: buffered}, nil
}

// Close releases the decompressor and the underlying file
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
