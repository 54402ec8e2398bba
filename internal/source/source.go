// Package source resolves file arguments and loads whole log documents,
// including gzip and zstd compressed rotations.
package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/atikulmunna/logsift/internal/model"
)

// ErrTooLarge is returned when a document exceeds the configured size limit.
var ErrTooLarge = errors.New("log file too large")

// Stdin is the path argument that reads from standard input.
const Stdin = "-"

// Expand resolves glob patterns to absolute file paths, in argument order,
// without duplicates. Supports recursive patterns like /var/log/**/*.log.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, pattern := range patterns {
		if pattern == Stdin {
			if !seen[Stdin] {
				seen[Stdin] = true
				paths = append(paths, Stdin)
			}
			continue
		}

		matches, err := expandGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = m
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			paths = append(paths, abs)
		}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no files matched the given patterns: %v", patterns)
	}
	return paths, nil
}

// Load reads one file (or stdin for "-") into an Upload with a fresh id.
// maxBytes <= 0 disables the size check.
func Load(path string, maxBytes int64) (model.Upload, error) {
	if path == Stdin {
		return Read("stdin", os.Stdin, maxBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return model.Upload{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Read(path, f, maxBytes)
}

// Read drains r into an Upload named name, enforcing maxBytes on the
// decompressed content. gzip and zstd input is detected by its magic bytes.
func Read(name string, r io.Reader, maxBytes int64) (model.Upload, error) {
	plain, closeFn, err := decompress(r)
	if err != nil {
		return model.Upload{}, fmt.Errorf("read %s: %w", name, err)
	}
	defer closeFn()

	if maxBytes > 0 {
		plain = io.LimitReader(plain, maxBytes+1)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return model.Upload{}, fmt.Errorf("read %s: %w", name, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return model.Upload{}, fmt.Errorf("%s: %w (limit %d bytes)", name, ErrTooLarge, maxBytes)
	}

	return model.Upload{
		ID:      uuid.NewString(),
		Source:  name,
		Content: string(data),
	}, nil
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// decompress wraps r in a decoder when it starts with a known magic number.
func decompress(r io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zstdMagic))

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, func() { zr.Close() }, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return br, func() {}, nil
	}
}

// expandGlob resolves a glob pattern to matching file paths.
func expandGlob(pattern string) ([]string, error) {
	return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithFailOnIOErrors())
}
