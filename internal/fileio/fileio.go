// Package fileio opens fixture files for streaming on any filesystem that
// implements zfilesystem.OpenFileFS. Paths ending in .gz are transparently
// compressed or decompressed.
package fileio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
	"github.com/spf13/afero"
	"github.com/zarlcorp/core/pkg/zfilesystem"
)

const gzipExt = ".gz"

// IsGzip reports whether path is treated as gzip-compressed.
func IsGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), gzipExt)
}

// aferoFS exposes an afero.Fs as a zfilesystem.OpenFileFS.
type aferoFS struct {
	fs afero.Fs
}

// Afero adapts fsys so it can be passed to Create and Open.
func Afero(fsys afero.Fs) zfilesystem.OpenFileFS {
	return aferoFS{fs: fsys}
}

func (a aferoFS) OpenFile(name string, flag int, perm fs.FileMode) (zfilesystem.File, error) {
	f, err := a.fs.OpenFile(name, flag, perm)
	if err != nil {
		// keep the interface nil
		return nil, err
	}
	return f, nil
}

// Writer is a buffered, optionally compressed, write handle. Close must be
// called on every path; it flushes and releases the file.
type Writer struct {
	f  zfilesystem.File
	gz *pgzip.Writer
	bw *bufio.Writer
}

// Create opens path for writing, truncating any existing file.
func Create(fsys zfilesystem.OpenFileFS, path string) (*Writer, error) {
	f, err := fsys.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	w := &Writer{f: f}
	if IsGzip(path) {
		w.gz = pgzip.NewWriter(f)
		w.bw = bufio.NewWriter(w.gz)
	} else {
		w.bw = bufio.NewWriter(f)
	}
	return w, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.bw.Write(p)
}

// Close flushes buffered data, finishes the gzip stream, and closes the
// file. The file is closed even when flushing fails.
func (w *Writer) Close() error {
	var errs []error
	if err := w.bw.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			errs = append(errs, fmt.Errorf("gzip: %w", err))
		}
	}
	if err := w.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}

type reader struct {
	io.Reader
	closers []io.Closer
}

func (r *reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open opens path for reading. The returned reader yields decompressed
// bytes for .gz paths.
func Open(fsys zfilesystem.OpenFileFS, path string) (io.ReadCloser, error) {
	f, err := fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	if !IsGzip(path) {
		return f, nil
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip: %w", err)
	}
	// gzip reader first, then the file
	return &reader{Reader: gz, closers: []io.Closer{gz, f}}, nil
}
