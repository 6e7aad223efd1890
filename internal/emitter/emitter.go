// Package emitter writes synthetic records as line-delimited JSON.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/zarlcorp/zgen/internal/fileio"
	"github.com/zarlcorp/zgen/internal/record"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fixture defaults
const (
	DefaultPath  = "huge_data.json"
	DefaultCount = 1_000_000
)

// DefaultStart is the base instant for createdAt.
var DefaultStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrNegativeCount is returned for a Config with Count < 0.
var ErrNegativeCount = errors.New("record count must not be negative")

// Config describes one run.
type Config struct {
	Path  string
	Count int
	Start time.Time
}

// DefaultConfig returns the default fixture: one million records in huge_data.json.
func DefaultConfig() Config {
	return Config{
		Path:  DefaultPath,
		Count: DefaultCount,
		Start: DefaultStart,
	}
}

// Validate checks the config before any file is touched.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("output path is empty")
	}
	if c.Count < 0 {
		return ErrNegativeCount
	}
	return nil
}

// Result summarizes a finished run.
type Result struct {
	Path  string
	Count int
	Bytes int64 // uncompressed
}

// ProgressFunc receives the number of records written so far.
type ProgressFunc func(written, total int)

// Option configures an Emitter.
type Option func(*Emitter)

// WithProgress reports progress every `every` records and once at the end.
func WithProgress(fn ProgressFunc, every int) Option {
	return func(e *Emitter) {
		if every < 1 {
			every = 1
		}
		e.progress = fn
		e.every = every
	}
}

// WithLogger sets the logger used for run diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Emitter) {
		e.log = l
	}
}

// Emitter writes fixture files to a filesystem.
type Emitter struct {
	fs       afero.Fs
	log      *slog.Logger
	progress ProgressFunc
	every    int
}

// New creates an emitter writing to fsys.
func New(fsys afero.Fs, opts ...Option) *Emitter {
	e := &Emitter{fs: fsys, log: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Emit writes cfg.Count records to cfg.Path, overwriting it. The file is
// closed on every path; a failed run leaves whatever was written so far.
func (e *Emitter) Emit(ctx context.Context, cfg Config) (res Result, err error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("emit: %w", err)
	}

	w, err := fileio.Create(fileio.Afero(e.fs), cfg.Path)
	if err != nil {
		return Result{}, fmt.Errorf("emit: open %s: %w", cfg.Path, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			res = Result{}
			err = fmt.Errorf("emit: %s: %w", cfg.Path, cerr)
		}
	}()

	e.log.Debug("emit start", "path", cfg.Path, "count", cfg.Count, "start", cfg.Start)

	n, err := e.write(ctx, w, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("emit: %s: %w", cfg.Path, err)
	}

	return Result{Path: cfg.Path, Count: cfg.Count, Bytes: n}, nil
}

// Write streams cfg.Count records to w and returns the bytes written.
// cfg.Path is ignored.
func (e *Emitter) Write(ctx context.Context, w io.Writer, cfg Config) (int64, error) {
	if cfg.Count < 0 {
		return 0, ErrNegativeCount
	}
	return e.write(ctx, w, cfg)
}

// MarshalLine returns the exact bytes written for rec: compact JSON in
// field order followed by a newline.
func MarshalLine(rec record.Record) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func (e *Emitter) write(ctx context.Context, w io.Writer, cfg Config) (int64, error) {
	cw := &countingWriter{w: w}

	for i := 1; i <= cfg.Count; i++ {
		if err := ctx.Err(); err != nil {
			return cw.n, fmt.Errorf("record %d: %w", i, err)
		}

		b, err := MarshalLine(record.New(i, cfg.Start))
		if err != nil {
			return cw.n, fmt.Errorf("record %d: %w", i, err)
		}
		if _, err := cw.Write(b); err != nil {
			return cw.n, fmt.Errorf("record %d: %w", i, err)
		}

		if e.progress != nil && i%e.every == 0 {
			e.progress(i, cfg.Count)
		}
	}

	if e.progress != nil && (cfg.Count == 0 || cfg.Count%e.every != 0) {
		e.progress(cfg.Count, cfg.Count)
	}

	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
