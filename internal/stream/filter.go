// Package stream implements line transforms over fixture streams.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/valyala/fastjson"
)

const maxLine = 1 << 20

// Stats counts what a filter pass did with each line.
type Stats struct {
	Kept      int
	Dropped   int
	Malformed int
}

// Option configures a filter pass.
type Option func(*filter)

// WithLogger sets the logger that reports malformed lines.
func WithLogger(l *slog.Logger) Option {
	return func(f *filter) {
		f.log = l
	}
}

type filter struct {
	log *slog.Logger
}

// FilterActive copies lines from r to w whose isActive is JSON true.
// Blank lines are ignored; malformed lines, including lines longer than
// 1 MiB, are logged and counted but do not stop the pass. Kept lines are
// written unchanged with a newline and are flushed to w on every return.
func FilterActive(ctx context.Context, r io.Reader, w io.Writer, opts ...Option) (stats Stats, err error) {
	f := filter{log: slog.Default()}
	for _, o := range opts {
		o(&f)
	}

	br := bufio.NewReaderSize(r, 64<<10)
	bw := bufio.NewWriter(w)
	defer func() {
		if ferr := bw.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("filter: flush: %w", ferr)
		}
	}()

	var (
		p    fastjson.Parser
		buf  []byte
		line int
	)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		var (
			tooLong bool
			rerr    error
		)
		buf, tooLong, rerr = readLine(br, buf[:0])
		if rerr != nil && rerr != io.EOF {
			return stats, fmt.Errorf("filter: read: %w", rerr)
		}
		if rerr == io.EOF && len(buf) == 0 && !tooLong {
			return stats, nil
		}
		line++

		switch {
		case tooLong:
			stats.Malformed++
			f.log.Warn("skip malformed line", "line", line, "err", "line exceeds 1 MiB")
		default:
			if err := f.keep(&p, bw, bytes.TrimSpace(buf), line, &stats); err != nil {
				return stats, err
			}
		}

		if rerr == io.EOF {
			return stats, nil
		}
	}
}

func (f *filter) keep(p *fastjson.Parser, bw *bufio.Writer, b []byte, line int, stats *Stats) error {
	if len(b) == 0 {
		return nil
	}

	v, err := p.ParseBytes(b)
	if err != nil {
		stats.Malformed++
		f.log.Warn("skip malformed line", "line", line, "err", err)
		return nil
	}

	if !v.GetBool("isActive") {
		stats.Dropped++
		return nil
	}

	if _, err := bw.Write(b); err != nil {
		return fmt.Errorf("filter: write: %w", err)
	}
	if err := bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("filter: write: %w", err)
	}
	stats.Kept++
	return nil
}

// readLine appends the next line, newline included, to buf. Once a line
// grows past maxLine the rest of it is discarded and tooLong is set.
func readLine(br *bufio.Reader, buf []byte) ([]byte, bool, error) {
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLine {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return buf, tooLong, err
	}
}
