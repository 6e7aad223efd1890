// Package verify checks a fixture file against the records its
// configuration should produce.
package verify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/afero"
	"github.com/valyala/fastjson"
	"github.com/zarlcorp/zgen/internal/emitter"
	"github.com/zarlcorp/zgen/internal/fileio"
	"github.com/zarlcorp/zgen/internal/record"
)

const maxLine = 1 << 20

var (
	// ErrShortFile means the file ended before cfg.Count records.
	ErrShortFile = errors.New("fewer records than expected")
	// ErrLongFile means the file has lines beyond cfg.Count.
	ErrLongFile = errors.New("more records than expected")
	// ErrNoNewline means the last record is not terminated by a newline.
	ErrNoNewline = errors.New("missing trailing newline")
	// ErrLineTooLong means a line exceeds 1 MiB.
	ErrLineTooLong = errors.New("line too long")
)

// MismatchError describes the first line that differs from the expected
// record.
type MismatchError struct {
	Line  int
	Field string
	Got   string
	Want  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("line %d: %s: got %s, want %s", e.Line, e.Field, e.Got, e.Want)
}

// Report summarizes a successful verification.
type Report struct {
	Records int
}

// File verifies cfg.Path on fsys.
func File(ctx context.Context, fsys afero.Fs, cfg emitter.Config) (Report, error) {
	r, err := fileio.Open(fileio.Afero(fsys), cfg.Path)
	if err != nil {
		return Report{}, fmt.Errorf("verify: open %s: %w", cfg.Path, err)
	}
	defer r.Close()

	rep, err := Reader(ctx, r, cfg)
	if err != nil {
		return rep, fmt.Errorf("verify: %s: %w", cfg.Path, err)
	}
	return rep, nil
}

// Reader verifies the stream r line by line. Each line must be
// byte-identical to what the emitter writes for cfg; it stops at the first
// line that is not.
func Reader(ctx context.Context, r io.Reader, cfg emitter.Config) (Report, error) {
	br := bufio.NewReaderSize(r, maxLine)

	var p fastjson.Parser
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return Report{Records: n}, err
		}

		line, err := br.ReadSlice('\n')
		switch {
		case err == io.EOF && len(line) == 0:
			if n < cfg.Count {
				return Report{Records: n}, fmt.Errorf("%w: got %d, want %d", ErrShortFile, n, cfg.Count)
			}
			return Report{Records: n}, nil
		case err == bufio.ErrBufferFull:
			return Report{Records: n}, fmt.Errorf("line %d: %w", n+1, ErrLineTooLong)
		case err != nil && err != io.EOF:
			return Report{Records: n}, fmt.Errorf("read: %w", err)
		}

		n++
		if n > cfg.Count {
			return Report{Records: cfg.Count}, fmt.Errorf("line %d: %w (want %d)", n, ErrLongFile, cfg.Count)
		}

		want := record.New(n, cfg.Start)
		enc, merr := emitter.MarshalLine(want)
		if merr != nil {
			return Report{Records: n - 1}, fmt.Errorf("line %d: encode: %w", n, merr)
		}
		if bytes.Equal(line, enc) {
			continue
		}
		return Report{Records: n - 1}, diagnose(&p, n, line, enc, want)
	}
}

// diagnose explains why line differs from enc, naming the first field that
// is wrong when the line parses.
func diagnose(p *fastjson.Parser, n int, line, enc []byte, want record.Record) error {
	body, terminated := bytes.CutSuffix(line, []byte("\n"))

	v, err := p.ParseBytes(body)
	if err != nil {
		return fmt.Errorf("line %d: parse: %w", n, err)
	}
	if err := check(n, v, want); err != nil {
		return err
	}
	if !terminated {
		return fmt.Errorf("line %d: %w", n, ErrNoNewline)
	}
	// same values, different bytes: key order, spacing or escaping
	return &MismatchError{
		Line:  n,
		Field: "encoding",
		Got:   strconv.Quote(string(body)),
		Want:  strconv.Quote(string(bytes.TrimSuffix(enc, []byte("\n")))),
	}
}

var keys = []string{"id", "username", "email", "isActive", "createdAt"}

func check(line int, v *fastjson.Value, want record.Record) error {
	obj, err := v.Object()
	if err != nil {
		return &MismatchError{Line: line, Field: "line", Got: v.Type().String(), Want: "object"}
	}
	if obj.Len() != len(keys) {
		return &MismatchError{Line: line, Field: "keys", Got: strconv.Itoa(obj.Len()), Want: strconv.Itoa(len(keys))}
	}
	for _, k := range keys {
		if !v.Exists(k) {
			return &MismatchError{Line: line, Field: k, Got: "<missing>", Want: "present"}
		}
	}

	id, err := v.Get("id").Int()
	if err != nil || id != want.ID {
		return &MismatchError{Line: line, Field: "id", Got: v.Get("id").String(), Want: strconv.Itoa(want.ID)}
	}

	strs := []struct {
		key  string
		want string
	}{
		{"username", want.Username},
		{"email", want.Email},
		{"createdAt", want.CreatedAt},
	}
	for _, s := range strs {
		got, err := v.Get(s.key).StringBytes()
		if err != nil || string(got) != s.want {
			return &MismatchError{Line: line, Field: s.key, Got: v.Get(s.key).String(), Want: strconv.Quote(s.want)}
		}
	}

	active, err := v.Get("isActive").Bool()
	if err != nil || active != want.IsActive {
		return &MismatchError{Line: line, Field: "isActive", Got: v.Get("isActive").String(), Want: strconv.FormatBool(want.IsActive)}
	}

	return nil
}
