package verify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/zarlcorp/zgen/internal/emitter"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const threeLines = `{"id":1,"username":"user_1","email":"user_1@example.com","isActive":false,"createdAt":"2025-01-01T00:00:01Z"}
{"id":2,"username":"user_2","email":"user_2@example.com","isActive":true,"createdAt":"2025-01-01T00:00:02Z"}
{"id":3,"username":"user_3","email":"user_3@example.com","isActive":false,"createdAt":"2025-01-01T00:00:03Z"}
`

func cfg(n int) emitter.Config {
	return emitter.Config{Path: "out.json", Count: n, Start: base}
}

func TestFileAfterEmit(t *testing.T) {
	for _, path := range []string{"out.json", "out.json.gz"} {
		t.Run(path, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			c := emitter.Config{Path: path, Count: 1234, Start: base}
			if _, err := emitter.New(fsys).Emit(context.Background(), c); err != nil {
				t.Fatalf("emit: %v", err)
			}

			rep, err := File(context.Background(), fsys, c)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if rep.Records != 1234 {
				t.Errorf("records = %d, want 1234", rep.Records)
			}
		})
	}
}

func TestReaderScenario(t *testing.T) {
	rep, err := Reader(context.Background(), strings.NewReader(threeLines), cfg(3))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rep.Records != 3 {
		t.Errorf("records = %d, want 3", rep.Records)
	}
}

func TestReaderEmpty(t *testing.T) {
	if _, err := Reader(context.Background(), strings.NewReader(""), cfg(0)); err != nil {
		t.Fatalf("empty file with count 0: %v", err)
	}
}

func TestReaderLineCount(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  error
	}{
		{"short", 4, ErrShortFile},
		{"long", 2, ErrLongFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reader(context.Background(), strings.NewReader(threeLines), cfg(tt.count))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReaderMismatch(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		field string
	}{
		{"wrong id", `{"id":2,"username":"user_1","email":"user_1@example.com","isActive":false,"createdAt":"2025-01-01T00:00:01Z"}`, "id"},
		{"id as string", `{"id":"1","username":"user_1","email":"user_1@example.com","isActive":false,"createdAt":"2025-01-01T00:00:01Z"}`, "id"},
		{"wrong username", `{"id":1,"username":"user_x","email":"user_1@example.com","isActive":false,"createdAt":"2025-01-01T00:00:01Z"}`, "username"},
		{"wrong email", `{"id":1,"username":"user_1","email":"user_1@example.org","isActive":false,"createdAt":"2025-01-01T00:00:01Z"}`, "email"},
		{"wrong parity", `{"id":1,"username":"user_1","email":"user_1@example.com","isActive":true,"createdAt":"2025-01-01T00:00:01Z"}`, "isActive"},
		{"bool as string", `{"id":1,"username":"user_1","email":"user_1@example.com","isActive":"false","createdAt":"2025-01-01T00:00:01Z"}`, "isActive"},
		{"wrong time", `{"id":1,"username":"user_1","email":"user_1@example.com","isActive":false,"createdAt":"2025-01-01T00:00:01"}`, "createdAt"},
		{"missing key", `{"id":1,"username":"user_1","email":"user_1@example.com","isActive":false,"created":"2025-01-01T00:00:01Z"}`, "createdAt"},
		{"extra key", `{"id":1,"username":"user_1","email":"user_1@example.com","isActive":false,"createdAt":"2025-01-01T00:00:01Z","x":1}`, "keys"},
		{"array", `[1,2,3]`, "line"},
		{"duplicate key replaces another", `{"id":1,"id":1,"email":"user_1@example.com","isActive":false,"createdAt":"2025-01-01T00:00:01Z"}`, "username"},
		{"reordered keys", `{"username":"user_1","id":1,"email":"user_1@example.com","isActive":false,"createdAt":"2025-01-01T00:00:01Z"}`, "encoding"},
		{"spaced", `{"id": 1, "username": "user_1", "email": "user_1@example.com", "isActive": false, "createdAt": "2025-01-01T00:00:01Z"}`, "encoding"},
		{"trailing space", `{"id":1,"username":"user_1","email":"user_1@example.com","isActive":false,"createdAt":"2025-01-01T00:00:01Z"} `, "encoding"},
		{"crlf", `{"id":1,"username":"user_1","email":"user_1@example.com","isActive":false,"createdAt":"2025-01-01T00:00:01Z"}` + "\r", "encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reader(context.Background(), strings.NewReader(tt.line+"\n"), cfg(1))

			var mm *MismatchError
			if !errors.As(err, &mm) {
				t.Fatalf("err = %v, want *MismatchError", err)
			}
			if mm.Line != 1 {
				t.Errorf("line = %d, want 1", mm.Line)
			}
			if mm.Field != tt.field {
				t.Errorf("field = %q, want %q", mm.Field, tt.field)
			}
		})
	}
}

func TestReaderInvalidJSON(t *testing.T) {
	_, err := Reader(context.Background(), strings.NewReader("{not json\n"), cfg(1))
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("err = %v, want parse error on line 1", err)
	}
}

func TestFileMissing(t *testing.T) {
	_, err := File(context.Background(), afero.NewMemMapFs(), cfg(1))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Reader(ctx, strings.NewReader(threeLines), cfg(3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestReaderMissingTrailingNewline(t *testing.T) {
	in := strings.TrimSuffix(threeLines, "\n")

	rep, err := Reader(context.Background(), strings.NewReader(in), cfg(3))
	if !errors.Is(err, ErrNoNewline) {
		t.Fatalf("err = %v, want ErrNoNewline", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("err = %v, want it to name line 3", err)
	}
	if rep.Records != 2 {
		t.Errorf("records = %d, want 2", rep.Records)
	}
}

func TestReaderMismatchReportsBothEncodings(t *testing.T) {
	line := `{"id": 1, "username": "user_1", "email": "user_1@example.com", "isActive": false, "createdAt": "2025-01-01T00:00:01Z"}`

	_, err := Reader(context.Background(), strings.NewReader(line+"\n"), cfg(1))

	var mm *MismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("err = %v, want *MismatchError", err)
	}
	if !strings.Contains(mm.Got, `\"id\": 1`) {
		t.Errorf("got = %s, want the line as read", mm.Got)
	}
	if !strings.Contains(mm.Want, `\"id\":1,`) {
		t.Errorf("want = %s, want the compact encoding", mm.Want)
	}
}

func TestReaderLineTooLong(t *testing.T) {
	in := strings.Repeat("x", 2<<20) + "\n"

	_, err := Reader(context.Background(), strings.NewReader(in), cfg(1))
	if !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("err = %v, want ErrLineTooLong", err)
	}
}

func TestReaderTrailingBlankLine(t *testing.T) {
	_, err := Reader(context.Background(), strings.NewReader(threeLines+"\n"), cfg(3))
	if !errors.Is(err, ErrLongFile) {
		t.Fatalf("err = %v, want ErrLongFile", err)
	}
}
