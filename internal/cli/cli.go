// Package cli implements zgen's command-line subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/zarlcorp/core/pkg/zstyle"
	"github.com/zarlcorp/zgen/internal/emitter"
	"github.com/zarlcorp/zgen/internal/fileio"
	"github.com/zarlcorp/zgen/internal/server"
	"github.com/zarlcorp/zgen/internal/stream"
	"github.com/zarlcorp/zgen/internal/tui"
	"github.com/zarlcorp/zgen/internal/verify"
	"golang.org/x/term"
)

var (
	// ErrUsage marks invalid command lines.
	ErrUsage = errors.New("usage")
	// ErrHelp is returned after help output was requested and printed.
	ErrHelp = pflag.ErrHelp
)

// accepted --start layouts, tried in order
var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// App holds the process environment the commands run against.
type App struct {
	Version     string
	FS          afero.Fs
	Stdout      io.Writer
	Stderr      io.Writer
	Log         *slog.Logger
	Interactive bool
}

// New returns an App bound to the OS filesystem and standard streams.
func New(version string) *App {
	return &App{
		Version:     version,
		FS:          afero.NewOsFs(),
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Log:         slog.Default(),
		Interactive: term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Run dispatches args (without the program name). No arguments, or flags
// only, means generate.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return a.CmdGenerate(ctx, args)
	}

	switch args[0] {
	case "generate":
		return a.CmdGenerate(ctx, args[1:])
	case "verify":
		return a.CmdVerify(ctx, args[1:])
	case "filter":
		return a.CmdFilter(ctx, args[1:])
	case "serve":
		return a.CmdServe(ctx, args[1:])
	case "version":
		fmt.Fprintf(a.Stdout, "zgen %s\n", a.Version)
		return nil
	default:
		fmt.Fprintf(a.Stderr, "zgen: unknown command %q\n", args[0])
		return ErrUsage
	}
}

// CmdGenerate writes the fixture file and prints a confirmation.
func (a *App) CmdGenerate(ctx context.Context, args []string) error {
	fs := a.flagSet("generate")
	cfg := emitter.DefaultConfig()
	start := bindConfig(fs, &cfg)
	quiet := fs.BoolP("quiet", "q", false, "no progress view")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if err := applyStart(&cfg, *start); err != nil {
		return err
	}

	var (
		res emitter.Result
		err error
	)
	if a.Interactive && !*quiet {
		res, err = tui.Emit(ctx, a.FS, cfg)
	} else {
		res, err = emitter.New(a.FS, emitter.WithLogger(a.Log)).Emit(ctx, cfg)
	}
	if err != nil {
		return err
	}

	a.Log.Debug("generated", "path", res.Path, "count", res.Count, "bytes", res.Bytes)
	a.status(fmt.Sprintf("Generated %d records in %s", res.Count, res.Path))
	return nil
}

// CmdVerify re-reads the fixture and checks every record.
func (a *App) CmdVerify(ctx context.Context, args []string) error {
	fs := a.flagSet("verify")
	cfg := emitter.DefaultConfig()
	start := bindConfig(fs, &cfg)
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if err := applyStart(&cfg, *start); err != nil {
		return err
	}

	rep, err := verify.File(ctx, a.FS, cfg)
	if err != nil {
		return err
	}
	a.status(fmt.Sprintf("ok: %d records in %s", rep.Records, cfg.Path))
	return nil
}

// CmdFilter writes only active records to --out, or stdout.
func (a *App) CmdFilter(ctx context.Context, args []string) (err error) {
	fs := a.flagSet("filter")
	in := fs.StringP("in", "i", emitter.DefaultPath, "input fixture file")
	out := fs.StringP("out", "o", "", "output file (default stdout)")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	r, err := fileio.Open(fileio.Afero(a.FS), *in)
	if err != nil {
		return fmt.Errorf("filter: open %s: %w", *in, err)
	}
	defer r.Close()

	w := a.Stdout
	if *out != "" {
		var fw *fileio.Writer
		fw, err = fileio.Create(fileio.Afero(a.FS), *out)
		if err != nil {
			return fmt.Errorf("filter: create %s: %w", *out, err)
		}
		defer func() {
			if cerr := fw.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("filter: %s: %w", *out, cerr)
			}
		}()
		w = fw
	}

	stats, err := stream.FilterActive(ctx, r, w, stream.WithLogger(a.Log))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Stderr, "kept %d, dropped %d, malformed %d\n", stats.Kept, stats.Dropped, stats.Malformed)
	return nil
}

// CmdServe streams the fixture over HTTP until ctx is cancelled.
func (a *App) CmdServe(ctx context.Context, args []string) error {
	fs := a.flagSet("serve")
	file := fs.StringP("file", "f", emitter.DefaultPath, "fixture file to serve")
	addr := fs.String("addr", server.DefaultAddr, "listen address")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	if _, err := a.FS.Stat(*file); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	h := &server.Handler{FS: a.FS, Path: *file, Log: a.Log}
	a.Log.Info("server is started", "addr", *addr, "file", *file)
	return server.Run(ctx, *addr, server.NewRouter(h))
}

func (a *App) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("zgen "+name, pflag.ContinueOnError)
	fs.SetOutput(a.Stderr)
	return fs
}

func (a *App) parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ErrHelp
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(a.Stderr, "%s: unexpected argument %q\n", fs.Name(), fs.Arg(0))
		return ErrUsage
	}
	return nil
}

func (a *App) status(msg string) {
	if a.Interactive {
		msg = zstyle.StatusOK.Render(msg)
	}
	fmt.Fprintln(a.Stdout, msg)
}

// bindConfig registers the shared fixture flags. --start is returned as a
// raw string and applied after parsing.
func bindConfig(fs *pflag.FlagSet, cfg *emitter.Config) *string {
	fs.StringVarP(&cfg.Path, "out", "o", cfg.Path, "fixture file path (.gz to compress)")
	fs.IntVarP(&cfg.Count, "count", "n", cfg.Count, "number of records")
	return fs.String("start", cfg.Start.Format("2006-01-02T15:04:05"), "base instant, UTC unless an offset is given")
}

func applyStart(cfg *emitter.Config, s string) error {
	t, err := ParseStart(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	cfg.Start = t
	return nil
}

// ParseStart parses a base instant. Values without an offset are UTC.
func ParseStart(s string) (time.Time, error) {
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --start %q", s)
}
