package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/zarlcorp/core/pkg/zapp"
	"github.com/zarlcorp/zgen/internal/cli"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	app := zapp.New(zapp.WithName("zgen"))

	ctx, cancel := zapp.SignalContext(context.Background())
	defer cancel()

	err := cli.New(version).Run(ctx, os.Args[1:])
	if cerr := app.Close(); cerr != nil {
		slog.Error("shutdown", "err", cerr)
	}

	if code := exitCode(os.Stderr, err); code != 0 {
		cancel()
		os.Exit(code)
	}
}

// exitCode reports err and maps it to the process exit status: 0 for
// success and --help, 1 for everything else.
func exitCode(stderr io.Writer, err error) int {
	switch {
	case err == nil, errors.Is(err, cli.ErrHelp):
		return 0
	case errors.Is(err, cli.ErrUsage):
		// bare ErrUsage was already explained by the command
		if err != cli.ErrUsage {
			fmt.Fprintf(stderr, "zgen: %v\n", err)
		}
		return 1
	default:
		slog.Error("zgen", "err", err)
		return 1
	}
}
