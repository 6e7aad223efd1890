// Package server streams fixture files over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/zarlcorp/zgen/internal/fileio"
	"github.com/zarlcorp/zgen/internal/stream"
)

// DefaultAddr matches the port the stream exercises listened on.
const DefaultAddr = "127.0.0.1:54321"

const (
	contentType     = "application/x-ndjson"
	shutdownTimeout = 5 * time.Second
)

// Handler serves one fixture file. Every request opens its own handle.
type Handler struct {
	FS   afero.Fs
	Path string
	Log  *slog.Logger
}

// NewRouter registers the fixture routes on a new gin engine.
func NewRouter(h *Handler) *gin.Engine {
	if h.Log == nil {
		h.Log = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if gin.IsDebugging() {
		r.Use(gin.Logger())
	}

	r.GET("/healthz", h.Health)
	r.GET("/records", h.Records)
	r.GET("/records/active", h.ActiveRecords)
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Records streams the file unchanged (decompressed for .gz paths).
func (h *Handler) Records(c *gin.Context) {
	r, ok := h.open(c)
	if !ok {
		return
	}
	defer r.Close()

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, r); err != nil {
		h.Log.Warn("stream records", "path", h.Path, "err", err)
	}
}

// ActiveRecords streams only the records with isActive true.
func (h *Handler) ActiveRecords(c *gin.Context) {
	r, ok := h.open(c)
	if !ok {
		return
	}
	defer r.Close()

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	stats, err := stream.FilterActive(c.Request.Context(), r, c.Writer, stream.WithLogger(h.Log))
	if err != nil {
		h.Log.Warn("stream active records", "path", h.Path, "err", err)
		return
	}
	h.Log.Debug("streamed active records", "kept", stats.Kept, "dropped", stats.Dropped, "malformed", stats.Malformed)
}

func (h *Handler) open(c *gin.Context) (io.ReadCloser, bool) {
	r, err := fileio.Open(fileio.Afero(h.FS), h.Path)
	if err != nil {
		h.Log.Error("open fixture", "path", h.Path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something Went Wrong"})
		return nil, false
	}
	return r, true
}

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", addr, err)
	}
	return nil
}
