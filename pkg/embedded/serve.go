// Package embedded runs a tinkerdeck server over decks stored in an fs.FS,
// typically an embed.FS compiled into a standalone presentation binary.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/internal/config"
	"github.com/livetemplate/tinkerdeck/internal/server"
)

// Serve starts a server for the decks under rootPath in contentFS and blocks
// until SIGINT or SIGTERM.
//
// Example usage:
//
//	//go:embed talk
//	var talkFS embed.FS
//
//	func main() {
//	    embedded.Serve(talkFS, "talk", "localhost:8080")
//	}
func Serve(contentFS fs.FS, rootPath string, addr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return ServeWithOptions(ctx, Options{
		ContentFS: contentFS,
		RootPath:  rootPath,
		Addr:      addr,
	})
}

// Options provides configuration for the embedded server.
type Options struct {
	// ContentFS holds the deck files and an optional tinkerdeck.yaml
	ContentFS fs.FS

	// RootPath is the path prefix within the ContentFS (e.g., "talk")
	RootPath string

	// Addr is the address to listen on (e.g., "localhost:8080")
	Addr string

	// Config overrides the embedded config (optional)
	Config *config.Config

	// Logger defaults to a no-op logger
	Logger *zap.Logger

	// OnReady is called with the listening address once connections are
	// accepted (optional)
	OnReady func(addr string)

	// Output receives the startup banner; nil discards it
	Output io.Writer
}

// ServeWithOptions serves until ctx is done, then shuts down gracefully.
func ServeWithOptions(ctx context.Context, opts Options) error {
	srcFS, err := subFS(opts.ContentFS, opts.RootPath)
	if err != nil {
		return err
	}

	cfg := opts.Config
	if cfg == nil {
		cfg, err = config.LoadFS(srcFS)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	srv := server.New("", cfg, server.WithFS(srcFS), server.WithLogger(log))
	if err := srv.Discover(); err != nil {
		return fmt.Errorf("failed to discover decks: %w", err)
	}
	if len(srv.Routes()) == 0 {
		return errors.New("no decks found in embedded content")
	}

	fmt.Fprintf(out, "\nDecks:\n")
	for _, route := range srv.Routes() {
		fmt.Fprintf(out, "  %-30s %s\n", route.Pattern, route.FilePath)
	}
	fmt.Fprintln(out)

	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.Addr, err)
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpServer := &http.Server{
		Handler:           srv.Handler(handlerCtx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	addr := listener.Addr().String()
	fmt.Fprintf(out, "🌐 Serving at http://%s\n", addr)
	if opts.OnReady != nil {
		opts.OnReady(addr)
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	fmt.Fprintf(out, "\n🛑 Shutting down gracefully...\n")
	_ = srv.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}
	return nil
}

// subFS returns the sub-filesystem at rootPath.
func subFS(contentFS fs.FS, rootPath string) (fs.FS, error) {
	if contentFS == nil {
		return nil, errors.New("no content file system")
	}
	if rootPath == "" || rootPath == "." {
		return contentFS, nil
	}
	if !fs.ValidPath(rootPath) {
		return nil, fmt.Errorf("invalid root path %q", rootPath)
	}
	sub, err := fs.Sub(contentFS, rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get sub-filesystem at %q: %w", rootPath, err)
	}
	return sub, nil
}
