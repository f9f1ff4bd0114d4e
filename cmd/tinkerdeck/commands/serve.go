package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/internal/config"
	"github.com/livetemplate/tinkerdeck/internal/document"
	"github.com/livetemplate/tinkerdeck/internal/journal"
	"github.com/livetemplate/tinkerdeck/internal/logger"
	"github.com/livetemplate/tinkerdeck/internal/server"
)

// serveFlags holds the serve flags; nil pointers mean "use the config".
type serveFlags struct {
	port      *int
	host      string
	watch     *bool
	noJournal bool
	presenter string
}

var serveOpts struct {
	port      int
	host      string
	watch     bool
	noJournal bool
	presenter string
}

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve the decks in a directory",
	Long: `Serve every .html and .md deck under path (default: the current directory).
When path is a deck file, its directory is served and the deck URL is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}

		flags := serveFlags{
			host:      serveOpts.host,
			noJournal: serveOpts.noJournal,
			presenter: serveOpts.presenter,
		}
		if cmd.Flags().Changed("port") {
			flags.port = &serveOpts.port
		}
		if cmd.Flags().Changed("watch") {
			flags.watch = &serveOpts.watch
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, path, flags, cmd.OutOrStdout(), nil)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&serveOpts.port, "port", "p", 8080, "port to listen on (overrides server.port)")
	serveCmd.Flags().StringVar(&serveOpts.host, "host", "", "host to bind (overrides server.host)")
	serveCmd.Flags().BoolVarP(&serveOpts.watch, "watch", "w", true, "reload browsers when deck files change")
	serveCmd.Flags().BoolVar(&serveOpts.noJournal, "no-journal", false, "do not record navigation history")
	serveCmd.Flags().StringVarP(&serveOpts.presenter, "presenter", "o", "", "presenter name stored in the journal (default: $USER)")
	rootCmd.AddCommand(serveCmd)
}

// runServe serves the decks at path until ctx is done. ready, if set, is
// called with the listening address.
func runServe(ctx context.Context, path string, flags serveFlags, out io.Writer, ready func(addr string)) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	absDir, deckFile := absPath, ""
	if !info.IsDir() {
		if !document.IsDeckFile(absPath) {
			return fmt.Errorf("not a deck file: %s", path)
		}
		absDir, deckFile = filepath.Dir(absPath), filepath.Base(absPath)
	}

	cfg, err := loadConfig(absDir)
	if err != nil {
		return err
	}
	if flags.port != nil {
		cfg.Server.Port = *flags.port
	}
	if flags.host != "" {
		cfg.Server.Host = flags.host
	}
	if flags.watch != nil {
		cfg.Features.HotReload = *flags.watch
	}
	config.SetPresenter(flags.presenter)
	config.SetNoJournal(flags.noJournal)

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync(log)

	opts := []server.Option{
		server.WithLogger(log),
		server.WithPresenter(config.GetPresenter()),
	}
	journalOn := cfg.Journal.Enabled && !config.IsJournalDisabled()
	if journalOn {
		store, err := openJournal(cfg, absDir)
		if err != nil {
			return err
		}
		defer store.Close()
		rec := journal.NewRecorder(store, cfg.GetJournalBuffer(), log.Named("journal"))
		defer rec.Close()
		opts = append(opts, server.WithJournal(store, rec))
	}

	srv := server.New(absDir, cfg, opts...)
	if err := srv.Discover(); err != nil {
		return fmt.Errorf("failed to discover decks: %w", err)
	}

	fmt.Fprintf(out, "🎞  Tinkerdeck\n\n")
	fmt.Fprintf(out, "Serving: %s\n", absDir)
	fmt.Fprintf(out, "\nDecks discovered:\n")
	if len(srv.Routes()) == 0 {
		fmt.Fprintf(out, "  (none)\n")
	}
	for _, route := range srv.Routes() {
		fmt.Fprintf(out, "  %-30s %s (%d slides)\n", route.Pattern, route.FilePath, route.Deck.SlideCount())
	}
	for _, f := range srv.Failures() {
		fmt.Fprintf(out, "  %-30s %s ✗ %v\n", f.Pattern, f.FilePath, f.Err)
	}

	start := "/"
	if deckFile != "" {
		route := srv.Deck(deckFile)
		if route == nil {
			return fmt.Errorf("deck %s failed to load", deckFile)
		}
		start = route.Pattern
	}

	if cfg.Features.HotReload {
		if err := srv.EnableWatch(); err != nil {
			return fmt.Errorf("failed to enable watch mode: %w", err)
		}
		fmt.Fprintf(out, "\n👀 Watch mode enabled - browsers reload when decks change\n")
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = srv.Close()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	addr = listener.Addr().String()

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

	fmt.Fprintf(out, "\n🌐 Server running at http://%s%s\n", addr, start)
	if p := config.GetPresenter(); p != "" && journalOn {
		fmt.Fprintf(out, "👤 Presenter: %s\n", p)
	}
	if journalOn {
		fmt.Fprintf(out, "📒 Journal: %s\n", journalDriver(cfg))
	}
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")
	log.Info("server started", zap.String("addr", addr), zap.Int("decks", len(srv.Routes())))
	if ready != nil {
		ready(addr)
	}

	select {
	case err := <-errCh:
		_ = srv.Close()
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
