// Package server serves decks over HTTP and drives them over websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/internal/config"
	"github.com/livetemplate/tinkerdeck/internal/document"
	"github.com/livetemplate/tinkerdeck/internal/journal"
	"github.com/livetemplate/tinkerdeck/internal/session"
)

// Route is a discovered deck and the URL it is served at.
type Route struct {
	Pattern  string         // URL pattern (e.g., "/intro")
	FilePath string         // Slash-separated path relative to the root (e.g., "intro.md")
	Deck     *document.Deck // Pristine document; sessions work on clones
}

// Failure is a deck file that could not be loaded.
type Failure struct {
	Pattern  string
	FilePath string
	Err      error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithJournal records navigation through rec and serves history from store.
// Either may be nil.
func WithJournal(store journal.Store, rec session.Recorder) Option {
	return func(s *Server) {
		s.store = store
		s.recorder = rec
	}
}

// WithFS serves the decks of fsys instead of the root directory. File
// watching is unavailable for such servers.
func WithFS(fsys fs.FS) Option {
	return func(s *Server) {
		s.fsys = fsys
		s.rootDir = ""
	}
}

// WithPresenter names the presenter stamped on journal entries.
func WithPresenter(name string) Option {
	return func(s *Server) { s.presenter = name }
}

// Server is the tinkerdeck presentation server.
type Server struct {
	rootDir   string
	fsys      fs.FS
	config    *config.Config
	log       *zap.Logger
	store     journal.Store
	recorder  session.Recorder
	presenter string

	mu       sync.RWMutex
	routes   []*Route
	failures []Failure

	connections map[*conn]bool // Track connected WebSocket clients
	connMu      sync.RWMutex   // Separate mutex for connections
	watcher     *Watcher       // File watcher for live reload
}

// New creates a server for the decks under rootDir. A nil cfg uses the
// defaults.
func New(rootDir string, cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		rootDir:     rootDir,
		fsys:        os.DirFS(rootDir),
		config:      cfg,
		log:         zap.NewNop(),
		routes:      make([]*Route, 0),
		connections: make(map[*conn]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the server configuration.
func (s *Server) Config() *config.Config { return s.config }

// Discover scans the root directory for deck files and rebuilds the routes.
// Files that fail to load are kept as failures and reported on their URL.
func (s *Server) Discover() error {
	fsys := s.fsys
	opts := document.Options{
		SlideSelector:    s.config.GetSlideSelector(),
		ProgressSelector: s.config.GetProgressSelector(),
	}

	var (
		routes   []*Route
		failures []Failure
	)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && (skipDir(d.Name()) || s.config.IsIgnored(p)) {
				return fs.SkipDir
			}
			return nil
		}
		if !document.IsDeckFile(p) || s.config.IsIgnored(p) {
			return nil
		}

		pattern := deckPattern(p)
		deck, err := document.Load(fsys, p, opts)
		if err != nil {
			s.log.Warn("failed to load deck", zap.String("file", p), zap.Error(err))
			failures = append(failures, Failure{Pattern: pattern, FilePath: p, Err: err})
			return nil
		}
		routes = append(routes, &Route{Pattern: pattern, FilePath: p, Deck: deck})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}

	sortRoutes(routes)
	routes = dedupeRoutes(routes, s.log)

	s.mu.Lock()
	s.routes = routes
	s.failures = failures
	s.mu.Unlock()

	s.log.Info("decks discovered", zap.Int("decks", len(routes)), zap.Int("failed", len(failures)))
	return nil
}

// Routes returns the discovered routes.
func (s *Server) Routes() []*Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Route(nil), s.routes...)
}

// Failures returns the deck files that failed to load.
func (s *Server) Failures() []Failure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Failure(nil), s.failures...)
}

// Lookup returns the route serving pattern, or nil.
func (s *Server) Lookup(pattern string) *Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.routes {
		if r.Pattern == pattern {
			return r
		}
	}
	return nil
}

// Deck returns the route of the deck file name, or nil.
func (s *Server) Deck(name string) *Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.routes {
		if r.FilePath == name {
			return r
		}
	}
	return nil
}

func (s *Server) failure(pattern string) *Failure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.failures {
		if s.failures[i].Pattern == pattern {
			f := s.failures[i]
			return &f
		}
	}
	return nil
}

// Handler returns the HTTP handler of the server. ctx bounds the lifetime of
// the rate limiter's background cleanup.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.log.Named("http")))
	r.Use(SecurityHeadersMiddleware())
	r.Use(CORSMiddleware(s.config.GetCORSOrigins()))

	limit, _ := RateLimitMiddleware(ctx, s.log.Named("ratelimit"),
		s.config.GetRateLimitRPS(), s.config.GetRateLimitBurst(), s.config.GetRateLimitMaxIPs())
	r.Use(limit)

	if s.config.Features.Compression {
		r.Use(compressionMiddleware)
	}

	r.Get("/healthz", s.serveHealth)
	r.Get("/ws", s.serveWebSocket)
	r.Get("/assets/{name}", s.serveAsset)
	r.Route("/api", func(r chi.Router) {
		r.Get("/decks", s.serveDecks)
		r.Get("/journal", s.serveJournal)
		r.Get("/journal/visits", s.serveVisits)
	})
	r.Get("/*", s.servePage)
	return r
}

// servePage renders the deck at the request path, the deck index for "/", or
// the load error of a broken deck.
func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Path
	if route := s.Lookup(p); route != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		fmt.Fprint(w, renderDeckPage(route))
		return
	}
	if f := s.failure(p); f != nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		renderErrorPage(w, f, s.log)
		return
	}
	if p == "/" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		renderIndexPage(w, s.config.Title, s.Routes(), s.Failures(), s.log)
		return
	}
	if !strings.HasSuffix(p, "/") && s.Lookup(p+"/") != nil {
		http.Redirect(w, r, p+"/", http.StatusMovedPermanently)
		return
	}
	http.NotFound(w, r)
}

// deckPattern converts a deck file path to a URL pattern.
// Examples:
//   - "index.md" → "/"
//   - "intro.html" → "/intro"
//   - "talks/go.md" → "/talks/go"
//   - "talks/index.md" → "/talks/"
func deckPattern(relPath string) string {
	p := strings.TrimSuffix(relPath, path.Ext(relPath))

	if p == "index" {
		return "/"
	}
	if strings.HasSuffix(p, "/index") {
		return "/" + strings.TrimSuffix(p, "index")
	}
	return "/" + p
}

// sortRoutes orders routes with "/" first, then directory indexes, then the
// rest alphabetically. Ties keep file path order.
func sortRoutes(routes []*Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		return routeLess(routes[i], routes[j])
	})
}

func routeLess(a, b *Route) bool {
	if a.Pattern != b.Pattern {
		if a.Pattern == "/" || b.Pattern == "/" {
			return a.Pattern == "/"
		}
		aIsIndex := strings.HasSuffix(a.Pattern, "/")
		bIsIndex := strings.HasSuffix(b.Pattern, "/")
		if aIsIndex != bIsIndex {
			return aIsIndex
		}
		return a.Pattern < b.Pattern
	}
	return a.FilePath < b.FilePath
}

// dedupeRoutes keeps the first route of each pattern; routes must be sorted.
func dedupeRoutes(routes []*Route, l *zap.Logger) []*Route {
	out := routes[:0]
	for i, r := range routes {
		if i > 0 && routes[i-1].Pattern == r.Pattern {
			l.Warn("deck shadowed by another file with the same URL",
				zap.String("file", r.FilePath), zap.String("url", r.Pattern))
			continue
		}
		out = append(out, r)
	}
	return out
}

// RegisterConnection adds a WebSocket connection to the tracked connections.
func (s *Server) RegisterConnection(c *conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.connections[c] = true
	s.log.Debug("websocket connection registered", zap.Int("active", len(s.connections)))
}

// UnregisterConnection removes a WebSocket connection from tracked connections.
func (s *Server) UnregisterConnection(c *conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.connections, c)
	s.log.Debug("websocket connection unregistered", zap.Int("active", len(s.connections)))
}

// ConnectionCount returns the number of open websocket connections.
func (s *Server) ConnectionCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.connections)
}

// BroadcastReload tells every client showing the deck file filePath to
// reload the page. It returns the number of clients notified.
func (s *Server) BroadcastReload(filePath string) int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()

	reply := session.NewReloadReply()
	sent := 0
	for c := range s.connections {
		if c.deck != filePath {
			continue
		}
		if err := c.writeJSON(reply); err != nil {
			s.log.Warn("failed to send reload", zap.String("deck", filePath), zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		s.log.Info("reload broadcast", zap.String("deck", filePath), zap.Int("clients", sent))
	}
	return sent
}

// EnableWatch rediscovers decks and reloads their viewers when files change.
func (s *Server) EnableWatch() error {
	if s.rootDir == "" {
		return errors.New("file watching needs a root directory")
	}
	watcher, err := NewWatcher(s.rootDir, func(filePath string) error {
		if err := s.Discover(); err != nil {
			return fmt.Errorf("failed to re-discover decks: %w", err)
		}
		s.BroadcastReload(filePath)
		return nil
	}, s.config.IsIgnored, s.log.Named("watch"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	s.watcher = watcher
	s.watcher.Start()

	s.log.Info("file watcher started", zap.String("dir", s.rootDir))
	return nil
}

// StopWatch stops the file watcher if it's running.
func (s *Server) StopWatch() error {
	if s.watcher == nil {
		return nil
	}
	w := s.watcher
	s.watcher = nil
	return w.Stop()
}

// Close stops the watcher and disconnects every websocket client.
func (s *Server) Close() error {
	err := s.StopWatch()

	s.connMu.Lock()
	conns := make([]*conn, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.connMu.Unlock()

	for _, c := range conns {
		if cerr := c.close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			s.log.Debug("close websocket", zap.Error(cerr))
		}
	}
	return err
}
