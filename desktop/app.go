package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"github.com/livetemplate/tinkerdeck/internal/config"
	"github.com/livetemplate/tinkerdeck/internal/document"
	"github.com/livetemplate/tinkerdeck/internal/logger"
	"github.com/livetemplate/tinkerdeck/internal/server"
)

// App struct holds the presenter state.
type App struct {
	ctx        context.Context
	log        *zap.Logger
	server     *server.Server
	httpServer *http.Server
	cancel     context.CancelFunc
	serverPort int
	currentDir string
	mu         sync.RWMutex
}

// NewApp creates a new App application struct.
func NewApp() *App {
	return &App{log: logger.Must("dev", false).Named("desktop")}
}

// startup is called when the app starts.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	a.stopServer()
	logger.Sync(a.log)
}

// stopServer stops the current server if running.
func (a *App) stopServer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		_ = a.server.Close()
		a.server = nil
	}
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.httpServer.Shutdown(ctx)
		cancel()
		a.httpServer = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.serverPort = 0
}

// OpenFile opens a file dialog to select a deck.
func (a *App) OpenFile() (string, error) {
	selection, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Open Deck",
		Filters: []runtime.FileFilter{
			{
				DisplayName: "Decks (*.md, *.html)",
				Pattern:     "*.md;*.markdown;*.html;*.htm",
			},
			{
				DisplayName: "All Files (*.*)",
				Pattern:     "*.*",
			},
		},
	})
	if err != nil || selection == "" {
		return "", err
	}
	return selection, a.Open(selection)
}

// OpenDirectory opens a directory dialog.
func (a *App) OpenDirectory() (string, error) {
	selection, err := runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Open Deck Directory",
	})
	if err != nil || selection == "" {
		return "", err
	}
	return selection, a.Open(selection)
}

// Open serves the deck file or directory at p and navigates the window to
// it. A file opens its own deck; a directory opens the deck index.
func (a *App) Open(p string) error {
	abs, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}

	dir, file := abs, ""
	if !info.IsDir() {
		if !document.IsDeckFile(abs) {
			return fmt.Errorf("not a deck file: %s", filepath.Base(abs))
		}
		dir, file = filepath.Dir(abs), filepath.Base(abs)
	}

	url, err := a.loadDirectory(dir, file)
	if err != nil {
		return err
	}
	runtime.WindowSetTitle(a.ctx, fmt.Sprintf("Tinkerdeck - %s", filepath.Base(abs)))
	runtime.EventsEmit(a.ctx, "navigate", url)
	return nil
}

// loadDirectory starts a server for dir and returns the URL to show.
func (a *App) loadDirectory(dir, file string) (string, error) {
	a.stopServer()

	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Features.HotReload = true
	cfg.Features.Compression = false

	srv := server.New(dir, cfg, server.WithLogger(a.log), server.WithPresenter(config.GetPresenter()))
	if err := srv.Discover(); err != nil {
		return "", fmt.Errorf("failed to discover decks: %w", err)
	}

	start := "/"
	if file != "" {
		route := srv.Deck(file)
		if route == nil {
			if f := findFailure(srv, file); f != nil {
				return "", f.Err
			}
			return "", fmt.Errorf("deck not found: %s", file)
		}
		start = route.Pattern
	}

	if err := srv.EnableWatch(); err != nil {
		return "", fmt.Errorf("failed to enable watch mode: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = srv.Close()
		return "", fmt.Errorf("failed to find free port: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	httpServer := &http.Server{Handler: srv.Handler(ctx)}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server error", zap.Error(err))
		}
	}()

	a.mu.Lock()
	a.server = srv
	a.httpServer = httpServer
	a.cancel = cancel
	a.serverPort = port
	a.currentDir = dir
	a.mu.Unlock()

	return fmt.Sprintf("http://127.0.0.1:%d%s", port, start), nil
}

func findFailure(srv *server.Server, file string) *server.Failure {
	for _, f := range srv.Failures() {
		if f.FilePath == file {
			return &f
		}
	}
	return nil
}

// ToggleFullscreen switches the presenter window in or out of fullscreen.
func (a *App) ToggleFullscreen() {
	if runtime.WindowIsFullscreen(a.ctx) {
		runtime.WindowUnfullscreen(a.ctx)
		return
	}
	runtime.WindowFullscreen(a.ctx)
}

// Reload reloads the current page.
func (a *App) Reload() {
	runtime.WindowReload(a.ctx)
}

// GetCurrentDirectory returns the currently loaded directory.
func (a *App) GetCurrentDirectory() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentDir
}

// GetServerURL returns the URL of the running server, or empty string if not running.
func (a *App) GetServerURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.serverPort == 0 {
		return ""
	}
	return fmt.Sprintf("http://127.0.0.1:%d/", a.serverPort)
}

// GetRoutes returns the list of discovered decks.
func (a *App) GetRoutes() []RouteInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.server == nil {
		return nil
	}

	routes := a.server.Routes()
	result := make([]RouteInfo, len(routes))
	for i, r := range routes {
		result[i] = RouteInfo{
			Pattern:  r.Pattern,
			FilePath: r.FilePath,
			Title:    r.Deck.Title,
			Slides:   r.Deck.SlideCount(),
		}
	}
	return result
}

// RouteInfo represents a deck for the frontend.
type RouteInfo struct {
	Pattern  string `json:"pattern"`
	FilePath string `json:"filePath"`
	Title    string `json:"title"`
	Slides   int    `json:"slides"`
}

// GetHandler serves the welcome screen. Decks are shown from the local
// server, which the window navigates to once one is opened.
func (a *App) GetHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(welcomeHTML))
	})
}

const welcomeHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Tinkerdeck Presenter</title>
<style>
  html, body { height: 100%; margin: 0; }
  body { display: grid; place-items: center; background: #111; color: #eee; font: 18px system-ui, sans-serif; }
  main { text-align: center; }
  h1 { font-weight: 600; letter-spacing: .02em; }
  button { margin: .5rem; padding: .7rem 1.4rem; font: inherit; border: 1px solid #555; border-radius: 6px; background: #222; color: inherit; cursor: pointer; }
  button:hover { background: #333; }
  kbd { padding: .1rem .4rem; border: 1px solid #555; border-radius: 4px; font-size: .8em; }
  #status { min-height: 1.5em; color: #999; font-size: .9em; }
  #status.error { color: #f66; }
</style>
</head>
<body>
<main>
  <h1>Tinkerdeck</h1>
  <p>Open a deck file (.md, .html) or a folder of decks.</p>
  <button data-open="OpenFile">Open Deck</button>
  <button data-open="OpenDirectory">Open Folder</button>
  <p><kbd>Ctrl/Cmd+O</kbd> deck &middot; <kbd>F11</kbd> full screen &middot; <kbd>&larr;</kbd> <kbd>&rarr;</kbd> <kbd>Space</kbd> navigate</p>
  <p id="status"></p>
</main>
<script>
  var status = document.getElementById('status');
  function report(text, failed) {
    status.textContent = text;
    status.className = failed ? 'error' : '';
  }
  function ready() {
    if (!window.go || !window.runtime) {
      return setTimeout(ready, 50);
    }
    window.runtime.EventsOn('navigate', function (url) { window.location.href = url; });
    document.querySelectorAll('button[data-open]').forEach(function (btn) {
      btn.addEventListener('click', function () {
        report('');
        window.go.main.App[btn.dataset.open]().then(function (path) {
          if (path) { report('Loading ' + path + '...'); }
        }).catch(function (err) { report(String(err), true); });
      });
    });
  }
  ready();
</script>
</body>
</html>`
