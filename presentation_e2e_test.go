//go:build !ci

package tinkerdeck_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/tinkerdeck/internal/config"
	"github.com/livetemplate/tinkerdeck/internal/server"
)

const e2eDeck = `<!DOCTYPE html>
<html>
<head><title>E2E deck</title></head>
<body>
<progress class="deck-progress"></progress>
<section id="one">
  <h1>One</h1>
  <p class="md-step">first</p>
  <p class="md-step">second</p>
</section>
<section id="two">
  <h1>Two</h1>
  <iframe id="embed" src="data:text/html,embedded"></iframe>
</section>
<section id="three"><h1>Three</h1></section>
</body>
</html>`

// pressKey dispatches a key down/up pair the way a physical key press does.
func pressKey(key, code string, keyCode int64) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		down := input.DispatchKeyEvent(input.KeyDown).
			WithKey(key).
			WithCode(code).
			WithWindowsVirtualKeyCode(keyCode).
			WithNativeVirtualKeyCode(keyCode)
		if key == " " {
			down = down.WithText(" ")
		}
		if err := down.Do(ctx); err != nil {
			return err
		}
		return input.DispatchKeyEvent(input.KeyUp).
			WithKey(key).
			WithCode(code).
			WithWindowsVirtualKeyCode(keyCode).
			WithNativeVirtualKeyCode(keyCode).
			Do(ctx)
	}
}

// waitFor polls a JavaScript condition until it is true.
func waitFor(expr string) chromedp.Action {
	var ok bool
	return chromedp.Poll(expr, &ok, chromedp.WithPollingTimeout(10*time.Second))
}

func TestPresentationNavigation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deck.html"), []byte(e2eDeck), 0644))

	cfg := config.DefaultConfig()
	cfg.RateLimit.RequestsPerSecond = 1000
	cfg.RateLimit.Burst = 1000
	srv := server.New(dir, cfg)
	require.NoError(t, srv.Discover())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ts := httptest.NewServer(srv.Handler(ctx))
	defer ts.Close()
	defer srv.Close()

	chrome, cleanup := SetupChrome(t, 60*time.Second)
	defer cleanup()

	var (
		hash     string
		current  string
		progress string
		frameSrc string
		hasSrc   bool
	)

	err := chromedp.Run(chrome.Context,
		chromedp.Navigate(chrome.URL(ts.URL)+"/deck"),
		waitFor(`document.querySelector('section.md-current') !== null`),
		chromedp.Evaluate(`location.hash`, &hash),
		chromedp.Evaluate(`document.querySelector('section.md-current').id`, &current),
		chromedp.Evaluate(`document.getElementById('embed').hasAttribute('src')`, &hasSrc),
	)
	require.NoError(t, err)
	assert.Equal(t, "#1", hash)
	assert.Equal(t, "one", current)
	assert.False(t, hasSrc, "frames on hidden slides are suspended")

	// Space reveals the first step without leaving the slide.
	err = chromedp.Run(chrome.Context,
		pressKey(" ", "Space", 32),
		waitFor(`document.querySelector('#one .md-step.md-step-current') !== null`),
		chromedp.Evaluate(`document.querySelector('section.md-current').id`, &current),
	)
	require.NoError(t, err)
	assert.Equal(t, "one", current)

	// Right goes to the next slide and restores its frame.
	err = chromedp.Run(chrome.Context,
		pressKey("ArrowRight", "ArrowRight", 39),
		waitFor(`location.hash === '#2'`),
		waitFor(`document.getElementById('two').classList.contains('md-current')`),
		chromedp.Evaluate(`document.getElementById('embed').getAttribute('src')`, &frameSrc),
	)
	require.NoError(t, err)
	assert.Equal(t, "data:text/html,embedded", frameSrc)

	// Left goes back; the frame is parked again.
	err = chromedp.Run(chrome.Context,
		pressKey("ArrowLeft", "ArrowLeft", 37),
		waitFor(`location.hash === '#1'`),
		waitFor(`!document.getElementById('embed').hasAttribute('src')`),
		chromedp.Evaluate(`document.getElementById('embed').getAttribute('data-src')`, &frameSrc),
	)
	require.NoError(t, err)
	assert.Equal(t, "data:text/html,embedded", frameSrc)

	// Editing the address jumps straight to a slide.
	err = chromedp.Run(chrome.Context,
		chromedp.Evaluate(`location.hash = '#3'`, &hash),
		waitFor(`document.getElementById('three').classList.contains('md-current')`),
		chromedp.Evaluate(`document.querySelector('progress.deck-progress').getAttribute('value')`, &progress),
	)
	require.NoError(t, err)
	assert.Equal(t, "3", progress)
}
