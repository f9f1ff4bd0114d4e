package embedded

import (
	"context"
	"io"
	"net/http"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contentFS = fstest.MapFS{
	"talk/index.md":        {Data: []byte("# Welcome\n\n---\n\n# Bye\n")},
	"talk/tinkerdeck.yaml": {Data: []byte("title: Embedded talk\nfeatures:\n  compression: false\n")},
}

func TestServeWithOptions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- ServeWithOptions(ctx, Options{
			ContentFS: contentFS,
			RootPath:  "talk",
			Addr:      "127.0.0.1:0",
			OnReady:   func(addr string) { ready <- addr },
		})
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server not ready")
	}

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `content="index.md"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeWithOptionsErrors(t *testing.T) {
	ctx := context.Background()

	err := ServeWithOptions(ctx, Options{ContentFS: contentFS, RootPath: "../etc", Addr: "127.0.0.1:0"})
	assert.ErrorContains(t, err, "invalid root path")

	err = ServeWithOptions(ctx, Options{ContentFS: fstest.MapFS{"a.txt": {}}, Addr: "127.0.0.1:0"})
	assert.ErrorContains(t, err, "no decks found")

	err = ServeWithOptions(ctx, Options{Addr: "127.0.0.1:0"})
	assert.Error(t, err)
}
