package server

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloads struct {
	mu    sync.Mutex
	files []string
}

func (r *reloads) add(f string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, f)
	return nil
}

func (r *reloads) has(f string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.files {
		if got == f {
			return true
		}
	}
	return false
}

func (r *reloads) count(f string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.files {
		if got == f {
			n++
		}
	}
	return n
}

func TestWatcherReportsDeckFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))

	var got reloads
	w, err := NewWatcher(dir, got.add, func(p string) bool { return strings.HasPrefix(p, "drafts/") }, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "talk.md"), []byte("# a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	assert.Eventually(t, func() bool { return got.has("talk.md") }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "talks"), 0755))
	time.Sleep(200 * time.Millisecond) // let the watcher add the new directory
	require.NoError(t, os.WriteFile(filepath.Join(dir, "talks", "go.html"), []byte("<section>"), 0644))
	assert.Eventually(t, func() bool { return got.has("talks/go.html") }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "drafts"), 0755))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drafts", "wip.md"), []byte("# wip"), 0644))
	time.Sleep(300 * time.Millisecond)

	assert.False(t, got.has("notes.txt"))
	assert.False(t, got.has("drafts/wip.md"))
}

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	var got reloads
	w, err := NewWatcher(dir, got.add, nil, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	p := filepath.Join(dir, "talk.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("#", i+1)), 0644))
	}
	assert.Eventually(t, func() bool { return got.has("talk.md") }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(3 * debounceDelay)
	assert.Equal(t, 1, got.count("talk.md"))
}

func TestEnableWatchRediscovers(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"a.md": "# A\n"})
	require.NoError(t, srv.EnableWatch())
	defer srv.StopWatch()

	require.NoError(t, os.WriteFile(filepath.Join(srv.rootDir, "b.md"), []byte("# B\n"), 0644))
	assert.Eventually(t, func() bool { return srv.Lookup("/b") != nil }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(srv.rootDir, "a.md")))
	assert.Eventually(t, func() bool { return srv.Lookup("/a") == nil }, 3*time.Second, 20*time.Millisecond)
}
