package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerunsChangedDocument(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "chapter.md")
	require.NoError(t, os.WriteFile(doc, []byte("before\n"), 0644))

	var mu sync.Mutex
	var reruns []string
	w, err := New([]string{doc}, func(path string) {
		mu.Lock()
		reruns = append(reruns, path)
		mu.Unlock()
	})
	require.NoError(t, err)
	w.debounceDur = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, os.WriteFile(doc, []byte("after\n"), 0644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reruns) > 0
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, doc, reruns[0])
	mu.Unlock()

	cancel()
	<-done
}

func TestIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "chapter.md")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("x\n"), 0644))

	var fired sync.Map
	w, err := New([]string{doc}, func(path string) {
		fired.Store(path, true)
	})
	require.NoError(t, err)
	w.debounceDur = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, os.WriteFile(other, []byte("noise\n"), 0644))
	<-done

	_, ok := fired.Load(doc)
	assert.False(t, ok)
}

func TestDebounceCoalescesRapidSaves(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "chapter.md")
	require.NoError(t, os.WriteFile(doc, []byte("v0\n"), 0644))

	var mu sync.Mutex
	count := 0
	w, err := New([]string{doc}, func(string) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)
	w.debounceDur = 200 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Burst of saves within one debounce window.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(doc, []byte("v\n"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 1
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, count)
	mu.Unlock()

	cancel()
	<-done
}

func TestNewFailsForMissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "gone", "chapter.md")}, func(string) {})
	require.Error(t, err)
}
