package watchdog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpireFiresAfterDeadline(t *testing.T) {
	fired := make(chan string, 1)
	w := NewWithExpire(func(doc string, d time.Duration) {
		fired <- doc
	})
	w.Arm(10*time.Millisecond, "chapter.md")

	select {
	case doc := <-fired:
		assert.Equal(t, "chapter.md", doc)
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog never fired")
	}
}

func TestDisarmPreventsExpiry(t *testing.T) {
	var fired atomic.Bool
	w := NewWithExpire(func(string, time.Duration) {
		fired.Store(true)
	})
	w.Arm(20*time.Millisecond, "chapter.md")
	w.Disarm()

	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestRearmResetsDeadline(t *testing.T) {
	fired := make(chan string, 2)
	w := NewWithExpire(func(doc string, d time.Duration) {
		fired <- doc
	})
	defer w.Disarm()

	w.Arm(time.Hour, "first.md")
	w.Arm(10*time.Millisecond, "second.md")

	select {
	case doc := <-fired:
		require.Equal(t, "second.md", doc)
	case <-time.After(2 * time.Second):
		t.Fatal("rearmed watchdog never fired")
	}
}

func TestDisarmWithoutArmIsSafe(t *testing.T) {
	w := New()
	w.Disarm()
	w.Disarm()
}
