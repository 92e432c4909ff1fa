package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withProjectMarkers stubs hasProjectMarker to treat markerDirs as project
// roots, restoring the real implementation on cleanup.
func withProjectMarkers(t *testing.T, markerDirs ...string) {
	t.Helper()
	set := make(map[string]struct{}, len(markerDirs))
	for _, d := range markerDirs {
		set[d] = struct{}{}
	}
	orig := hasProjectMarker
	hasProjectMarker = func(dir string) bool {
		_, ok := set[dir]
		return ok
	}
	t.Cleanup(func() { hasProjectMarker = orig })
}

func TestCoalescer_SingleEvent_EmitsResolvedRoot(t *testing.T) {
	withProjectMarkers(t, "/repo")
	c := NewCoalescer(30 * time.Millisecond)
	defer c.Stop()

	c.Add("/repo/src/main.go")

	select {
	case root := <-c.Output():
		assert.Equal(t, "/repo", root)
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for coalesced index command")
	}
}

func TestCoalescer_NoMarkerFound_WalksToFilesystemRoot(t *testing.T) {
	withProjectMarkers(t) // no markers anywhere
	c := NewCoalescer(30 * time.Millisecond)
	defer c.Stop()

	c.Add("/repo/src/main.go")

	select {
	case root := <-c.Output():
		assert.Equal(t, "/", root)
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for coalesced index command")
	}
}

func TestCoalescer_RapidBurst_EmitsExactlyOneRoot(t *testing.T) {
	withProjectMarkers(t, "/repo")
	c := NewCoalescer(50 * time.Millisecond)
	defer c.Stop()

	for i := 0; i < 20; i++ {
		c.Add("/repo/src/main.go")
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-c.Output():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for coalesced index command")
	}

	select {
	case root := <-c.Output():
		t.Fatalf("expected exactly one emission, got a second: %q", root)
	case <-time.After(150 * time.Millisecond):
		// expected: no second emission
	}
}

func TestCoalescer_EventDuringWindow_ResetsDebounce(t *testing.T) {
	withProjectMarkers(t, "/repo")
	c := NewCoalescer(80 * time.Millisecond)
	defer c.Stop()

	c.Add("/repo/a.go")
	time.Sleep(60 * time.Millisecond)
	c.Add("/repo/b.go")

	// Had the first event not been reset, this would already have fired.
	select {
	case <-c.Output():
		t.Fatal("fired before the debounce window elapsed from the latest event")
	case <-time.After(40 * time.Millisecond):
	}

	select {
	case <-c.Output():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for coalesced index command")
	}
}

func TestCoalescer_MultiplePaths_ClearsPendingSetAfterEmission(t *testing.T) {
	withProjectMarkers(t, "/repo")
	c := NewCoalescer(30 * time.Millisecond)
	defer c.Stop()

	c.Add("/repo/a.go")
	c.Add("/repo/b.go")
	c.Add("/repo/c.go")

	select {
	case root := <-c.Output():
		assert.Equal(t, "/repo", root)
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timeout waiting for coalesced index command")
	}

	c.mu.Lock()
	pending := len(c.pending)
	c.mu.Unlock()
	assert.Equal(t, 0, pending, "pending set should be cleared after emission")
}

func TestCoalescer_Stop_ClosesOutput(t *testing.T) {
	c := NewCoalescer(30 * time.Millisecond)
	c.Stop()

	select {
	case _, ok := <-c.Output():
		assert.False(t, ok, "channel should be closed")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestCoalescer_AddAfterStop_DoesNotPanic(t *testing.T) {
	c := NewCoalescer(30 * time.Millisecond)
	c.Stop()

	require.NotPanics(t, func() {
		c.Add("/repo/a.go")
	})
}

func TestNewCoalescer_ZeroWindowUsesDefault(t *testing.T) {
	c := NewCoalescer(0)
	defer c.Stop()
	assert.Equal(t, DefaultDebounceWindow, c.window)
}
