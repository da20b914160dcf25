package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestWatcherDebounces(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "bundle.json")
	other := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0644))

	fw, err := New(50*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer fw.Close()

	var calls atomic.Int32
	fired := make(chan string, 4)
	require.NoError(t, fw.Watch([]string{target}, func(path string) {
		calls.Add(1)
		fired <- path
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fw.Run(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte(`{"objectType":"heart"}`), 0644))
	}
	require.NoError(t, os.WriteFile(other, []byte("{}"), 0644))

	select {
	case path := <-fired:
		abs, _ := filepath.Abs(target)
		assert.Equal(t, abs, path)
	case <-time.After(5 * time.Second):
		t.Fatal("callback not fired")
	}
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "burst of writes should fire once")
}

func TestWatchMissingDirectory(t *testing.T) {
	fw, err := New(0, nil)
	require.NoError(t, err)
	defer fw.Close()
	err = fw.Watch([]string{filepath.Join(t.TempDir(), "missing", "bundle.json")}, func(string) {})
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	fw, err := New(time.Millisecond, nil)
	require.NoError(t, err)
	defer fw.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fw.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
