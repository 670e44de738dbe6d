package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcher_Run(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guest.wasm")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	w, err := New(path, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)

	// Unrelated files in the same directory are ignored.
	time.Sleep(100 * time.Millisecond) // let the first burst settle
	before := calls.Load()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, before, calls.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_Run_LogsCallbackErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guest.wasm")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	core, logs := observer.New(zap.ErrorLevel)
	w, err := New(path, time.Millisecond, zap.New(core))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			return errors.New("bad guest")
		})
	}()

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))
	require.Eventually(t, func() bool {
		return logs.FilterMessage("reload failed").Len() >= 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing", "guest.wasm"), time.Millisecond, nil)
	require.Error(t, err)
}

func TestWatcher_Path(t *testing.T) {
	dir := t.TempDir()
	w, err := New(filepath.Join(dir, "guest.wasm"), time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	require.True(t, filepath.IsAbs(w.Path()))
	require.Equal(t, "guest.wasm", filepath.Base(w.Path()))
}
