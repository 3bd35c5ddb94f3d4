package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/payinsight/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "users.csv")
	other := filepath.Join(dir, "notes.txt")
	testutil.WriteFile(t, target, "user_id\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	changed := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Files(ctx, []string{target}, 50*time.Millisecond, testutil.NewTestLogger(t), func(name string) {
			calls.Add(1)
			changed <- name
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	for i := range 3 {
		require.NoError(t, os.WriteFile(target, []byte("user_id\nu"+string(rune('1'+i))+"\n"), 0o600))
	}

	select {
	case name := <-changed:
		assert.Equal(t, target, name)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "burst coalesced into one call")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFiles_MissingDirectory(t *testing.T) {
	err := Files(context.Background(), []string{filepath.Join(t.TempDir(), "nope", "users.csv")}, 0, nil, func(string) {})
	assert.ErrorContains(t, err, "failed to watch")
}
