package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyFileRotatesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "app-2020-01-01.log")
	require.NoError(t, os.WriteFile(stale, []byte("old\n"), 0o644))
	unrelated := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep\n"), 0o644))

	f, err := NewDailyFile(dir, 3)
	require.NoError(t, err)
	defer f.Close()

	now := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	f.now = func() time.Time { return now }
	_, err = f.Write([]byte("first\n"))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = f.Write([]byte("second\n"))
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(dir, "app-2026-03-10.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))
	second, err := os.ReadFile(filepath.Join(dir, "app-2026-03-11.log"))
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(second))

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
}

func TestNewFallsBackToInfo(t *testing.T) {
	logger, closeFn, err := New(Options{Level: "chatty"})
	require.NoError(t, err)
	defer closeFn()
	assert.Equal(t, "info", logger.GetLevel().String())
}
