package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorePutAndOverwrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "lakehouse")
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "data.csv", []byte("v1")))

	target := filepath.Join(dir, "lakehouse", "data.csv")
	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "v1", string(raw))

	require.NoError(t, store.Put(context.Background(), "data.csv", []byte("v2")))
	raw, err = os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "v2", string(raw))

	entries, err := os.ReadDir(filepath.Join(dir, "lakehouse"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func TestLocalStoreStripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "")
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "../escape.csv", []byte("x")))
	_, err = os.Stat(filepath.Join(dir, "escape.csv"))
	require.NoError(t, err, "only the base name is used")
}

func TestLocalStoreRequiresBaseDir(t *testing.T) {
	_, err := NewLocalStore("  ", "p")
	require.Error(t, err)
}

func TestLocalStoreHonorsContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, store.Put(ctx, "data.csv", []byte("x")))
}
