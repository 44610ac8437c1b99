package imagestore_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabdullah1215/videogen-control-plane/internal/adapter/imagestore"
)

func TestLocalStore_Put(t *testing.T) {
	dir := t.TempDir()
	store := imagestore.NewLocalStore(dir, "https://cdn.example.com/uploads")

	url, err := store.Put(context.Background(), "user-1", "png", []byte("fake-png-bytes"))
	require.NoError(t, err)
	assert.Contains(t, url, "https://cdn.example.com/uploads/user-1/")
	assert.Contains(t, url, ".png")

	entries, err := os.ReadDir(dir + "/user-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
