package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/linkvault/internal/bookmark"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	payload := []byte("<html></html>")

	uri, err := store.PutObject(ctx, "snapshots/a.html", "text/html", payload)
	require.NoError(t, err)
	assert.Equal(t, "memory://snapshots/a.html", uri)

	payload[0] = 'X'
	obj, err := store.GetObject(ctx, "snapshots/a.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(obj.Data), "store must keep its own copy")
	assert.Equal(t, "text/html", obj.ContentType)

	require.NoError(t, store.DeleteObject(ctx, "snapshots/a.html"))
	_, err = store.GetObject(ctx, "snapshots/a.html")
	require.ErrorIs(t, err, bookmark.ErrBlobNotFound)
	require.NoError(t, store.DeleteObject(ctx, "snapshots/a.html"), "deleting twice is fine")
	assert.Empty(t, store.Keys())
}

func TestBlobStoreRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), "", "text/plain", nil)
	require.Error(t, err)
}
