package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memstore "github.com/JakeFAU/linkvault/internal/storage/memory"
)

func TestSnapshotKey(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 1, 2, 3, 4, 5, 678_900_000, time.FixedZone("CET", 3600))
	assert.Equal(t,
		"snapshots/2024-01-02T02:04:05.678Z-0f8fad5b-d9cb-469f-a165-70867728950e.html",
		SnapshotKey(at, "0f8fad5b-d9cb-469f-a165-70867728950e"),
	)
}

func TestArchiverStoresBody(t *testing.T) {
	t.Parallel()

	page := "<html><title>x</title></html>"
	fetcher := newStubFetcher().on("GET", "https://example.com", stubResponse{status: 200, body: page})
	blobs := memstore.NewBlobStore()
	archiver := NewArchiver(fetcher, blobs, fixedIDs{id: "abc"}, fixedClock{t: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)}, nil)

	key, ok := archiver.Archive(context.Background(), "https://example.com")
	require.True(t, ok)
	assert.Equal(t, "snapshots/2024-05-06T07:08:09.000Z-abc.html", key)

	obj, err := blobs.GetObject(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, page, string(obj.Data))
	assert.Equal(t, SnapshotContentType, obj.ContentType)
}

func TestArchiverFailures(t *testing.T) {
	t.Parallel()

	fetcher := newStubFetcher().
		on("GET", "https://err.example", stubResponse{status: 500, body: "boom"}).
		on("GET", "https://ok.example", stubResponse{status: 200, body: "ok"})
	blobs := memstore.NewBlobStore()
	archiver := NewArchiver(fetcher, blobs, fixedIDs{id: "abc"}, fixedClock{t: time.Now()}, nil)
	ctx := context.Background()

	_, ok := archiver.Archive(ctx, "https://err.example")
	assert.False(t, ok)
	_, ok = archiver.Archive(ctx, "https://down.example")
	assert.False(t, ok)
	assert.Empty(t, blobs.Keys())

	broken := NewArchiver(fetcher, rejectingBlobs{BlobStore: blobs}, fixedIDs{id: "abc"}, fixedClock{t: time.Now()}, nil)
	_, ok = broken.Archive(ctx, "https://ok.example")
	assert.False(t, ok)
}

type rejectingBlobs struct {
	*memstore.BlobStore
}

func (rejectingBlobs) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("quota exceeded")
}
