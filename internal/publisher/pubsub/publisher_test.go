package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/linkvault/internal/bookmark"
)

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishEvent(t *testing.T) {
	t.Parallel()

	client, srv := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := client.CreateTopic(ctx, "bookmarks")
	require.NoError(t, err)

	pub := New(client)
	defer pub.Stop()

	event := bookmark.Event{
		Type:     bookmark.EventCreated,
		Bookmark: bookmark.Bookmark{ID: 7, URL: "https://example.com"},
		At:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	id, err := pub.Publish(ctx, "bookmarks", event)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, bookmark.EventCreated, msgs[0].Attributes["type"])
	assert.Equal(t, "7", msgs[0].Attributes["bookmark_id"])

	var decoded bookmark.Event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &decoded))
	assert.Equal(t, "https://example.com", decoded.Bookmark.URL)
}

func TestPublishValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "bookmarks", "x")
	require.Error(t, err)

	client, _ := newTestClient(t)
	pub := New(client)
	_, err = pub.Publish(context.Background(), "", "x")
	require.Error(t, err)
	_, err = pub.Publish(context.Background(), "bookmarks", make(chan int))
	require.Error(t, err)
}
