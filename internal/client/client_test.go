package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/drift/internal/feed"
	"github.com/lazypower/drift/internal/logger"
	"github.com/lazypower/drift/internal/server"
	"github.com/lazypower/drift/internal/store"
)

func testAPI(t *testing.T) (*Client, *store.DB) {
	t.Helper()
	logger.Init(logger.Options{Level: "off"})
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	params := feed.DefaultParams()
	params.Randomness = 0
	svc, err := feed.NewService(db, params)
	require.NoError(t, err)

	ts := httptest.NewServer(server.New(db, svc, "test"))
	t.Cleanup(ts.Close)
	return New(ts.URL), db
}

func TestClientRoundTrip(t *testing.T) {
	c, _ := testAPI(t)
	ctx := context.Background()

	require.True(t, c.Healthy(ctx))

	g, err := c.CreateGenerator(ctx, Generator{Name: "haiku", Type: "text"})
	require.NoError(t, err)
	require.NotZero(t, g.ID)

	gens, err := c.Generators(ctx)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, "haiku", gens[0].Name)

	body := "an old silent pond"
	id, err := c.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: &body})
	require.NoError(t, err)

	p, err := c.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "haiku", p.GeneratorName)

	renamed, err := c.UpdateGenerator(ctx, g.ID, "tanka", nil)
	require.NoError(t, err)
	assert.Equal(t, "tanka", renamed.Name)
	assert.Equal(t, "text", renamed.Type)
	p, err = c.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "haiku", p.GeneratorName, "posts keep the name they were created with")

	var se *StatusError
	require.ErrorAs(t, c.DeleteGenerator(ctx, g.ID), &se)
	assert.Equal(t, http.StatusConflict, se.Status)
	idle, err := c.CreateGenerator(ctx, Generator{Name: "idle", Type: "picture", Config: []byte(`{"size":512}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"size":512}`, string(idle.Config))
	require.NoError(t, c.DeleteGenerator(ctx, idle.ID))
	assert.Equal(t, "none", p.Reaction)

	require.NoError(t, c.MarkSeen(ctx, id))
	require.NoError(t, c.React(ctx, id, "heart"))

	saved, err := c.Saved(ctx, []string{"heart"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, saved.Page, 1)
	assert.Equal(t, id, saved.Page[0].ID)
	assert.Equal(t, 1, saved.Page[0].SeenCount)
	require.NotNil(t, saved.Next)
	assert.Equal(t, 1, *saved.Next)
}

func TestClientStatusErrors(t *testing.T) {
	c, _ := testAPI(t)
	ctx := context.Background()

	err := c.MarkSeen(ctx, 404)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.False(t, IsRetryable(err))

	err = c.React(ctx, 1, "meh")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
}

func TestClientRetryableOnUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"store unavailable","retryable":true}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL).Feed(context.Background(), FeedRequest{Limit: 5})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "store unavailable")
}

func TestClientSendsRequestID(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-Id")
		w.Write([]byte(`{"page":[],"next":null}`))
	}))
	defer ts.Close()

	b, err := New(ts.URL).Feed(context.Background(), FeedRequest{})
	require.NoError(t, err)
	assert.Empty(t, b.Page)
	assert.Nil(t, b.Next)
	assert.Len(t, got, 36)
}

func TestSessionOverHTTP(t *testing.T) {
	c, db := testAPI(t)
	ctx := context.Background()

	g := &store.Generator{Name: "gen", Type: "feed"}
	require.NoError(t, db.CreateGenerator(ctx, g))
	now := time.Now()
	var batch []store.NewPost
	for i := 0; i < 23; i++ {
		batch = append(batch, store.NewPost{Timestamp: now.Add(-time.Duration(i) * time.Minute)})
	}
	_, err := db.CreatePosts(ctx, g.ID, batch)
	require.NoError(t, err)

	s := NewSession(c, NewBuffer(5, 100))
	for {
		ok, err := s.LoadMore(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
	}

	items := s.Buffer().Items()
	require.Len(t, items, 23)
	seen := map[int64]bool{}
	for i, p := range items {
		require.False(t, seen[p.ID], "duplicate %d", p.ID)
		seen[p.ID] = true
		if i > 0 {
			assert.True(t, !p.Timestamp.After(items[i-1].Timestamp), "newest first")
		}
	}
}
