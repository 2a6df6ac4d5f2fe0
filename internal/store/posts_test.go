package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testGenerator(t *testing.T, db *DB) *Generator {
	t.Helper()
	g := &Generator{Name: "hn-digest", Type: "feed"}
	if err := db.CreateGenerator(context.Background(), g); err != nil {
		t.Fatalf("CreateGenerator: %v", err)
	}
	return g
}

func strPtr(s string) *string { return &s }

func TestCreatePost(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	g := testGenerator(t, db)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, err := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("hello"), Timestamp: ts})
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if p.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if p.GeneratorName != "hn-digest" {
		t.Errorf("GeneratorName = %q, want hn-digest", p.GeneratorName)
	}

	got, err := db.GetPost(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.SeenCount != 0 || got.LastSeenTs != nil {
		t.Errorf("new post seen state = (%d, %v), want (0, nil)", got.SeenCount, got.LastSeenTs)
	}
	if got.Reaction != ReactionNone || got.ReactionTs != nil {
		t.Errorf("new post reaction = (%s, %v), want (none, nil)", got.Reaction, got.ReactionTs)
	}
	if got.Body == nil || *got.Body != "hello" {
		t.Errorf("Body = %v, want hello", got.Body)
	}
	if got.ImageURL != nil {
		t.Errorf("ImageURL = %v, want nil", *got.ImageURL)
	}
}

func TestCreatePostIDsIncrease(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	g := testGenerator(t, db)

	var last int64
	for i := 0; i < 5; i++ {
		p, err := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("x")})
		if err != nil {
			t.Fatalf("CreatePost: %v", err)
		}
		if p.ID <= last {
			t.Fatalf("id %d not greater than previous %d", p.ID, last)
		}
		last = p.ID
	}
}

func TestCreatePostUnknownGenerator(t *testing.T) {
	db := testDB(t)

	_, err := db.CreatePost(context.Background(), NewPost{GeneratorID: 42})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestCreatePosts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	g := testGenerator(t, db)

	n, err := db.CreatePosts(ctx, g.ID, []NewPost{{Body: strPtr("a")}, {Body: strPtr("b")}, {Body: strPtr("c")}})
	if err != nil {
		t.Fatalf("CreatePosts: %v", err)
	}
	if n != 3 {
		t.Errorf("created = %d, want 3", n)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&count)
	if count != 3 {
		t.Errorf("row count = %d, want 3", count)
	}
}

func TestMarkSeen(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	g := testGenerator(t, db)
	p, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("x")})

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	if err := db.MarkSeen(ctx, p.ID, first); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if err := db.MarkSeen(ctx, p.ID, second); err != nil {
		t.Fatalf("MarkSeen again: %v", err)
	}

	got, _ := db.GetPost(ctx, p.ID)
	if got.SeenCount != 2 {
		t.Errorf("SeenCount = %d, want 2", got.SeenCount)
	}
	if got.LastSeenTs == nil || !got.LastSeenTs.Equal(second) {
		t.Errorf("LastSeenTs = %v, want %v", got.LastSeenTs, second)
	}
}

func TestMarkSeenMissing(t *testing.T) {
	db := testDB(t)

	err := db.MarkSeen(context.Background(), 7, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestToggleReaction(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	g := testGenerator(t, db)
	p, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("x")})

	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := db.ToggleReaction(ctx, p.ID, ReactionHeart, when); err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	got, _ := db.GetPost(ctx, p.ID)
	if got.Reaction != ReactionHeart {
		t.Errorf("Reaction = %s, want heart", got.Reaction)
	}
	if got.ReactionTs == nil || !got.ReactionTs.Equal(when) {
		t.Errorf("ReactionTs = %v, want %v", got.ReactionTs, when)
	}

	// Clearing drops the timestamp
	if err := db.ToggleReaction(ctx, p.ID, ReactionNone, when.Add(time.Minute)); err != nil {
		t.Fatalf("ToggleReaction none: %v", err)
	}
	got, _ = db.GetPost(ctx, p.ID)
	if got.Reaction != ReactionNone || got.ReactionTs != nil {
		t.Errorf("cleared reaction = (%s, %v), want (none, nil)", got.Reaction, got.ReactionTs)
	}
}

func TestParseReaction(t *testing.T) {
	cases := map[string]Reaction{"": ReactionNone, "none": ReactionNone, "Like": ReactionLike, " heart ": ReactionHeart, "dislike": ReactionDislike}
	for in, want := range cases {
		got, err := ParseReaction(in)
		if err != nil {
			t.Errorf("ParseReaction(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseReaction(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := ParseReaction("meh"); err == nil {
		t.Error("expected error for unknown reaction")
	}
}

func TestFreshPool(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	g := testGenerator(t, db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	old, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("old"), Timestamp: now.Add(-30 * time.Hour)})
	mid, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("mid"), Timestamp: now.Add(-5 * time.Hour)})
	newest, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("new"), Timestamp: now.Add(-time.Hour)})
	seen, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("seen"), Timestamp: now.Add(-2 * time.Hour)})
	db.MarkSeen(ctx, seen.ID, now)

	posts, err := db.FreshPool(ctx, now.Add(-20*time.Hour), 10)
	if err != nil {
		t.Fatalf("FreshPool: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("FreshPool returned %d posts, want 2", len(posts))
	}
	if posts[0].ID != newest.ID || posts[1].ID != mid.ID {
		t.Errorf("FreshPool order = [%d %d], want [%d %d]", posts[0].ID, posts[1].ID, newest.ID, mid.ID)
	}
	for _, p := range posts {
		if p.ID == old.ID || p.ID == seen.ID {
			t.Errorf("FreshPool included post %d", p.ID)
		}
	}

	limited, _ := db.FreshPool(ctx, now.Add(-20*time.Hour), 1)
	if len(limited) != 1 || limited[0].ID != newest.ID {
		t.Errorf("FreshPool limit 1 = %v, want [%d]", limited, newest.ID)
	}
}

func TestRevisitPool(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	g := testGenerator(t, db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("a"), Timestamp: now.Add(-48 * time.Hour)})
	b, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("b"), Timestamp: now.Add(-48 * time.Hour)})
	recent, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("recent"), Timestamp: now.Add(-48 * time.Hour)})
	db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("unseen"), Timestamp: now.Add(-48 * time.Hour)})

	db.MarkSeen(ctx, a.ID, now.Add(-10*time.Hour))
	db.MarkSeen(ctx, b.ID, now.Add(-20*time.Hour))
	db.MarkSeen(ctx, recent.ID, now.Add(-10*time.Minute))

	posts, err := db.RevisitPool(ctx, now.Add(-2*time.Hour), 10)
	if err != nil {
		t.Fatalf("RevisitPool: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("RevisitPool returned %d posts, want 2", len(posts))
	}
	if posts[0].ID != b.ID || posts[1].ID != a.ID {
		t.Errorf("RevisitPool order = [%d %d], want [%d %d]", posts[0].ID, posts[1].ID, b.ID, a.ID)
	}
}

func TestListSaved(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	g := testGenerator(t, db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 4; i++ {
		p, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("x")})
		ids = append(ids, p.ID)
	}
	db.ToggleReaction(ctx, ids[0], ReactionLike, base)
	db.ToggleReaction(ctx, ids[1], ReactionHeart, base.Add(time.Minute))
	db.ToggleReaction(ctx, ids[2], ReactionDislike, base.Add(2*time.Minute))

	all, err := db.ListSaved(ctx, SavedReactions, 10, 0)
	if err != nil {
		t.Fatalf("ListSaved: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListSaved returned %d, want 3", len(all))
	}
	if all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Errorf("ListSaved not ordered by reaction_ts desc: %d, %d, %d", all[0].ID, all[1].ID, all[2].ID)
	}

	liked, _ := db.ListSaved(ctx, []Reaction{ReactionLike, ReactionHeart}, 10, 0)
	if len(liked) != 2 {
		t.Errorf("filtered ListSaved returned %d, want 2", len(liked))
	}

	page2, _ := db.ListSaved(ctx, SavedReactions, 2, 2)
	if len(page2) != 1 || page2[0].ID != ids[0] {
		t.Errorf("offset page = %v, want [%d]", page2, ids[0])
	}

	none, _ := db.ListSaved(ctx, nil, 10, 0)
	if len(none) != 0 {
		t.Errorf("empty filter returned %d posts", len(none))
	}
}

func TestGenerators(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	g := &Generator{Name: "poems", Type: "text", Config: []byte(`{"prompt":"a poem"}`)}
	if err := db.CreateGenerator(ctx, g); err != nil {
		t.Fatalf("CreateGenerator: %v", err)
	}
	if err := db.CreateGenerator(ctx, &Generator{Name: "bad", Type: "text", Config: []byte("{")}); err == nil {
		t.Error("expected error for invalid config json")
	}

	gens, err := db.ListGenerators(ctx)
	if err != nil {
		t.Fatalf("ListGenerators: %v", err)
	}
	if len(gens) != 1 || gens[0].Name != "poems" || string(gens[0].Config) != `{"prompt":"a poem"}` {
		t.Errorf("ListGenerators = %+v", gens)
	}

	if _, err := db.GetGenerator(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGenerator missing: err = %v, want ErrNotFound", err)
	}
}

func TestUpdateGeneratorKeepsPostNames(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	g := &Generator{Name: "poems", Type: "text", Config: []byte(`{"prompt":"a poem"}`)}
	if err := db.CreateGenerator(ctx, g); err != nil {
		t.Fatalf("CreateGenerator: %v", err)
	}
	before, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("x")})

	updated, err := db.UpdateGenerator(ctx, g.ID, "verse", nil)
	if err != nil {
		t.Fatalf("UpdateGenerator: %v", err)
	}
	if updated.Name != "verse" || string(updated.Config) != `{"prompt":"a poem"}` {
		t.Errorf("updated = %+v, want renamed with config kept", updated)
	}

	after, _ := db.CreatePost(ctx, NewPost{GeneratorID: g.ID, Body: strPtr("y")})
	old, _ := db.GetPost(ctx, before.ID)
	if old.GeneratorName != "poems" {
		t.Errorf("existing post GeneratorName = %q, want poems", old.GeneratorName)
	}
	if after.GeneratorName != "verse" {
		t.Errorf("new post GeneratorName = %q, want verse", after.GeneratorName)
	}

	updated, err = db.UpdateGenerator(ctx, g.ID, "verse", []byte(`{"prompt":"a limerick"}`))
	if err != nil {
		t.Fatalf("UpdateGenerator config: %v", err)
	}
	if string(updated.Config) != `{"prompt":"a limerick"}` {
		t.Errorf("Config = %s", updated.Config)
	}

	if _, err := db.UpdateGenerator(ctx, g.ID, "x", []byte("{")); err == nil {
		t.Error("expected error for invalid config json")
	}
	if _, err := db.UpdateGenerator(ctx, 999, "x", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing generator: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteGenerator(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	used := testGenerator(t, db)
	db.CreatePost(ctx, NewPost{GeneratorID: used.ID, Body: strPtr("x")})
	idle := &Generator{Name: "idle", Type: "picture"}
	db.CreateGenerator(ctx, idle)

	if err := db.DeleteGenerator(ctx, used.ID); !errors.Is(err, ErrInUse) {
		t.Errorf("delete used generator: err = %v, want ErrInUse", err)
	}
	if err := db.DeleteGenerator(ctx, idle.ID); err != nil {
		t.Fatalf("DeleteGenerator: %v", err)
	}
	if _, err := db.GetGenerator(ctx, idle.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted generator still present: %v", err)
	}
	if err := db.DeleteGenerator(ctx, idle.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v, want ErrNotFound", err)
	}
}
