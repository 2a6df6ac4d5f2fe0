package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Reaction is the viewer's reaction to a post.
type Reaction string

const (
	ReactionNone    Reaction = "none"
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
	ReactionHeart   Reaction = "heart"
)

// SavedReactions are the reactions that put a post on the saved list.
var SavedReactions = []Reaction{ReactionLike, ReactionDislike, ReactionHeart}

// ParseReaction validates a reaction name. The empty string means none.
func ParseReaction(s string) (Reaction, error) {
	switch r := Reaction(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return ReactionNone, nil
	case ReactionNone, ReactionLike, ReactionDislike, ReactionHeart:
		return r, nil
	default:
		return "", fmt.Errorf("invalid reaction %q", s)
	}
}

// Post is a feed item. Core fields are immutable after creation; seen and
// reaction state only change through MarkSeen and ToggleReaction.
type Post struct {
	ID            int64
	GeneratorID   int64
	GeneratorName string
	ImageURL      *string
	MoreLink      *string
	Body          *string
	Timestamp     time.Time
	SeenCount     int
	LastSeenTs    *time.Time
	Reaction      Reaction
	ReactionTs    *time.Time
}

// NewPost holds the caller-supplied fields of a post. A zero Timestamp means
// "now".
type NewPost struct {
	GeneratorID int64
	ImageURL    *string
	MoreLink    *string
	Body        *string
	Timestamp   time.Time
}

const postColumns = `id, generator_id, generator_name, image_url, more_link, body,
	timestamp, seen_count, last_seen_ts, reaction, reaction_ts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (Post, error) {
	var p Post
	var image, more, body sql.NullString
	var ts int64
	var lastSeen, reactionTs sql.NullInt64
	var reaction string
	if err := s.Scan(&p.ID, &p.GeneratorID, &p.GeneratorName, &image, &more, &body,
		&ts, &p.SeenCount, &lastSeen, &reaction, &reactionTs); err != nil {
		return p, err
	}
	p.ImageURL = nullString(image)
	p.MoreLink = nullString(more)
	p.Body = nullString(body)
	p.Timestamp = fromMillis(ts)
	p.LastSeenTs = nullTime(lastSeen)
	p.Reaction = Reaction(reaction)
	p.ReactionTs = nullTime(reactionTs)
	return p, nil
}

func scanPosts(rows *sql.Rows) ([]Post, error) {
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CreatePost inserts a post, denormalising the generator's current name onto
// it. Returns ErrNotFound if the generator does not exist.
func (db *DB) CreatePost(ctx context.Context, np NewPost) (*Post, error) {
	gen, err := db.GetGenerator(ctx, np.GeneratorID)
	if err != nil {
		return nil, err
	}

	ts := np.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO posts (generator_id, generator_name, image_url, more_link, body, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, gen.ID, gen.Name, np.ImageURL, np.MoreLink, np.Body, ts.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}

	id, _ := result.LastInsertId()
	return &Post{
		ID:            id,
		GeneratorID:   gen.ID,
		GeneratorName: gen.Name,
		ImageURL:      np.ImageURL,
		MoreLink:      np.MoreLink,
		Body:          np.Body,
		Timestamp:     fromMillis(ts.UnixMilli()),
		Reaction:      ReactionNone,
	}, nil
}

// CreatePosts inserts a batch of posts from one generator in a single
// transaction.
func (db *DB) CreatePosts(ctx context.Context, generatorID int64, batch []NewPost) (int, error) {
	gen, err := db.GetGenerator(ctx, generatorID)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create posts: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO posts (generator_id, generator_name, image_url, more_link, body, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare create posts: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, np := range batch {
		ts := np.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if _, err := stmt.ExecContext(ctx, gen.ID, gen.Name, np.ImageURL, np.MoreLink, np.Body, ts.UnixMilli()); err != nil {
			return 0, fmt.Errorf("insert post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create posts: %w", err)
	}
	return len(batch), nil
}

// GetPost returns the post with the given id, or ErrNotFound.
func (db *DB) GetPost(ctx context.Context, id int64) (*Post, error) {
	row := db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

// MarkSeen increments seen_count and overwrites last_seen_ts. Re-marking is
// safe but counts again.
func (db *DB) MarkSeen(ctx context.Context, id int64, when time.Time) error {
	result, err := db.ExecContext(ctx, `
		UPDATE posts SET seen_count = seen_count + 1, last_seen_ts = ?
		WHERE id = ?
	`, when.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	return nil
}

// ToggleReaction sets the reaction on a post. Clearing to none also clears
// reaction_ts. Last writer wins.
func (db *DB) ToggleReaction(ctx context.Context, id int64, reaction Reaction, when time.Time) error {
	var reactionTs any
	if reaction != ReactionNone {
		reactionTs = when.UnixMilli()
	}

	result, err := db.ExecContext(ctx, `
		UPDATE posts SET reaction = ?, reaction_ts = ? WHERE id = ?
	`, string(reaction), reactionTs, id)
	if err != nil {
		return fmt.Errorf("toggle reaction: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	return nil
}

// FreshPool returns unseen posts created at or after since, newest first.
func (db *DB) FreshPool(ctx context.Context, since time.Time, limit int) ([]Post, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE seen_count = 0 AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, since.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("fresh pool: %w", err)
	}
	return scanPosts(rows)
}

// RevisitPool returns seen posts last seen at or before seenBefore,
// longest-unseen first.
func (db *DB) RevisitPool(ctx context.Context, seenBefore time.Time, limit int) ([]Post, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE seen_count > 0 AND last_seen_ts <= ?
		ORDER BY last_seen_ts ASC
		LIMIT ?
	`, seenBefore.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("revisit pool: %w", err)
	}
	return scanPosts(rows)
}

// ListSaved returns posts whose reaction is in reactions, most recently
// reacted first, offset paginated. An empty filter returns nothing.
func (db *DB) ListSaved(ctx context.Context, reactions []Reaction, limit, offset int) ([]Post, error) {
	if len(reactions) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(reactions))
	args := make([]any, 0, len(reactions)+2)
	for i, r := range reactions {
		placeholders[i] = "?"
		args = append(args, string(r))
	}
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE reaction IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY reaction_ts DESC, id DESC
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list saved: %w", err)
	}
	return scanPosts(rows)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
