package server

import (
	"net/http"
	"time"

	"github.com/lazypower/drift/internal/store"
)

// postJSON is the wire shape of a post.
type postJSON struct {
	ID            int64      `json:"id"`
	GeneratorID   int64      `json:"generator_id"`
	GeneratorName string     `json:"generator_name"`
	ImageURL      *string    `json:"image_url"`
	MoreLink      *string    `json:"more_link"`
	Body          *string    `json:"body"`
	Timestamp     time.Time  `json:"timestamp"`
	SeenCount     int        `json:"seen_count"`
	LastSeenTs    *time.Time `json:"last_seen_ts"`
	Reaction      string     `json:"reaction"`
	ReactionTs    *time.Time `json:"reaction_ts"`
}

func toPostJSON(p store.Post) postJSON {
	return postJSON{
		ID:            p.ID,
		GeneratorID:   p.GeneratorID,
		GeneratorName: p.GeneratorName,
		ImageURL:      p.ImageURL,
		MoreLink:      p.MoreLink,
		Body:          p.Body,
		Timestamp:     p.Timestamp,
		SeenCount:     p.SeenCount,
		LastSeenTs:    p.LastSeenTs,
		Reaction:      string(p.Reaction),
		ReactionTs:    p.ReactionTs,
	}
}

func toPostsJSON(posts []store.Post) []postJSON {
	out := make([]postJSON, len(posts))
	for i, p := range posts {
		out[i] = toPostJSON(p)
	}
	return out
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GeneratorID int64      `json:"generator_id" validate:"required,min=1"`
		ImageURL    *string    `json:"image_url" validate:"omitempty,min=1"`
		MoreLink    *string    `json:"more_link" validate:"omitempty,url"`
		Body        *string    `json:"body"`
		Timestamp   *time.Time `json:"timestamp"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	np := store.NewPost{
		GeneratorID: req.GeneratorID,
		ImageURL:    req.ImageURL,
		MoreLink:    req.MoreLink,
		Body:        req.Body,
	}
	if req.Timestamp != nil {
		np.Timestamp = *req.Timestamp
	}

	post, err := s.db.CreatePost(r.Context(), np)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": post.ID})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}
	post, err := s.db.GetPost(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostJSON(*post))
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}
	if err := s.db.MarkSeen(r.Context(), id, s.now()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Reaction string `json:"reaction"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	reaction, err := store.ParseReaction(req.Reaction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.ToggleReaction(r.Context(), id, reaction, s.now()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "reaction": reaction})
}
