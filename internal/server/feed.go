package server

import (
	"net/http"
	"strconv"

	"github.com/lazypower/drift/internal/feed"
	"github.com/lazypower/drift/internal/store"
)

// feedResponse is the wire shape of one feed page. Next is null when the
// view has nothing more to show.
type feedResponse struct {
	Page []postJSON `json:"page"`
	Next *string    `json:"next"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, ok := queryInt(r, "limit", feed.DefaultLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	req := feed.Request{Limit: limit, Cursor: q.Get("cursor")}
	if v := q.Get("epoch"); v != "" {
		// an unparseable epoch falls back to a fresh ranking per request
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.Epoch = &epoch
		}
	}

	batch, err := s.feed.Page(r.Context(), req)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	resp := feedResponse{Page: toPostsJSON(batch.Page)}
	if batch.Next != nil {
		token := feed.EncodeCursor(batch.Next)
		resp.Next = &token
	}
	writeJSON(w, http.StatusOK, resp)
}

const (
	defaultSavedLimit = 200
	maxSavedLimit     = 1000
)

func (s *Server) handleSaved(w http.ResponseWriter, r *http.Request) {
	reactions := store.SavedReactions
	if v := r.URL.Query().Get("reactions"); v != "" {
		reactions = nil
		for _, name := range splitCSV(v) {
			reaction, err := store.ParseReaction(name)
			if err != nil || reaction == store.ReactionNone {
				writeError(w, http.StatusBadRequest, "reactions must be a list of like, dislike, heart")
				return
			}
			reactions = append(reactions, reaction)
		}
	}

	limit, ok := queryInt(r, "limit", defaultSavedLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	limit = min(limit, maxSavedLimit)
	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	posts, err := s.db.ListSaved(r.Context(), reactions, limit, offset)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	var next *int
	if len(posts) > 0 {
		n := offset + len(posts)
		next = &n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page": toPostsJSON(posts),
		"next": next,
	})
}
