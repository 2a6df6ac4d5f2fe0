package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lazypower/drift/internal/store"
)

type generatorJSON struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

func (s *Server) handleCreateGenerator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string          `json:"name" validate:"required"`
		Type   string          `json:"type" validate:"required,oneof=feed text picture"`
		Config json.RawMessage `json:"config"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	cfg := req.Config
	if string(cfg) == "null" {
		cfg = nil
	}
	g := &store.Generator{Name: strings.TrimSpace(req.Name), Type: req.Type, Config: cfg}
	if err := s.db.CreateGenerator(r.Context(), g); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, generatorJSON{g.ID, g.Name, g.Type, g.Config})
}

func (s *Server) handleListGenerators(w http.ResponseWriter, r *http.Request) {
	gens, err := s.db.ListGenerators(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	out := make([]generatorJSON, len(gens))
	for i, g := range gens {
		out[i] = generatorJSON{g.ID, g.Name, g.Type, g.Config}
	}
	writeJSON(w, http.StatusOK, map[string]any{"generators": out})
}

func (s *Server) handleUpdateGenerator(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "generatorID")
	if !ok {
		return
	}
	var req struct {
		Name   string          `json:"name" validate:"required"`
		Config json.RawMessage `json:"config"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	cfg := req.Config
	if string(cfg) == "null" {
		cfg = nil
	}
	g, err := s.db.UpdateGenerator(r.Context(), id, strings.TrimSpace(req.Name), cfg)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generatorJSON{g.ID, g.Name, g.Type, g.Config})
}

func (s *Server) handleDeleteGenerator(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "generatorID")
	if !ok {
		return
	}
	if err := s.db.DeleteGenerator(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
