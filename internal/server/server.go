package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lazypower/drift/internal/feed"
	"github.com/lazypower/drift/internal/store"
)

// Server is the drift HTTP API server.
type Server struct {
	db      *store.DB
	feed    *feed.Service
	router  chi.Router
	version string
	started time.Time
	now     func() time.Time

	slow        time.Duration
	corsOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithSlowRequest logs requests taking at least d at warn level.
func WithSlowRequest(d time.Duration) Option {
	return func(s *Server) { s.slow = d }
}

// WithCORS allows browser clients from the given origins.
func WithCORS(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithClock overrides the timestamp used for seen and reaction marks.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a new Server over the given store and feed service.
func New(db *store.DB, svc *feed.Service, version string, opts ...Option) *Server {
	s := &Server{
		db:      db,
		feed:    svc,
		version: version,
		started: time.Now(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.slow))
	r.Use(middleware.Recoverer)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/feed", s.handleFeed)
		r.Get("/saved", s.handleSaved)

		r.Post("/posts", s.handleCreatePost)
		r.Get("/posts/{postID}", s.handleGetPost)
		r.Post("/posts/{postID}/seen", s.handleMarkSeen)
		r.Post("/posts/{postID}/react", s.handleReact)

		r.Get("/generators", s.handleListGenerators)
		r.Post("/generators", s.handleCreateGenerator)
		r.Patch("/generators/{generatorID}", s.handleUpdateGenerator)
		r.Delete("/generators/{generatorID}", s.handleDeleteGenerator)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
