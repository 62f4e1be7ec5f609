package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ewastehub/apiserver/config"
	"github.com/ewastehub/apiserver/internal/cache"
	"github.com/ewastehub/apiserver/internal/db"
	"github.com/ewastehub/apiserver/internal/handlers"
	"github.com/ewastehub/apiserver/internal/mq"
	"github.com/ewastehub/apiserver/internal/services"
	"github.com/ewastehub/apiserver/internal/storage"
	"github.com/ewastehub/apiserver/internal/store"
	"github.com/ewastehub/apiserver/internal/vision"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
	analytics  *cache.AnalyticsCache
}

// New constructs a Server with basic middleware and defaults. The
// database schema is applied idempotently before any route is served.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(dbConn); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	backend, err := storage.NewBackend(ctx, cfg.Upload)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	objectStorage := storage.NewStorage(backend)
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	intake := storage.NewIntake(objectStorage, cfg.Upload.PublicPrefix)

	mqBackend, err := mq.NewBackend(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	var events *mq.MQ
	if mqBackend != nil {
		events = mq.New(mqBackend)
	}

	analyticsCache := cache.New(cfg.Redis)

	userRepo := store.NewUserRepository(dbConn)
	itemRepo := store.NewItemRepository(dbConn)

	userService := services.NewUserService(userRepo)
	analyzer := vision.NewClient(cfg.Vision, objectStorage, intake)
	itemService := services.NewItemService(
		itemRepo,
		userRepo,
		intake,
		analyzer,
		events,
		cfg.MQ.Channel,
		analyticsCache,
	)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/", handlers.Root)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, cfg.Auth)
	})
	router.Route("/ewaste", func(r chi.Router) {
		handlers.EwasteRouter(r, itemService)
	})
	router.Route(cfg.Upload.PublicPrefix, func(r chi.Router) {
		handlers.UploadsRouter(r, objectStorage)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
		analytics:  analyticsCache,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.events != nil {
		_ = s.events.Close()
	}
	_ = s.analytics.Close()
	return s.httpServer.Close()
}
