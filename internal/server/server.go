// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: New opens the database, builds every
// service over it, wires handlers to routes, and owns the lifecycle of the
// background workers (expiry sweeper, claim mailer).
//
//	config → sqlite.DB → services → handlers → chi router
//	                  ↘ Sweeper (cron)   ↘ Mailer (SMTP queue)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/foodbridge/internal/auth"
	"github.com/sakif/foodbridge/internal/config"
	"github.com/sakif/foodbridge/internal/handler"
	"github.com/sakif/foodbridge/internal/metrics"
	"github.com/sakif/foodbridge/internal/middleware"
	"github.com/sakif/foodbridge/internal/notify"
	sqliteRepo "github.com/sakif/foodbridge/internal/repository/sqlite"
	"github.com/sakif/foodbridge/internal/scheduler"
	"github.com/sakif/foodbridge/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router, the database, and the background workers.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	tokens  *auth.TokenService
	mailer  *notify.Mailer     // nil when SMTP is not configured
	sweeper *scheduler.Sweeper // nil when the sweep is disabled
	limiter *middleware.RateLimiter

	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New wires the whole application. Nothing runs in the background until Start.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		tokens:  tokens,
		limiter: middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger),
	}

	var notifier service.ClaimNotifier
	smtp := notify.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}
	if smtp.Enabled() {
		s.mailer = notify.NewMailer(smtp, logger)
		notifier = s.mailer
	} else {
		logger.Info("SMTP not configured, claim notifications go to the log")
		notifier = notify.NewLogNotifier(logger)
	}

	authService := service.NewAuthService(db, tokens, auth.NewPasswordService(cfg.BcryptCost), logger)
	foodService := service.NewFoodService(db, db, notifier, logger)
	ratingService := service.NewRatingService(db, db, db, logger)
	chatService := service.NewChatService(db, db, db, logger)
	userService := service.NewUserService(db, logger)

	if scheduler.Disabled(cfg.SweepSchedule) {
		logger.Info("expiry sweeper disabled, expiry is derived at read time only")
	} else {
		s.sweeper, err = scheduler.NewSweeper(cfg.SweepSchedule, foodService, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	s.routes(
		handler.NewAuthHandler(authService, tokens.TTL(), cfg.CookieSecure, logger),
		handler.NewFoodHandler(foodService, logger),
		handler.NewRatingHandler(ratingService, logger),
		handler.NewChatHandler(chatService, logger),
		handler.NewUserHandler(userService, logger),
	)
	return s, nil
}

// routes mounts every endpoint.
//
// MIDDLEWARE ORDER:
//  1. RequestID: unique ID per request, logged by Logger
//  2. RealIP: client IP from proxy headers, used by the rate limiter
//  3. Recoverer: panics become 500s
//  4. Logger: one structured line per request
//  5. InstrumentHandler: Prometheus request metrics
func (s *Server) routes(
	authH *handler.AuthHandler,
	foodH *handler.FoodHandler,
	ratingH *handler.RatingHandler,
	chatH *handler.ChatHandler,
	userH *handler.UserHandler,
) {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthz", handler.Health(s.db, s.logger))
	r.Handle("/metrics", metrics.Handler())

	// Credential endpoints are throttled per IP.
	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Handler)
		r.Post("/register", authH.HandleRegister)
		r.Post("/login", authH.HandleLogin)
	})
	r.Post("/logout", authH.HandleLogout)

	// Public reads. A session, when present, only tags the log line.
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(s.tokens))
		r.Use(middleware.RecordUser)

		r.Get("/food", foodH.HandleList)
		r.Get("/food/{id}", foodH.HandleGet)
		r.Get("/rating", ratingH.HandleList)
		r.Get("/users/{id}", userH.HandleProfile)
	})

	// Everything else needs a session.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(s.tokens))
		r.Use(middleware.RecordUser)

		r.Get("/me", authH.HandleMe)

		r.Post("/food", foodH.HandleCreate)
		r.Post("/food/claim", foodH.HandleClaim)
		r.Patch("/food/{id}", foodH.HandleUpdate)

		r.Post("/rating", ratingH.HandleCreate)

		r.Get("/chat", chatH.HandleInbox)
		r.Post("/chat", chatH.HandleSend)
		r.Get("/chat/{userId}", chatH.HandleThread)
		r.Post("/chat/{userId}/read", chatH.HandleMarkRead)

		r.Get("/users/ngos", userH.HandleListNGOs)
	})
}

// Handler exposes the router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// StartBackground launches the sweeper, the mailer, and limiter cleanup.
func (s *Server) StartBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.limiter.StartCleanup(ctx, time.Minute)
	if s.mailer != nil {
		s.mailer.Start()
	}
	if s.sweeper != nil {
		s.sweeper.Start()
	}
}

// Close stops background work and closes the database. Safe to call twice.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if s.cancel != nil {
			s.cancel()
		}
		if s.sweeper != nil {
			s.sweeper.Stop(ctx)
		}
		if s.mailer != nil {
			s.mailer.Stop()
		}
		err = s.db.Close()
	})
	return err
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, let in-flight requests finish (30s), stop the
// workers, close the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.StartBackground()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
