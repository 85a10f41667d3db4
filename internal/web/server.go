// Package web serves the front-desk HTTP API: member registry,
// attendance log, and kiosk check-in sessions.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gymdesk/gymdesk/internal/config"
	"github.com/gymdesk/gymdesk/internal/database"
	"github.com/gymdesk/gymdesk/internal/ledger"
	"github.com/gymdesk/gymdesk/internal/recognize"
	"github.com/gymdesk/gymdesk/internal/web/handlers"
	"github.com/gymdesk/gymdesk/internal/web/middleware"
)

// Server represents the web server.
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	kiosks     *handlers.KioskManager
}

// NewServer creates a new web server wired to the store and the face
// extraction backend.
func NewServer(cfg *config.Config, store database.Store, extractor recognize.Extractor) *Server {
	r := chi.NewRouter()

	checkIn := ledger.NewService(store)
	matcher := recognize.NewMatcher(cfg.Kiosk.Threshold)
	kiosks := handlers.NewKioskManager(func() *recognize.Session {
		return recognize.NewSession(
			recognize.SessionConfig{
				RequiredMatches: cfg.Kiosk.RequiredMatches,
				ScanInterval:    cfg.Kiosk.ScanInterval,
				SuccessHold:     cfg.Kiosk.SuccessHold,
				ErrorHold:       cfg.Kiosk.ErrorHold,
				SuffixLength:    cfg.Kiosk.SuffixLength,
			},
			extractor,
			matcher,
			store,
			checkInFunc(checkIn),
		)
	})

	s := &Server{
		config: cfg,
		router: r,
		kiosks: kiosks,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS())

	s.setupRoutes(store, extractor, checkIn)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long timeout for SSE and uploads
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// checkInFunc adapts the ledger service to the kiosk session callback.
func checkInFunc(svc *ledger.Service) recognize.CheckInFunc {
	return func(ctx context.Context, memberID string) (recognize.CheckInResult, error) {
		member, _, err := svc.CheckIn(ctx, memberID)
		if err != nil {
			return recognize.CheckInResult{}, err
		}
		return recognize.CheckInResult{
			MemberID:        member.ID,
			MemberName:      member.Name,
			RemainingCredit: member.RemainingTickets,
		}, nil
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
