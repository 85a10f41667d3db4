package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/gymdesk/gymdesk/internal/database"
	"github.com/gymdesk/gymdesk/internal/ledger"
	"github.com/gymdesk/gymdesk/internal/recognize"
	"github.com/gymdesk/gymdesk/internal/web/handlers"
)

func (s *Server) setupRoutes(store database.Store, extractor recognize.Extractor, checkIn *ledger.Service) {
	membersHandler := handlers.NewMembersHandler(store, extractor)
	attendanceHandler := handlers.NewAttendanceHandler(store, checkIn)
	kioskHandler := handlers.NewKioskHandler(s.kiosks)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Members
		r.Get("/members", membersHandler.List)
		r.Post("/members", membersHandler.Create)
		r.Get("/members/{id}", membersHandler.Get)
		r.Put("/members/{id}", membersHandler.Update)
		r.Delete("/members/{id}", membersHandler.Delete)
		r.Post("/members/{id}/enroll", membersHandler.Enroll)
		r.Delete("/members/{id}/face", membersHandler.ClearFace)
		r.Post("/members/{id}/tickets", membersHandler.AdjustTickets)
		r.Get("/members/{id}/tickets", membersHandler.TicketHistory)

		// Attendance
		r.Get("/attendance", attendanceHandler.List)
		r.Delete("/attendance/{id}", attendanceHandler.Delete)

		// Kiosk sessions
		r.Post("/kiosk/sessions", kioskHandler.Create)
		r.Get("/kiosk/sessions/{id}", kioskHandler.Status)
		r.Delete("/kiosk/sessions/{id}", kioskHandler.Delete)
		r.Post("/kiosk/sessions/{id}/frames", kioskHandler.Frame)
		r.Post("/kiosk/sessions/{id}/manual", kioskHandler.Manual)
		r.Post("/kiosk/sessions/{id}/digits", kioskHandler.Digit)
		r.Post("/kiosk/sessions/{id}/select", kioskHandler.Select)
		r.Post("/kiosk/sessions/{id}/reset", kioskHandler.Reset)
		r.Get("/kiosk/sessions/{id}/events", kioskHandler.Events)
	})
}
