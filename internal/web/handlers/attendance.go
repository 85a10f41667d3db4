package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gymdesk/gymdesk/internal/database"
	"github.com/gymdesk/gymdesk/internal/ledger"
)

// AttendanceHandler serves the attendance log.
type AttendanceHandler struct {
	store   database.Store
	checkIn *ledger.Service
}

// NewAttendanceHandler creates an attendance handler.
func NewAttendanceHandler(store database.Store, checkIn *ledger.Service) *AttendanceHandler {
	return &AttendanceHandler{store: store, checkIn: checkIn}
}

// List returns check-ins, newest first. Supports ?member_id= and ?limit=.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	var records []database.AttendanceRecord
	var err error

	if memberID := r.URL.Query().Get("member_id"); memberID != "" {
		records, err = h.store.ListAttendanceByMember(r.Context(), memberID)
	} else {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			limit, err = strconv.Atoi(s)
			if err != nil || limit < 0 {
				respondError(w, http.StatusBadRequest, "invalid limit")
				return
			}
		}
		records, err = h.store.ListAttendance(r.Context(), limit)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// Delete removes a check-in record. With ?refund=true the consumed ticket
// is returned to the member.
func (h *AttendanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing record ID")
		return
	}
	refund := r.URL.Query().Get("refund") == "true"

	err := h.checkIn.DeleteAttendance(r.Context(), id, refund)
	if errors.Is(err, database.ErrAttendanceNotFound) {
		respondError(w, http.StatusNotFound, "attendance record not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete attendance record")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"deleted":  true,
		"refunded": refund,
	})
}
