package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gymdesk/gymdesk/internal/database"
	"github.com/gymdesk/gymdesk/internal/recognize"
)

// MembersHandler manages the member registry over HTTP.
type MembersHandler struct {
	store     database.Store
	extractor recognize.Extractor
}

// NewMembersHandler creates a members handler.
func NewMembersHandler(store database.Store, extractor recognize.Extractor) *MembersHandler {
	return &MembersHandler{store: store, extractor: extractor}
}

// memberResponse is the JSON shape of a member. The embedding itself is
// never exposed; only the enrollment flag is.
type memberResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone"`
	JoinDate         string    `json:"join_date"`
	TotalTickets     int       `json:"total_tickets"`
	RemainingTickets int       `json:"remaining_tickets"`
	Status           string    `json:"status"`
	Enrolled         bool      `json:"enrolled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toMemberResponse(m *database.Member) memberResponse {
	return memberResponse{
		ID:               m.ID,
		Name:             m.Name,
		Phone:            m.Phone,
		JoinDate:         m.JoinDate.Format("2006-01-02"),
		TotalTickets:     m.TotalTickets,
		RemainingTickets: m.RemainingTickets,
		Status:           string(m.Status),
		Enrolled:         m.Enrolled(),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

type memberRequest struct {
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	JoinDate         string `json:"join_date"`
	TotalTickets     int    `json:"total_tickets"`
	RemainingTickets int    `json:"remaining_tickets"`
	Status           string `json:"status"`
}

// List returns all members, optionally filtered by ?q= name search.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	var members []database.Member
	var err error

	if q := r.URL.Query().Get("q"); q != "" {
		members, err = h.store.SearchByName(r.Context(), q)
	} else {
		members, err = h.store.List(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list members")
		return
	}

	resp := make([]memberResponse, 0, len(members))
	for i := range members {
		resp = append(resp, toMemberResponse(&members[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"members": resp,
		"count":   len(resp),
	})
}

// Create inserts a new member.
func (h *MembersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	m := database.Member{
		Name:             req.Name,
		Phone:            req.Phone,
		TotalTickets:     req.TotalTickets,
		RemainingTickets: req.RemainingTickets,
		Status:           database.MemberStatus(req.Status),
	}
	if m.Status == "" {
		m.Status = database.StatusActive
	}
	if !m.Status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if req.JoinDate != "" {
		joined, err := time.Parse("2006-01-02", req.JoinDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid join_date, expected YYYY-MM-DD")
			return
		}
		m.JoinDate = joined
	}

	created, err := h.store.Create(r.Context(), m)
	if err != nil {
		log.Printf("failed to create member: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create member")
		return
	}
	respondJSON(w, http.StatusCreated, toMemberResponse(created))
}

// Get returns one member by ID.
func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, ok := h.loadMember(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toMemberResponse(member))
}

// Update replaces a member's profile fields.
func (h *MembersHandler) Update(w http.ResponseWriter, r *http.Request) {
	member, ok := h.loadMember(w, r)
	if !ok {
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name != "" {
		member.Name = req.Name
	}
	member.Phone = req.Phone
	if req.Status != "" {
		status := database.MemberStatus(req.Status)
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, "invalid status")
			return
		}
		member.Status = status
	}
	if req.JoinDate != "" {
		joined, err := time.Parse("2006-01-02", req.JoinDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid join_date, expected YYYY-MM-DD")
			return
		}
		member.JoinDate = joined
	}

	if err := h.store.Update(r.Context(), *member); err != nil {
		log.Printf("failed to update member %s: %v", sanitizeForLog(member.ID), err)
		respondError(w, http.StatusInternalServerError, "failed to update member")
		return
	}
	updated, err := h.store.Get(r.Context(), member.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reload member")
		return
	}
	respondJSON(w, http.StatusOK, toMemberResponse(updated))
}

// Delete removes a member and their history.
func (h *MembersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, database.ErrMemberNotFound) {
		respondError(w, http.StatusNotFound, "member not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete member")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Enroll extracts a face embedding from an uploaded photo and stores it
// on the member. Re-enrollment replaces the previous embedding.
func (h *MembersHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	member, ok := h.loadMember(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read photo")
		return
	}

	embedding, err := h.extractor.Extract(r.Context(), data)
	if errors.Is(err, recognize.ErrNoFace) {
		respondError(w, http.StatusUnprocessableEntity, "no face detected in photo")
		return
	}
	if err != nil {
		log.Printf("failed to extract embedding for member %s: %v", sanitizeForLog(member.ID), err)
		respondError(w, http.StatusBadGateway, "face extraction failed")
		return
	}

	if err := h.store.SetEmbedding(r.Context(), member.ID, embedding); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store embedding")
		return
	}
	log.Printf("enrolled face for member %s (%s)", sanitizeForLog(member.Name), sanitizeForLog(member.ID))
	respondJSON(w, http.StatusOK, map[string]any{
		"enrolled": true,
		"dim":      len(embedding),
	})
}

// ClearFace removes a member's face enrollment.
func (h *MembersHandler) ClearFace(w http.ResponseWriter, r *http.Request) {
	member, ok := h.loadMember(w, r)
	if !ok {
		return
	}
	if err := h.store.ClearEmbedding(r.Context(), member.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear embedding")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"enrolled": false})
}

type ticketRequest struct {
	Delta int    `json:"delta"`
	Note  string `json:"note"`
}

// AdjustTickets adds or removes tickets from a member's balance.
func (h *MembersHandler) AdjustTickets(w http.ResponseWriter, r *http.Request) {
	member, ok := h.loadMember(w, r)
	if !ok {
		return
	}

	var req ticketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Delta == 0 {
		respondError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}
	entryType := database.TicketAdd
	if req.Delta < 0 {
		entryType = database.TicketUse
	}

	updated, err := h.store.AdjustTickets(r.Context(), member.ID, req.Delta, entryType, req.Note)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to adjust tickets")
		return
	}
	respondJSON(w, http.StatusOK, toMemberResponse(updated))
}

// TicketHistory lists a member's ticket ledger, newest first.
func (h *MembersHandler) TicketHistory(w http.ResponseWriter, r *http.Request) {
	member, ok := h.loadMember(w, r)
	if !ok {
		return
	}
	history, err := h.store.TicketHistory(r.Context(), member.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load ticket history")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"entries": history,
		"count":   len(history),
	})
}

// loadMember resolves the {id} URL parameter to a member, writing the
// appropriate error response when it cannot.
func (h *MembersHandler) loadMember(w http.ResponseWriter, r *http.Request) (*database.Member, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing member ID")
		return nil, false
	}
	member, err := h.store.Get(r.Context(), id)
	if errors.Is(err, database.ErrMemberNotFound) {
		respondError(w, http.StatusNotFound, "member not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load member")
		return nil, false
	}
	return member, true
}
