package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gymdesk/gymdesk/internal/recognize"
)

var errFrameUpload = errors.New("frame image is required")

// KioskManager tracks live kiosk scanning sessions by ID. Each front-desk
// tablet or camera owns one session; nothing is shared between them.
type KioskManager struct {
	mu         sync.RWMutex
	sessions   map[string]*recognize.Session
	newSession func() *recognize.Session
}

// NewKioskManager creates a manager. newSession builds a fresh session
// wired to the extractor, matcher, gallery, and check-in service.
func NewKioskManager(newSession func() *recognize.Session) *KioskManager {
	return &KioskManager{
		sessions:   make(map[string]*recognize.Session),
		newSession: newSession,
	}
}

// Get returns a session by ID, or nil.
func (m *KioskManager) Get(id string) *recognize.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Create registers a new session and returns its ID.
func (m *KioskManager) Create() (string, *recognize.Session) {
	id := uuid.New().String()
	session := m.newSession()

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()
	return id, session
}

// Remove drops a session.
func (m *KioskManager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// KioskHandler exposes kiosk sessions over HTTP. Frames arrive as JPEG
// uploads from the kiosk front end; state flows back via polling or SSE.
type KioskHandler struct {
	manager *KioskManager
}

// NewKioskHandler creates a kiosk handler.
func NewKioskHandler(manager *KioskManager) *KioskHandler {
	return &KioskHandler{manager: manager}
}

// Create starts a new kiosk session.
func (h *KioskHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, session := h.manager.Create()
	log.Printf("kiosk session created: %s", id)
	respondJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"status":     session.Status(),
	})
}

// Status returns the current session state for polling clients.
func (h *KioskHandler) Status(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, session.Status())
}

// Frame feeds one camera frame into the session. The body is either a raw
// image or a multipart form with a "frame" file.
func (h *KioskHandler) Frame(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	frame, err := readFrame(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session.ProcessFrame(r.Context(), frame)
	respondJSON(w, http.StatusOK, session.Status())
}

// readFrame extracts the image bytes from a frame upload.
func readFrame(r *http.Request) ([]byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			return nil, errFrameUpload
		}
		file, _, err := r.FormFile("frame")
		if err != nil {
			return nil, errFrameUpload
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
		if err != nil || len(data) == 0 {
			return nil, errFrameUpload
		}
		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil || len(data) == 0 {
		return nil, errFrameUpload
	}
	return data, nil
}

type manualRequest struct {
	Enabled bool `json:"enabled"`
}

// Manual toggles manual check-in mode, suspending the camera loop.
func (h *KioskHandler) Manual(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	session.SetManualMode(req.Enabled)
	respondJSON(w, http.StatusOK, session.Status())
}

type digitRequest struct {
	Digit string `json:"digit"`
}

// Digit presses one keypad digit in manual mode. Reaching the configured
// suffix length triggers the phone lookup.
func (h *KioskHandler) Digit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req digitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if err := session.PressDigit(r.Context(), req.Digit); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, session.Status())
}

type selectRequest struct {
	MemberID string `json:"member_id"`
}

// Select resolves an ambiguous phone-suffix lookup to one candidate.
func (h *KioskHandler) Select(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if err := session.Select(r.Context(), req.MemberID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, session.Status())
}

// Reset returns the session to idle, clearing any held screen.
func (h *KioskHandler) Reset(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	session.Reset()
	respondJSON(w, http.StatusOK, session.Status())
}

// Delete tears the session down.
func (h *KioskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.manager.Remove(id) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	log.Printf("kiosk session removed: %s", sanitizeForLog(id))
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Events streams session state changes as server-sent events until the
// client disconnects.
func (h *KioskHandler) Events(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, flushable := w.(http.Flusher)
	if !flushable {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events := session.AddListener()
	defer session.RemoveListener(events)

	sendSSEEvent(w, flusher, "status", session.Status())

	for {
		select {
		case <-r.Context().Done():
			return
		case status, open := <-events:
			if !open {
				return
			}
			sendSSEEvent(w, flusher, "status", status)
		}
	}
}

// sendSSEEvent writes one server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

func (h *KioskHandler) session(w http.ResponseWriter, r *http.Request) (*recognize.Session, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing session ID")
		return nil, false
	}
	session := h.manager.Get(id)
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}
