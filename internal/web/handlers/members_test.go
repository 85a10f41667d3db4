package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gymdesk/gymdesk/internal/database"
	"github.com/gymdesk/gymdesk/internal/recognize"
)

func TestMembersList(t *testing.T) {
	store, _ := seedStore(t)
	handler := NewMembersHandler(store, &stubExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	result := decodeBody(t, recorder)
	if result["count"] != float64(1) {
		t.Errorf("expected count 1, got %v", result["count"])
	}
}

func TestMembersListSearch(t *testing.T) {
	store, _ := seedStore(t)
	store.AddMember(database.Member{Name: "Bob Lee", Status: database.StatusActive})
	handler := NewMembersHandler(store, &stubExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members?q=alice", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	result := decodeBody(t, recorder)
	if result["count"] != float64(1) {
		t.Errorf("expected only Alice to match, got count %v", result["count"])
	}
}

func TestMembersCreate(t *testing.T) {
	mockDB, _ := seedStore(t)
	handler := NewMembersHandler(mockDB, &stubExtractor{})

	req := jsonRequest(t, http.MethodPost, "/api/v1/members", map[string]any{
		"name":              "Carol Park",
		"phone":             "010-2222-0000",
		"total_tickets":     20,
		"remaining_tickets": 20,
		"join_date":         "2026-08-01",
	})
	recorder := httptest.NewRecorder()
	handler.Create(recorder, req)

	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	result := decodeBody(t, recorder)
	if result["name"] != "Carol Park" {
		t.Errorf("expected name Carol Park, got %v", result["name"])
	}
	if result["status"] != "active" {
		t.Errorf("expected default status active, got %v", result["status"])
	}
	if result["enrolled"] != false {
		t.Errorf("new member should not be enrolled")
	}
	if result["join_date"] != "2026-08-01" {
		t.Errorf("expected join_date 2026-08-01, got %v", result["join_date"])
	}
}

func TestMembersCreateValidation(t *testing.T) {
	store, _ := seedStore(t)
	handler := NewMembersHandler(store, &stubExtractor{})

	tests := []struct {
		name string
		body map[string]any
	}{
		{"MissingName", map[string]any{"phone": "010"}},
		{"BadStatus", map[string]any{"name": "X", "status": "frozen"}},
		{"BadJoinDate", map[string]any{"name": "X", "join_date": "01/02/2026"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := jsonRequest(t, http.MethodPost, "/api/v1/members", tc.body)
			recorder := httptest.NewRecorder()
			handler.Create(recorder, req)

			if recorder.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", recorder.Code)
			}
		})
	}
}

func TestMembersGetNotFound(t *testing.T) {
	store, _ := seedStore(t)
	handler := NewMembersHandler(store, &stubExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/nope", nil)
	req = requestWithChiParams(req, map[string]string{"id": "nope"})
	recorder := httptest.NewRecorder()
	handler.Get(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", recorder.Code)
	}
}

func TestMembersUpdate(t *testing.T) {
	store, member := seedStore(t)
	handler := NewMembersHandler(store, &stubExtractor{})

	req := jsonRequest(t, http.MethodPut, "/api/v1/members/"+member.ID, map[string]any{
		"name":   "Alice Lee",
		"phone":  "010-7777-8888",
		"status": "suspended",
	})
	req = requestWithChiParams(req, map[string]string{"id": member.ID})
	recorder := httptest.NewRecorder()
	handler.Update(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	result := decodeBody(t, recorder)
	if result["name"] != "Alice Lee" {
		t.Errorf("expected updated name, got %v", result["name"])
	}
	if result["status"] != "suspended" {
		t.Errorf("expected suspended status, got %v", result["status"])
	}
}

func TestMembersDelete(t *testing.T) {
	store, member := seedStore(t)
	handler := NewMembersHandler(store, &stubExtractor{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/members/"+member.ID, nil)
	req = requestWithChiParams(req, map[string]string{"id": member.ID})
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if _, err := store.Get(req.Context(), member.ID); !errors.Is(err, database.ErrMemberNotFound) {
		t.Errorf("expected member removed, got %v", err)
	}
}

func TestMembersEnroll(t *testing.T) {
	store, _ := seedStore(t)
	newbie := store.AddMember(database.Member{Name: "Dan Choi", Status: database.StatusActive})
	extractor := &stubExtractor{embeddings: map[string]recognize.Embedding{
		"photo-bytes": embAt(8, 0.4),
	}}
	handler := NewMembersHandler(store, extractor)

	req := multipartRequest(t, http.MethodPost, "/api/v1/members/"+newbie.ID+"/enroll",
		"photo", "dan.jpg", []byte("photo-bytes"))
	req = requestWithChiParams(req, map[string]string{"id": newbie.ID})
	recorder := httptest.NewRecorder()
	handler.Enroll(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	result := decodeBody(t, recorder)
	if result["enrolled"] != true {
		t.Error("expected enrolled true")
	}
	if result["dim"] != float64(8) {
		t.Errorf("expected dim 8, got %v", result["dim"])
	}

	got, err := store.Get(req.Context(), newbie.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.Enrolled() {
		t.Error("embedding was not stored")
	}
}

func TestMembersEnrollNoFace(t *testing.T) {
	store, member := seedStore(t)
	handler := NewMembersHandler(store, &stubExtractor{})

	req := multipartRequest(t, http.MethodPost, "/api/v1/members/"+member.ID+"/enroll",
		"photo", "blank.jpg", []byte("no-face-here"))
	req = requestWithChiParams(req, map[string]string{"id": member.ID})
	recorder := httptest.NewRecorder()
	handler.Enroll(recorder, req)

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for no face, got %d", recorder.Code)
	}
}

func TestMembersEnrollExtractorDown(t *testing.T) {
	store, member := seedStore(t)
	handler := NewMembersHandler(store, &stubExtractor{err: errors.New("model server unreachable")})

	req := multipartRequest(t, http.MethodPost, "/api/v1/members/"+member.ID+"/enroll",
		"photo", "alice.jpg", []byte("photo-bytes"))
	req = requestWithChiParams(req, map[string]string{"id": member.ID})
	recorder := httptest.NewRecorder()
	handler.Enroll(recorder, req)

	if recorder.Code != http.StatusBadGateway {
		t.Errorf("expected 502 when extraction fails, got %d", recorder.Code)
	}
}

func TestMembersClearFace(t *testing.T) {
	store, member := seedStore(t)
	handler := NewMembersHandler(store, &stubExtractor{})

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/members/"+member.ID+"/face", nil)
	req = requestWithChiParams(req, map[string]string{"id": member.ID})
	recorder := httptest.NewRecorder()
	handler.ClearFace(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	got, _ := store.Get(req.Context(), member.ID)
	if got.Enrolled() {
		t.Error("expected embedding cleared")
	}
}

func TestMembersAdjustTickets(t *testing.T) {
	store, member := seedStore(t)
	handler := NewMembersHandler(store, &stubExtractor{})

	req := jsonRequest(t, http.MethodPost, "/api/v1/members/"+member.ID+"/tickets", map[string]any{
		"delta": 10,
		"note":  "renewal",
	})
	req = requestWithChiParams(req, map[string]string{"id": member.ID})
	recorder := httptest.NewRecorder()
	handler.AdjustTickets(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	result := decodeBody(t, recorder)
	if result["remaining_tickets"] != float64(15) {
		t.Errorf("expected 15 remaining, got %v", result["remaining_tickets"])
	}

	req = jsonRequest(t, http.MethodPost, "/api/v1/members/"+member.ID+"/tickets", map[string]any{"delta": 0})
	req = requestWithChiParams(req, map[string]string{"id": member.ID})
	recorder = httptest.NewRecorder()
	handler.AdjustTickets(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero delta, got %d", recorder.Code)
	}
}

func TestMembersTicketHistory(t *testing.T) {
	store, member := seedStore(t)
	if _, err := store.AdjustTickets(t.Context(), member.ID, 5, database.TicketAdd, "renewal"); err != nil {
		t.Fatalf("AdjustTickets failed: %v", err)
	}
	handler := NewMembersHandler(store, &stubExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/"+member.ID+"/tickets", nil)
	req = requestWithChiParams(req, map[string]string{"id": member.ID})
	recorder := httptest.NewRecorder()
	handler.TicketHistory(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	result := decodeBody(t, recorder)
	if result["count"] != float64(1) {
		t.Errorf("expected 1 ledger entry, got %v", result["count"])
	}
}
