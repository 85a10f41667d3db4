package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gymdesk/gymdesk/internal/ledger"
)

func TestAttendanceList(t *testing.T) {
	store, member := seedStore(t)
	svc := ledger.NewService(store)
	if _, _, err := svc.CheckIn(t.Context(), member.ID); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	handler := NewAttendanceHandler(store, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	result := decodeBody(t, recorder)
	if result["count"] != float64(1) {
		t.Errorf("expected 1 record, got %v", result["count"])
	}
}

func TestAttendanceListByMember(t *testing.T) {
	store, member := seedStore(t)
	svc := ledger.NewService(store)
	if _, _, err := svc.CheckIn(t.Context(), member.ID); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	handler := NewAttendanceHandler(store, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance?member_id="+member.ID, nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	result := decodeBody(t, recorder)
	if result["count"] != float64(1) {
		t.Errorf("expected 1 record for member, got %v", result["count"])
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/attendance?member_id=nope", nil)
	recorder = httptest.NewRecorder()
	handler.List(recorder, req)

	result = decodeBody(t, recorder)
	if result["count"] != float64(0) {
		t.Errorf("expected no records for unknown member, got %v", result["count"])
	}
}

func TestAttendanceListInvalidLimit(t *testing.T) {
	store, _ := seedStore(t)
	handler := NewAttendanceHandler(store, ledger.NewService(store))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attendance?limit=many", nil)
	recorder := httptest.NewRecorder()
	handler.List(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", recorder.Code)
	}
}

func TestAttendanceDeleteWithRefund(t *testing.T) {
	store, member := seedStore(t)
	svc := ledger.NewService(store)
	_, record, err := svc.CheckIn(t.Context(), member.ID)
	if err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}
	handler := NewAttendanceHandler(store, svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/attendance/"+record.ID+"?refund=true", nil)
	req = requestWithChiParams(req, map[string]string{"id": record.ID})
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	result := decodeBody(t, recorder)
	if result["refunded"] != true {
		t.Error("expected refunded true")
	}

	got, _ := store.Get(req.Context(), member.ID)
	if got.RemainingTickets != 5 {
		t.Errorf("expected balance restored to 5, got %d", got.RemainingTickets)
	}
}

func TestAttendanceDeleteNotFound(t *testing.T) {
	store, _ := seedStore(t)
	handler := NewAttendanceHandler(store, ledger.NewService(store))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/attendance/nope", nil)
	req = requestWithChiParams(req, map[string]string{"id": "nope"})
	recorder := httptest.NewRecorder()
	handler.Delete(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", recorder.Code)
	}
}
