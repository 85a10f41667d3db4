package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gymdesk/gymdesk/internal/database"
	"github.com/gymdesk/gymdesk/internal/database/mock"
	"github.com/gymdesk/gymdesk/internal/recognize"
)

// stubExtractor maps frame contents to canned embeddings. Unknown frames
// report no face.
type stubExtractor struct {
	embeddings map[string]recognize.Embedding
	err        error
}

func (s *stubExtractor) Extract(ctx context.Context, imageData []byte) (recognize.Embedding, error) {
	if s.err != nil {
		return nil, s.err
	}
	if emb, ok := s.embeddings[string(imageData)]; ok {
		return emb, nil
	}
	return nil, recognize.ErrNoFace
}

func (s *stubExtractor) LoadModels(ctx context.Context) error { return nil }

// embAt returns a dim-length embedding with only the first component set.
func embAt(dim int, first float32) recognize.Embedding {
	emb := make(recognize.Embedding, dim)
	emb[0] = first
	return emb
}

// seedStore creates a mock store with one active, enrolled member.
func seedStore(t *testing.T) (*mock.Store, database.Member) {
	t.Helper()
	store := mock.NewStore()
	member := store.AddMember(database.Member{
		Name:             "Alice Kim",
		Phone:            "010-1234-5678",
		TotalTickets:     10,
		RemainingTickets: 5,
		Status:           database.StatusActive,
		Embedding:        embAt(8, 0.1),
		EmbeddingDim:     8,
	})
	return store, member
}

// requestWithChiParams creates a request with chi URL parameters.
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest builds a multipart upload with one file field.
func multipartRequest(t *testing.T, method, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// decodeBody unmarshals a recorder body into a generic map.
func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", recorder.Body.String(), err)
	}
	return result
}
