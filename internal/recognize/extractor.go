package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

const (
	defaultModelURL = "http://localhost:8000"

	// DefaultInputSize is the standardized long-edge resolution sent to the
	// detector. 512px balances detection quality against inference time for
	// the model's internal recognition crops.
	DefaultInputSize = 512

	// DefaultScoreFloor is the face-detection confidence floor. Loose enough
	// to tolerate side lighting and angle, strict enough to reject empty
	// frames.
	DefaultScoreFloor = 0.2
)

// ErrNoFace is returned when no face is found in a frame. This is a
// normal outcome in a live loop, not a failure.
var ErrNoFace = errors.New("no face detected")

// ErrFrameNotReady is returned by a FrameSource whose camera has not
// produced a decodable frame yet. The loop treats it like an empty frame.
var ErrFrameNotReady = errors.New("frame not ready")

// Extractor turns one image or video frame into a face embedding.
// Implementations must never panic past this boundary: backend failures
// become errors, an undetected face becomes ErrNoFace.
type Extractor interface {
	// Extract computes the embedding of the single most confident face in
	// the image. Multiple faces are not supported; the detector's best
	// pick wins.
	Extract(ctx context.Context, imageData []byte) (Embedding, error)

	// LoadModels warms the underlying model. Loading is lazy and shared:
	// concurrent callers await one in-flight load instead of triggering
	// duplicates. Extract calls it implicitly.
	LoadModels(ctx context.Context) error
}

// faceResponse is the embedding server's answer for a face extraction.
type faceResponse struct {
	FacesCount int       `json:"faces_count"`
	Dim        int       `json:"dim"`
	Embedding  []float32 `json:"embedding"`
	DetScore   float64   `json:"det_score"`
	Model      string    `json:"model"`
}

// ModelClient is an Extractor backed by an HTTP face-embedding server.
type ModelClient struct {
	baseURL    string
	inputSize  int
	scoreFloor float64
	client     *http.Client

	loadGroup singleflight.Group
	loaded    atomic.Bool
}

// NewModelClient creates a client for the embedding server. Zero values
// select the defaults.
func NewModelClient(baseURL string, inputSize int, scoreFloor float64) *ModelClient {
	if baseURL == "" {
		baseURL = defaultModelURL
	}
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	if scoreFloor <= 0 {
		scoreFloor = DefaultScoreFloor
	}
	return &ModelClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		inputSize:  inputSize,
		scoreFloor: scoreFloor,
		client:     &http.Client{},
	}
}

// LoadModels asks the server to load its detector and recognition nets.
// The first caller performs the request; concurrent callers share its
// result. A successful load is remembered for the process lifetime.
func (c *ModelClient) LoadModels(ctx context.Context) error {
	if c.loaded.Load() {
		return nil
	}
	_, err, _ := c.loadGroup.Do("warmup", func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/warmup", nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create warmup request: %w", err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("model warmup failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("model warmup failed (status %d): %s", resp.StatusCode, string(body))
		}
		c.loaded.Store(true)
		return nil, nil
	})
	return err
}

// Extract uploads the frame and returns the primary face's embedding.
// The image is resized to the standardized input resolution first so the
// server never decodes full camera frames.
func (c *ModelClient) Extract(ctx context.Context, imageData []byte) (Embedding, error) {
	if err := c.LoadModels(ctx); err != nil {
		return nil, err
	}

	resized, err := ResizeImage(imageData, c.inputSize)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare frame: %w", err)
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", resized)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if faceResp.FacesCount == 0 || len(faceResp.Embedding) == 0 {
		return nil, ErrNoFace
	}
	if faceResp.DetScore > 0 && faceResp.DetScore < c.scoreFloor {
		return nil, ErrNoFace
	}
	if faceResp.Dim > 0 && faceResp.Dim != len(faceResp.Embedding) {
		return nil, fmt.Errorf("embedding length %d does not match reported dim %d", len(faceResp.Embedding), faceResp.Dim)
	}

	return faceResp.Embedding, nil
}

// postMultipartImage posts the image as a multipart form to the endpoint,
// with an explicit Content-Type from magic byte detection and the
// detector score floor as a form field.
func (c *ModelClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.WriteField("min_score", strconv.FormatFloat(c.scoreFloor, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("failed to write score field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// detectMIMEType detects the MIME type from image data.
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	return "application/octet-stream"
}
