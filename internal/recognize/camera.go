package recognize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SnapshotCamera is a FrameSource backed by an IP camera's still-image
// endpoint (most network cameras expose one, e.g. /snapshot.jpg). Each
// Grab fetches one JPEG frame.
type SnapshotCamera struct {
	url    string
	client *http.Client
}

// NewSnapshotCamera creates a frame source for the given snapshot URL.
func NewSnapshotCamera(url string) *SnapshotCamera {
	return &SnapshotCamera{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Grab fetches the current frame. A 503 from the camera means it has not
// produced a frame yet and maps to ErrFrameNotReady; anything else
// unexpected is a camera failure and ends the scanning session.
func (c *SnapshotCamera) Grab(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, ErrFrameNotReady
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("camera returned unexpected content type %q", ct)
	}

	frame, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	if len(frame) == 0 {
		return nil, ErrFrameNotReady
	}
	return frame, nil
}

// Close releases the camera. The HTTP client holds no exclusive device
// handle, so this only drops idle connections.
func (c *SnapshotCamera) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
