package imagetools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/quicktoolshq/quicktools/internal/pkg/env"
)

// BackgroundRemover produces a cutout with the background removed. The
// implementation knows nothing about credits or accounts.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, data []byte) ([]byte, error)
}

// RembgClient calls a rembg-compatible HTTP service.
type RembgClient struct {
	baseURL string
	client  *http.Client
}

// NewRembgClient builds a client for the configured background removal
// service endpoint.
func NewRembgClient() *RembgClient {
	return &RembgClient{
		baseURL: env.GetEnv("REMBG_URL", "http://localhost:7000"),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// RemoveBackground posts the image to the service and returns the PNG cutout.
func (c *RembgClient) RemoveBackground(ctx context.Context, data []byte) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "input")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/remove", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("background removal request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("background removal service returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
