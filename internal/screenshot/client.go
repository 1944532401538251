// Package screenshot adapts an external rendering service to the
// registry's screenshot pipeline.
package screenshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ErrDisabled is returned by Disabled for every capture.
var ErrDisabled = errors.New("screenshot pipeline disabled")

const maxErrorBody = 512

// CaptureRequest is the wire format sent to the renderer.
type CaptureRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// CaptureResponse is the wire format returned by the renderer.
type CaptureResponse struct {
	ImageURL string `json:"imageUrl"`
}

// Client posts capture requests to a rendering service endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	logger     *zap.Logger
}

// NewClient creates a Client for endpoint. A nil httpClient uses
// http.DefaultClient; callers bound each capture through its context.
func NewClient(endpoint string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		logger:     logger,
	}
}

// Capture renders sourceURL and returns the hosted image URL.
func (c *Client) Capture(ctx context.Context, sourceURL, outputName string) (string, error) {
	body, err := json.Marshal(CaptureRequest{URL: sourceURL, Name: outputName})
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("capture: HTTP %d: %s", resp.StatusCode, errorBody(resp.Body))
	}

	var result CaptureResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("capture: decode response: %w", err)
	}

	if result.ImageURL == "" {
		return "", errors.New("capture: renderer returned no image url")
	}

	c.logger.Debug("screenshot captured",
		zap.String("name", outputName),
		zap.String("image_url", result.ImageURL),
	)

	return result.ImageURL, nil
}

func errorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))

	return strings.TrimSpace(string(data))
}

// Disabled is the pipeline used when no renderer is configured.
type Disabled struct{}

func (Disabled) Capture(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}
