package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"zkv-router/internal/encoder"
)

// ProverClient proving service client
type ProverClient struct {
	BaseURL string
	Client  *http.Client
}

// NewProverClient Create a new proving service client
func NewProverClient(baseURL string, timeout time.Duration) *ProverClient {
	if timeout <= 0 {
		timeout = 600 * time.Second // proving is slow
	}
	return &ProverClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Shrink implements encoder.Shrinker.
func (c *ProverClient) Shrink(ctx context.Context, artifact []byte) (*encoder.ShrunkProof, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/shrink", bytes.NewReader(artifact))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proving service returned error (status %d): %s", resp.StatusCode, string(body))
	}

	var result encoder.ShrinkResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return result.Decode()
}
