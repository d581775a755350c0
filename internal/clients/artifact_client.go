package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"zkv-router/internal/metrics"
)

const errorBodyLimit = 512

// FetchError is returned when an artifact cannot be downloaded. StatusCode
// is zero for transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("artifact download returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("artifact download failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ArtifactClient ArtifactFetcher over plain HTTP GET
type ArtifactClient struct {
	Client *http.Client
	log    *logrus.Entry
}

// NewArtifactClient Create a new artifact client
func NewArtifactClient(timeout time.Duration, log *logrus.Entry) *ArtifactClient {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &ArtifactClient{
		Client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Fetch downloads the artifact body. Any non-2xx status is a FetchError.
func (c *ArtifactClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	defer metrics.ObserveStage("fetch", start)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	metrics.ArtifactBytes.Observe(float64(len(body)))
	c.log.WithFields(logrus.Fields{
		"artifact_url": url,
		"bytes":        len(body),
		"elapsed":      time.Since(start).String(),
	}).Info("📥 artifact downloaded")

	return body, nil
}
