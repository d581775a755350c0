package renderer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"zkv-router/internal/config"
)

// PageRenderer produces the fully rendered markup of a request page.
type PageRenderer interface {
	Render(ctx context.Context, requestID string) (string, error)
}

// RenderError wraps any failure to obtain the page.
type RenderError struct {
	URL    string
	Stderr string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("failed to render %s: %v: %s", e.URL, e.Err, e.Stderr)
	}
	return fmt.Sprintf("failed to render %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// RequestURL is the explorer page for one request id.
func RequestURL(baseURL, requestID string) string {
	return strings.TrimRight(baseURL, "/") + "/request/" + url.PathEscape(requestID)
}

// New picks the renderer named by cfg.Mode.
func New(cfg config.RendererConfig, baseURL string) (PageRenderer, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	switch cfg.Mode {
	case "", "exec":
		return &ExecRenderer{
			Command: cfg.Command,
			Args:    cfg.Args,
			BaseURL: baseURL,
			Timeout: timeout,
		}, nil
	case "devtools":
		return NewDevToolsRenderer(cfg.DevToolsURL, baseURL, timeout), nil
	default:
		return nil, fmt.Errorf("unknown renderer mode %q", cfg.Mode)
	}
}
