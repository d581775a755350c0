package renderer

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

// ExecRenderer shells out to a headless browser that prints the DOM after
// scripts have run. The page URL is appended to Args.
type ExecRenderer struct {
	Command string
	Args    []string
	BaseURL string
	Timeout time.Duration
}

// Render implements PageRenderer.
func (r *ExecRenderer) Render(ctx context.Context, requestID string) (string, error) {
	pageURL := RequestURL(r.BaseURL, requestID)
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, r.Args...), pageURL)
	cmd := exec.CommandContext(ctx, r.Command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &RenderError{URL: pageURL, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	if stdout.Len() == 0 {
		return "", &RenderError{URL: pageURL, Err: errors.New("browser returned an empty document")}
	}
	return stdout.String(), nil
}
