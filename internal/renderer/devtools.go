package renderer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DevToolsRenderer drives an already running browser through its remote
// debugging endpoint. Each Render opens and closes its own tab.
type DevToolsRenderer struct {
	Endpoint string
	BaseURL  string
	Timeout  time.Duration
	Client   *http.Client
	Dialer   *websocket.Dialer
}

// NewDevToolsRenderer Create a DevTools renderer
func NewDevToolsRenderer(endpoint, baseURL string, timeout time.Duration) *DevToolsRenderer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &DevToolsRenderer{
		Endpoint: strings.TrimRight(endpoint, "/"),
		BaseURL:  baseURL,
		Timeout:  timeout,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Dialer:   websocket.DefaultDialer,
	}
}

type devtoolsTarget struct {
	ID                   string `json:"id"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

type cdpRequest struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cdpMessage struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *cdpError       `json:"error"`
}

// Render implements PageRenderer.
func (r *DevToolsRenderer) Render(ctx context.Context, requestID string) (string, error) {
	pageURL := RequestURL(r.BaseURL, requestID)
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	target, err := r.openTarget(ctx)
	if err != nil {
		return "", &RenderError{URL: pageURL, Err: err}
	}
	defer r.closeTarget(target.ID)

	html, err := r.capture(ctx, target.WebSocketDebuggerURL, pageURL)
	if err != nil {
		return "", &RenderError{URL: pageURL, Err: err}
	}
	if html == "" {
		return "", &RenderError{URL: pageURL, Err: errors.New("browser returned an empty document")}
	}
	return html, nil
}

func (r *DevToolsRenderer) openTarget(ctx context.Context) (*devtoolsTarget, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.Endpoint+"/json/new?"+url.QueryEscape("about:blank"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devtools returned error (status %d): %s", resp.StatusCode, string(body))
	}

	var target devtoolsTarget
	if err := json.Unmarshal(body, &target); err != nil {
		return nil, fmt.Errorf("failed to unmarshal target: %w", err)
	}
	if target.WebSocketDebuggerURL == "" {
		return nil, errors.New("devtools target has no websocket url")
	}
	return &target, nil
}

func (r *DevToolsRenderer) closeTarget(id string) {
	if id == "" {
		return
	}
	resp, err := r.Client.Get(r.Endpoint + "/json/close/" + id)
	if err == nil {
		resp.Body.Close()
	}
}

func (r *DevToolsRenderer) capture(ctx context.Context, wsURL, pageURL string) (string, error) {
	conn, _, err := r.Dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to connect to devtools: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	s := &cdpSession{conn: conn}
	if _, err := s.call("Page.enable", nil); err != nil {
		return "", err
	}
	if _, err := s.call("Page.navigate", map[string]string{"url": pageURL}); err != nil {
		return "", err
	}
	if err := s.waitFor("Page.loadEventFired"); err != nil {
		return "", err
	}

	raw, err := s.call("Runtime.evaluate", map[string]any{
		"expression":    "document.documentElement.outerHTML",
		"returnByValue": true,
	})
	if err != nil {
		return "", err
	}
	var eval struct {
		Result struct {
			Value string `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &eval); err != nil {
		return "", fmt.Errorf("failed to decode evaluation result: %w", err)
	}
	return eval.Result.Value, nil
}

type cdpSession struct {
	conn   *websocket.Conn
	nextID int
	seen   map[string]bool
}

func (s *cdpSession) read() (*cdpMessage, error) {
	var msg cdpMessage
	if err := s.conn.ReadJSON(&msg); err != nil {
		return nil, fmt.Errorf("devtools read failed: %w", err)
	}
	if msg.Method != "" {
		if s.seen == nil {
			s.seen = make(map[string]bool)
		}
		s.seen[msg.Method] = true
	}
	return &msg, nil
}

func (s *cdpSession) call(method string, params any) (json.RawMessage, error) {
	s.nextID++
	id := s.nextID
	if err := s.conn.WriteJSON(cdpRequest{ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("devtools %s failed: %w", method, err)
	}
	for {
		msg, err := s.read()
		if err != nil {
			return nil, err
		}
		if msg.ID != id {
			continue
		}
		if msg.Error != nil {
			return nil, fmt.Errorf("devtools %s failed (code %d): %s", method, msg.Error.Code, msg.Error.Message)
		}
		return msg.Result, nil
	}
}

func (s *cdpSession) waitFor(event string) error {
	for !s.seen[event] {
		if _, err := s.read(); err != nil {
			return err
		}
	}
	return nil
}
