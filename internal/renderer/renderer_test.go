package renderer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkv-router/internal/config"
)

func TestRequestURL(t *testing.T) {
	assert.Equal(t, "https://explorer.succinct.xyz/request/0xabc", RequestURL("https://explorer.succinct.xyz/", "0xabc"))
	assert.Equal(t, "http://h/request/a%2Fb", RequestURL("http://h", "a/b"))
}

func TestNewSelectsMode(t *testing.T) {
	r, err := New(config.RendererConfig{Mode: "exec", Command: "chromium"}, "http://h")
	require.NoError(t, err)
	assert.IsType(t, &ExecRenderer{}, r)

	r, err = New(config.RendererConfig{Mode: "devtools", DevToolsURL: "http://127.0.0.1:9222/"}, "http://h")
	require.NoError(t, err)
	require.IsType(t, &DevToolsRenderer{}, r)
	assert.Equal(t, "http://127.0.0.1:9222", r.(*DevToolsRenderer).Endpoint)

	_, err = New(config.RendererConfig{Mode: "carrier-pigeon"}, "http://h")
	require.Error(t, err)
}

func TestExecRenderer(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	r := &ExecRenderer{
		Command: "/bin/sh",
		Args:    []string{"-c", `printf '<html>%s</html>' "$0"`},
		BaseURL: "https://explorer.example",
	}

	html, err := r.Render(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, "<html>https://explorer.example/request/0x01</html>", html)
}

func TestExecRendererFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	r := &ExecRenderer{Command: "/bin/sh", Args: []string{"-c", "echo 'no display' >&2; exit 1"}, BaseURL: "http://h"}

	_, err := r.Render(context.Background(), "0x01")
	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "no display", re.Stderr)

	r = &ExecRenderer{Command: "/bin/sh", Args: []string{"-c", "true"}, BaseURL: "http://h"}
	_, err = r.Render(context.Background(), "0x01")
	require.ErrorAs(t, err, &re)
}

// fakeBrowser speaks just enough of the remote debugging protocol.
func fakeBrowser(t *testing.T, page string) (*httptest.Server, *[]string) {
	var methods []string
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/json/new", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":                   "T1",
			"webSocketDebuggerUrl": "ws://" + r.Host + "/devtools/page/T1",
		})
	})
	mux.HandleFunc("/json/close/T1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Target is closing"))
	})
	mux.HandleFunc("/devtools/page/T1", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			var req cdpRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			methods = append(methods, req.Method)
			switch req.Method {
			case "Page.navigate":
				_ = conn.WriteJSON(map[string]any{"id": req.ID, "result": map[string]string{"frameId": "F"}})
				_ = conn.WriteJSON(map[string]any{"method": "Page.frameStartedLoading", "params": map[string]string{}})
				_ = conn.WriteJSON(map[string]any{"method": "Page.loadEventFired", "params": map[string]float64{"timestamp": 1}})
			case "Runtime.evaluate":
				_ = conn.WriteJSON(map[string]any{"id": req.ID, "result": map[string]any{
					"result": map[string]string{"type": "string", "value": page},
				}})
			default:
				_ = conn.WriteJSON(map[string]any{"id": req.ID, "result": map[string]string{}})
			}
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &methods
}

func TestDevToolsRenderer(t *testing.T) {
	srv, methods := fakeBrowser(t, "<html><body>Program</body></html>")

	r := NewDevToolsRenderer(srv.URL, "https://explorer.example", 5*time.Second)
	html, err := r.Render(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, "<html><body>Program</body></html>", html)
	assert.Equal(t, []string{"Page.enable", "Page.navigate", "Runtime.evaluate"}, *methods)
}

func TestDevToolsRendererCommandError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/new", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "T2", "webSocketDebuggerUrl": "ws://" + r.Host + "/ws"})
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		var req cdpRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		_ = conn.WriteJSON(map[string]any{"id": req.ID, "error": map[string]any{"code": -32000, "message": "Not allowed"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := NewDevToolsRenderer(srv.URL, "http://h", 5*time.Second).Render(context.Background(), "0x01")
	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.True(t, strings.Contains(err.Error(), "Not allowed"))
}

func TestDevToolsRendererUnreachable(t *testing.T) {
	_, err := NewDevToolsRenderer("http://127.0.0.1:1", "http://h", time.Second).Render(context.Background(), "0x01")
	var re *RenderError
	require.ErrorAs(t, err, &re)
}
