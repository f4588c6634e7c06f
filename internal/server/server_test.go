package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/tagdoc/internal/config"
	"github.com/conneroisu/tagdoc/internal/engine"
	docerrors "github.com/conneroisu/tagdoc/internal/errors"
	"github.com/conneroisu/tagdoc/internal/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(root string) *config.Config {
	return &config.Config{
		Templates: config.TemplatesConfig{
			Vendors:   map[string]string{"VENDOR": root},
			Extension: ".html",
		},
		Cache: config.CacheConfig{Enabled: true, Namespace: "test", MaxSize: 1 << 20},
		Server: config.ServerConfig{
			Host:           "localhost",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Watch: config.WatchConfig{Enabled: false, Debounce: 20 * time.Millisecond},
	}
}

func writeTemplate(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestServer(t *testing.T) (*PreviewServer, *httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	writeTemplate(t, root, "site/main.html", `<h1><html:placeholder name="title"/></h1>`)
	writeTemplate(t, root, "broken.html", `<html:template name="x">`)

	cfg := testConfig(root)
	s := New(cfg, engine.New(cfg))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, root
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHandleRender(t *testing.T) {
	_, ts, _ := newTestServer(t)

	testCases := []struct {
		name   string
		path   string
		status int
		body   string
	}{
		{"placeholder from query", "/render/VENDOR/site/main?ph.title=Hello", http.StatusOK, "<h1>Hello</h1>"},
		{"no placeholders", "/render/VENDOR/site/main", http.StatusOK, "<h1></h1>"},
		{"unknown placeholder", "/render/VENDOR/site/main?ph.nope=x", http.StatusBadRequest, "PLACEHOLDER_NOT_FOUND"},
		{"missing template", "/render/VENDOR/site/missing", http.StatusNotFound, "TEMPLATE_READ_FAILED"},
		{"unknown vendor", "/render/OTHER/main", http.StatusNotFound, "UNKNOWN_VENDOR"},
		{"parse error", "/render/VENDOR/broken", http.StatusUnprocessableEntity, "UNCLOSED_TAG"},
		{"path without template", "/render/VENDOR", http.StatusBadRequest, "INVALID_RENDER_PATH"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := get(t, ts.URL+tc.path)
			assert.Equal(t, tc.status, status)
			assert.Contains(t, body, tc.body)
		})
	}
}

func TestRenderErrorOverlay(t *testing.T) {
	_, ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/render/VENDOR/broken", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "tagdoc-error-overlay")
}

func TestRenderRequest(t *testing.T) {
	query := url.Values{
		"ph.b":   {"2"},
		"ph.a":   {"1"},
		"other":  {"x"},
		"append": {"1"},
	}
	req, err := renderRequest("VENDOR/site/layout/main", query)
	require.NoError(t, err)

	assert.Equal(t, `VENDOR\site\layout`, req.Namespace)
	assert.Equal(t, "main", req.Name)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, req.PlaceHolders)
	assert.True(t, req.Append)
	assert.Equal(t, "append&a=1&b=2", req.CacheSubKey)

	req, err = renderRequest("VENDOR/main", nil)
	require.NoError(t, err)
	assert.Equal(t, "VENDOR", req.Namespace)
	assert.Empty(t, req.CacheSubKey)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(docerrors.NewIOError("X", "x", os.ErrNotExist)))
	assert.Equal(t, http.StatusBadRequest, statusFor(docerrors.NewInvalidArgumentError("X", "x")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(docerrors.NewParseError("X", "x")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(docerrors.NewEvaluationError("X", "x", nil)))
}

func TestHandleHealth(t *testing.T) {
	_, ts, _ := newTestServer(t)

	status, body := get(t, ts.URL+"/render/VENDOR/site/main")
	require.Equal(t, http.StatusOK, status, body)

	status, body = get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, status)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.EqualValues(t, 0, health["clients"])
	assert.Equal(t, false, health["watching"])
	cacheStats, ok := health["cache"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, cacheStats["entries"])
}

func TestCORS(t *testing.T) {
	_, ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestWebSocketOrigin(t *testing.T) {
	_, ts, _ := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	testCases := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"same host", ts.URL, true},
		{"configured origin", "http://localhost:3000", true},
		{"no origin", "", false},
		{"foreign origin", "http://evil.example", false},
		{"bad scheme", "file://" + strings.TrimPrefix(ts.URL, "http://"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			header := http.Header{}
			if tc.origin != "" {
				header.Set("Origin", tc.origin)
			}
			conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
			if tc.ok {
				require.NoError(t, err)
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			require.Error(t, err)
			if resp != nil {
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			}
		})
	}
}

func TestReloadBroadcast(t *testing.T) {
	s, ts, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": {ts.URL}},
	})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return s.Hub().Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.HandleChanges([]watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, Path: "/templates/site/main.html"},
	}))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg ReloadMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "reload", msg.Type)
	assert.Equal(t, "/templates/site/main.html", msg.Path)
	assert.Equal(t, "modified", msg.Change)
}

func TestHandleChangesInvalidatesCache(t *testing.T) {
	s, ts, root := newTestServer(t)

	_, body := get(t, ts.URL+"/render/VENDOR/site/main")
	assert.Equal(t, "<h1></h1>", body)

	writeTemplate(t, root, "site/main.html", `<h2>changed</h2>`)
	_, body = get(t, ts.URL+"/render/VENDOR/site/main")
	assert.Equal(t, "<h1></h1>", body, "cached output is served until invalidated")

	require.NoError(t, s.HandleChanges([]watcher.ChangeEvent{{Path: filepath.Join(root, "site/main.html")}}))
	_, body = get(t, ts.URL+"/render/VENDOR/site/main")
	assert.Equal(t, "<h2>changed</h2>", body)
}

func TestServeWithWatcherAndShutdown(t *testing.T) {
	root := t.TempDir()
	writeTemplate(t, root, "page.html", `one`)

	cfg := testConfig(root)
	cfg.Watch.Enabled = true
	s := New(cfg, engine.New(cfg))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + listener.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	_, body := get(t, base+"/render/VENDOR/page")
	assert.Equal(t, "one", body)

	writeTemplate(t, root, "page.html", `two`)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/render/VENDOR/page")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		return err == nil && string(body) == "two"
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}

	// Shutdown is idempotent
	assert.NoError(t, s.Shutdown(context.Background()))
}
