package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New("localhost", 0, slog.Default())
	ts := httptest.NewServer(s.httpSrv.Handler)
	t.Cleanup(ts.Close)
	return s, ts
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

func TestIndexBeforeFirstBuild(t *testing.T) {
	_, ts := newTestServer(t)
	code, _ := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestIndexServesContentWithReloadScript(t *testing.T) {
	s, ts := newTestServer(t)
	s.SetContent([]byte("<html><body><h1>Hi</h1></body></html>"))

	code, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<h1>Hi</h1>")
	assert.Contains(t, body, "new WebSocket")
	// the script lands inside the body element
	assert.Less(t, strings.Index(body, "new WebSocket"), strings.Index(body, "</body>"))
}

func TestInjectReloadWithoutBody(t *testing.T) {
	out := string(injectReload([]byte("<p>fragment</p>")))
	assert.True(t, strings.HasPrefix(out, "<p>fragment</p>"))
	assert.Contains(t, out, "new WebSocket")
}

func TestInjectReloadDoesNotAliasContent(t *testing.T) {
	// content with spare capacity, as a slice held across requests
	content := make([]byte, 0, 1024)
	content = append(content, "<p>fragment</p>"...)

	out := injectReload(content)
	out[0] = '!'
	assert.Equal(t, byte('<'), content[0])

	content2 := make([]byte, 0, 1024)
	content2 = append(content2, "<html><body>x</body></html>"...)
	out2 := injectReload(content2)
	out2[0] = '!'
	assert.Equal(t, byte('<'), content2[0])
}

func TestUnknownPathIs404(t *testing.T) {
	s, ts := newTestServer(t)
	s.SetContent([]byte("<html></html>"))
	code, _ := get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestReloadBroadcast(t *testing.T) {
	s, ts := newTestServer(t)
	s.SetContent([]byte("<html></html>"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// connection registration races the broadcast, so wait for it
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.SetContent([]byte("<html><body>v2</body></html>"))

	_, msg, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reload", string(msg))
}
