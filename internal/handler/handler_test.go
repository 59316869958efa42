package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CageChen/cloverdrive/internal/assist"
	"github.com/CageChen/cloverdrive/internal/vault"
	"github.com/CageChen/cloverdrive/internal/watcher"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingOpener struct {
	opened []string
}

func (o *recordingOpener) Open(target string) error {
	o.opened = append(o.opened, target)
	return nil
}

type testServer struct {
	router *gin.Engine
	vault  *vault.Vault
	opener *recordingOpener
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	roots, err := vault.ResolveRoots(t.TempDir(), "", "")
	require.NoError(t, err)
	roots, err = roots.Ensure()
	require.NoError(t, err)

	v := vault.New(roots)
	opener := &recordingOpener{}
	r := gin.New()
	NewVaultHandler(v, opener).Register(r.Group("/api"))

	return &testServer{router: r, vault: v, opener: opener}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) ok(t *testing.T, path string, body interface{}) bool {
	t.Helper()
	w := s.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.OK
}

type item struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Type      string `json:"type"`
	InTrash   bool   `json:"inTrash"`
	SizeLabel string `json:"sizeLabel"`
	DateLabel string `json:"dateLabel"`
}

func (s *testServer) items(t *testing.T) []item {
	t.Helper()
	w := s.do(t, http.MethodGet, "/api/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	return items
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestVaultHandler_ReportLifecycle(t *testing.T) {
	s := newTestServer(t)
	src := writeFile(t, t.TempDir(), "report.pdf", bytes.Repeat([]byte("x"), 2048))

	items := s.items(t)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	require.True(t, s.ok(t, "/api/upload", gin.H{"paths": []string{src}}))

	items = s.items(t)
	require.Len(t, items, 1)
	assert.Equal(t, "report.pdf", items[0].Name)
	assert.Equal(t, "pdf", items[0].Type)
	assert.Equal(t, "2.0 KB", items[0].SizeLabel)
	assert.Equal(t, time.Now().Format("Jan 2, 2006"), items[0].DateLabel)
	assert.False(t, items[0].InTrash)

	require.True(t, s.ok(t, "/api/trash", gin.H{"path": items[0].Path}))
	items = s.items(t)
	require.Len(t, items, 1)
	assert.True(t, items[0].InTrash)

	require.True(t, s.ok(t, "/api/restore", gin.H{"path": items[0].Path}))
	items = s.items(t)
	require.Len(t, items, 1)
	assert.False(t, items[0].InTrash)

	require.True(t, s.ok(t, "/api/delete", gin.H{"path": items[0].Path}))
	assert.Empty(t, s.items(t))

	// Deleting again is a no-op, not an error
	assert.False(t, s.ok(t, "/api/delete", gin.H{"path": items[0].Path}))
}

func TestVaultHandler_UploadEmptySelection(t *testing.T) {
	s := newTestServer(t)
	assert.False(t, s.ok(t, "/api/upload", gin.H{"paths": []string{}}))
}

func TestVaultHandler_InvalidRequest(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/trash", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/delete", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "path is required")
}

func TestVaultHandler_OutsidePathAnswersNotOK(t *testing.T) {
	s := newTestServer(t)
	outside := writeFile(t, t.TempDir(), "keep.txt", []byte("keep"))

	assert.False(t, s.ok(t, "/api/delete", gin.H{"path": outside}))
	_, err := os.Stat(outside)
	assert.NoError(t, err, "files outside the vault are never touched")
}

func TestVaultHandler_Download(t *testing.T) {
	s := newTestServer(t)
	inVault := writeFile(t, s.vault.Roots().Vault, "notes.txt", []byte("hello"))

	t.Run("cancelled dialog", func(t *testing.T) {
		assert.False(t, s.ok(t, "/api/download", gin.H{"path": inVault, "destination": ""}))
	})

	t.Run("copies to destination", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "copy.txt")
		assert.True(t, s.ok(t, "/api/download", gin.H{"path": inVault, "name": "notes.txt", "destination": dst}))

		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
		_, err = os.Stat(inVault)
		assert.NoError(t, err, "download leaves the vault copy in place")
	})
}

func TestVaultHandler_Open(t *testing.T) {
	s := newTestServer(t)
	inVault := writeFile(t, s.vault.Roots().Vault, "slides.key", []byte("k"))

	assert.True(t, s.ok(t, "/api/open", gin.H{"path": inVault}))
	assert.Equal(t, []string{inVault}, s.opener.opened)
}

func TestVaultHandler_Wipe(t *testing.T) {
	s := newTestServer(t)
	writeFile(t, s.vault.Roots().Vault, "a.txt", []byte("a"))
	writeFile(t, s.vault.Roots().Trash, "b.txt", []byte("b"))

	assert.True(t, s.ok(t, "/api/wipe", nil))
	assert.Empty(t, s.items(t))
}

func TestVaultHandler_Preview(t *testing.T) {
	s := newTestServer(t)
	png := writeFile(t, s.vault.Roots().Vault, "pic.png", []byte{0x89, 'P', 'N', 'G'})
	txt := writeFile(t, s.vault.Roots().Vault, "a.txt", []byte("a"))

	w := s.do(t, http.MethodGet, "/api/preview?path="+png, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		DataURL string `json:"dataUrl"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "data:image/png;base64,iVBORw==", resp.DataURL)

	w = s.do(t, http.MethodGet, "/api/preview?path="+txt, nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = s.do(t, http.MethodGet, "/api/preview?path="+filepath.Join(s.vault.Roots().Vault, "gone.png"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/preview", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeGenerator struct {
	gotKey string
	res    *assist.Result
	err    error
}

func (g *fakeGenerator) Generate(_ context.Context, _, apiKey string) (*assist.Result, error) {
	g.gotKey = apiKey
	return g.res, g.err
}

func assistRouter(gen Generator, defaultKey string) *gin.Engine {
	r := gin.New()
	r.POST("/api/assist", NewAssistHandler(gen, defaultKey).Generate)
	return r
}

func postAssist(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/assist", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAssistHandler(t *testing.T) {
	t.Run("success uses default key", func(t *testing.T) {
		gen := &fakeGenerator{res: &assist.Result{HTML: "<p>hi</p>", Model: "gemini-2.0-flash"}}
		w := postAssist(assistRouter(gen, "env-key"), `{"prompt":"hello"}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"html":"<p>hi</p>","model":"gemini-2.0-flash"}`, w.Body.String())
		assert.Equal(t, "env-key", gen.gotKey)
	})

	t.Run("request key wins", func(t *testing.T) {
		gen := &fakeGenerator{res: &assist.Result{HTML: "<p>x</p>", Model: "m"}}
		postAssist(assistRouter(gen, "env-key"), `{"prompt":"hello","apiKey":"mine"}`)
		assert.Equal(t, "mine", gen.gotKey)
	})

	t.Run("authorization failure", func(t *testing.T) {
		gen := &fakeGenerator{err: assist.ErrMissingKey}
		w := postAssist(assistRouter(gen, ""), `{"prompt":"hello"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("all models failed", func(t *testing.T) {
		gen := &fakeGenerator{err: &assist.FallbackError{Attempts: []assist.Attempt{{Backend: "m", Err: assert.AnError}}}}
		w := postAssist(assistRouter(gen, "k"), `{"prompt":"hello"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("empty prompt", func(t *testing.T) {
		gen := &fakeGenerator{err: assist.ErrEmptyPrompt}
		w := postAssist(assistRouter(gen, "k"), `{"prompt":""}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestWSHandler_BroadcastsVaultChange(t *testing.T) {
	ws := NewWSHandler("/data/CloverTrash")
	r := gin.New()
	r.GET("/api/ws", ws.HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ws.clientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	ws.OnVaultChange(watcher.Event{
		Type: watcher.EventCreate,
		Root: "/data/CloverTrash",
		Path: "/data/CloverTrash/report.pdf",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg struct {
		Type    string `json:"type"`
		Payload struct {
			Event   string `json:"event"`
			Path    string `json:"path"`
			InTrash bool   `json:"inTrash"`
		} `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "vaultChange", msg.Type)
	assert.Equal(t, "create", msg.Payload.Event)
	assert.Equal(t, "/data/CloverTrash/report.pdf", msg.Payload.Path)
	assert.True(t, msg.Payload.InTrash)
}

func TestLocalOrigin(t *testing.T) {
	tests := map[string]bool{
		"":                      true,
		"http://localhost:8080": true,
		"http://127.0.0.1:8080": true,
		"http://[::1]:8080":     true,
		"https://evil.example":  false,
	}
	for origin, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, LocalOrigin(req), origin)
	}
}
