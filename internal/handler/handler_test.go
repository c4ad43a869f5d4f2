package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CageChen/filesource/internal/source"
	"github.com/CageChen/filesource/internal/watcher"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	tree   *TreeHandler
	ws     *WSHandler
	docs   string
	out    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	for name, content := range map[string]string{
		"index.md":      "home",
		"a.md":          "a",
		"guide/b.md":    "b",
		"guide/img.png": "\x89PNG",
	} {
		p := filepath.Join(docs, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}

	ro, err := source.New(source.Options{Name: "docs", Path: docs})
	require.NoError(t, err)
	out := filepath.Join(dir, "out")
	rw, err := source.New(source.Options{Name: "out", Path: out, Writable: true, Tmp: filepath.Join(dir, "tmp")})
	require.NoError(t, err)

	tree := NewTreeHandler([]*source.Source{ro, rw})
	ws := NewWSHandler()
	return &fixture{router: NewRouter(tree, ws), tree: tree, ws: ws, docs: docs, out: out}
}

func (f *fixture) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGetSources(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sources []SourceInfo `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "docs", resp.Sources[0].Name)
	assert.False(t, resp.Sources[0].Writable)
	assert.True(t, resp.Sources[0].Watchable)
	assert.Equal(t, "out", resp.Sources[1].Name)
	assert.True(t, resp.Sources[1].Writable)
}

func TestGetList(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/sources/docs/list", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Files []struct {
			Path string `json:"filepath"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	var got []string
	for _, f := range resp.Files {
		got = append(got, f.Path)
	}
	assert.Equal(t, []string{"/index.md", "/a.md", "/guide/b.md"}, got)
}

func TestGetTree(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/sources/docs/tree", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var root TreeNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.Equal(t, "docs", root.Name)
	require.Len(t, root.Children, 3)
	assert.Equal(t, "index.md", root.Children[0].Name)
	assert.Equal(t, "a.md", root.Children[1].Name)
	guide := root.Children[2]
	assert.Equal(t, "directory", guide.Type)
	assert.Equal(t, "/guide", guide.Path)
	require.Len(t, guide.Children, 1)
	assert.Equal(t, "/guide/b.md", guide.Children[0].Path)
}

func TestGetFilesUnknownSource(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/sources/nope/files", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutThenGetFiles(t *testing.T) {
	f := newFixture(t)

	var put []string
	f.tree.OnPut(func(name string, written []string) { put = append(put, written...) })

	rec := f.do(t, http.MethodGet, "/api/sources/docs/files", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Files []source.File `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Files, 3)

	body, err := json.Marshal(got.Files)
	require.NoError(t, err)
	rec = f.do(t, http.MethodPut, "/api/sources/out/files", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"/index.md", "/a.md", "/guide/b.md"}, resp.Written)
	assert.Equal(t, resp.Written, put)

	data, err := os.ReadFile(filepath.Join(f.out, "guide", "b.md"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestPutNotWritable(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/api/sources/docs/files", []byte(`[{"path":"/x.md","text":"x"}]`))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "non-writable")
	assert.NoFileExists(t, filepath.Join(f.docs, "x.md"))
}

func TestPutBadBody(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/api/sources/out/files", []byte(`{"not":"a list"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPutPartialFailure(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPut, "/api/sources/out/files",
		[]byte(`[{"path":"/ok.md","text":"ok"},{"path":"/../escape.md","text":"x"}]`))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp PutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"/ok.md"}, resp.Written)
	assert.NotEmpty(t, resp.Error)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodOptions, "/api/sources", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketBroadcast(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.ws.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.ws.OnFileChange(watcher.Event{Type: watcher.EventWrite, Source: "docs", Path: "/a.md"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "fileChange", msg.Type)
	assert.Equal(t, map[string]string{"event": "update", "source": "docs", "path": "/a.md"}, msg.Payload)
}

func TestBuildTreeKeepsOrder(t *testing.T) {
	f := newFixture(t)
	list, err := f.tree.byName["docs"].List(t.Context())
	require.NoError(t, err)

	root := buildTree(list)
	var flat []string
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		if n.Type == "file" {
			flat = append(flat, n.Path)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	assert.Equal(t, []string{"/index.md", "/a.md", "/guide/b.md"}, flat)
}

func TestWebSocketSubscribe(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "subscribe", "sources": []string{"out"}}))
	require.Eventually(t, func() bool {
		f.ws.mu.RLock()
		defer f.ws.mu.RUnlock()
		for _, c := range f.ws.clients {
			return c.sources["out"]
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	f.ws.OnFileChange(watcher.Event{Type: watcher.EventWrite, Source: "docs", Path: "/a.md"})
	f.ws.OnPut("out", []string{"/a.md"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type    string `json:"type"`
		Payload struct {
			Source string   `json:"source"`
			Paths  []string `json:"paths"`
		} `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "put", msg.Type)
	assert.Equal(t, "out", msg.Payload.Source)
	assert.Equal(t, []string{"/a.md"}, msg.Payload.Paths)
}
