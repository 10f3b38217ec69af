package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/markup/internal/assets"
	"github.com/conneroisu/markup/internal/config"
	"github.com/conneroisu/markup/internal/escape"
	"github.com/conneroisu/markup/internal/loader"
	"github.com/conneroisu/markup/internal/registry"
	"github.com/conneroisu/markup/internal/renderer"
	"github.com/conneroisu/markup/internal/watcher"
	"github.com/conneroisu/markup/pkg/markup"
)

const indexPage = `<html><head><title>${site.name}</title></head><body><p>Hello from ${site.name}</p></body></html>`

func testConfig(liveReload bool) *config.Config {
	return &config.Config{
		Server:      config.ServerConfig{Host: "127.0.0.1", Port: 0, Gzip: true, ShutdownTimeout: time.Second},
		Templates:   config.TemplatesConfig{ComponentsDir: "components", PagesDir: "pages", DataFile: "data.yml"},
		Render:      config.RenderConfig{MaxDepth: 128},
		Development: config.DevelopmentConfig{LiveReload: liveReload},
	}
}

type fixture struct {
	server    *Server
	templates fstest.MapFS
	registry  *registry.ComponentRegistry
}

func newFixture(t *testing.T, liveReload bool) *fixture {
	t.Helper()

	templates := fstest.MapFS{
		"pages/index.html":  {Data: []byte(indexPage)},
		"pages/about.html":  {Data: []byte("<main>about</main>")},
		"pages/broken.html": {Data: []byte("<p>${nobody}</p>")},
		"data.yml":          {Data: []byte("site:\n  name: Example\n")},
	}
	static := fstest.MapFS{
		"styles.css": {Data: []byte("body{margin:0}")},
	}

	reg := registry.NewComponentRegistry()
	engine := markup.New(markup.WithRendererConfig(&renderer.Config{MaxDepth: 128}))
	lib := loader.NewLibrary(templates, loader.Config{
		ComponentsDir: "components",
		PagesDir:      "pages",
		DataFile:      "data.yml",
	}, engine, reg, nil)
	require.NoError(t, lib.Load(context.Background()))

	s := New(testConfig(liveReload), Deps{
		Library:  lib,
		Registry: reg,
		Hasher:   assets.NewHasher(static, nil),
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return &fixture{server: s, templates: templates, registry: reg}
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRouteFor(t *testing.T) {
	assert.Equal(t, "/", routeFor(""))
	assert.Equal(t, "/", routeFor("/"))
	assert.Equal(t, "/about", routeFor("/about/"))
	assert.Equal(t, "/blog/post", routeFor("/blog/post"))
}

func TestPages(t *testing.T) {
	f := newFixture(t, false)

	testCases := []struct {
		name     string
		method   string
		target   string
		status   int
		contains string
	}{
		{"index", http.MethodGet, "/", http.StatusOK, "<p>Hello from Example</p>"},
		{"trailing slash", http.MethodGet, "/about/", http.StatusOK, "<main>about</main>"},
		{"missing page", http.MethodGet, "/nope", http.StatusNotFound, "404 page not found"},
		{"render failure", http.MethodGet, "/broken", http.StatusInternalServerError, "Internal Server Error"},
		{"method not allowed", http.MethodPost, "/", http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(tc.method, tc.target)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.contains)
		})
	}

	rec := f.do(http.MethodGet, "/broken")
	assert.NotContains(t, rec.Body.String(), "nobody")
}

func TestPageHeaders(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "<!DOCTYPE html>"))
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.NotContains(t, rec.Body.String(), "<script")

	rec = f.do(http.MethodHead, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestLiveReloadScriptCarriesNonce(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	csp := rec.Header().Get("Content-Security-Policy")
	start := strings.Index(csp, "'nonce-")
	require.GreaterOrEqual(t, start, 0, csp)
	nonce := csp[start+len("'nonce-"):]
	nonce = nonce[:strings.Index(nonce, "'")]

	body := rec.Body.String()
	script := `<script nonce="` + escape.AttributeValue(nonce) + `">`
	assert.Contains(t, body, script)
	assert.Less(t, strings.Index(body, script), strings.Index(body, "</body>"))
	assert.Contains(t, csp, "connect-src 'self'")
}

func TestInjectLiveReload(t *testing.T) {
	r := renderer.New(&renderer.Config{MaxDepth: 1, OmitDoctype: true})

	out, err := injectLiveReload(context.Background(), r, "<main>x</main>")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<main>x</main><script>"))
	assert.True(t, strings.HasSuffix(out, "</script>"))
	assert.Contains(t, out, LivePath)

	out, err = injectLiveReload(context.Background(), r, "<body><p>a</p></body></html>")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "</script></body></html>"))
}

func TestStaticFiles(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/styles.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{margin:0}", rec.Body.String())
	sum := assets.HashBytes([]byte("body{margin:0}"))
	assert.Equal(t, `"`+sum+`"`, rec.Header().Get("ETag"))

	rec = f.do(http.MethodGet, "/styles.css?v="+sum)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	rec = f.do(http.MethodGet, "/missing.css")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndComponents(t *testing.T) {
	f := newFixture(t, false)
	f.registry.Register(&registry.ComponentInfo{
		Name:       "Card",
		Source:     "components/card.html",
		Parameters: []registry.ParameterInfo{{Name: "title", Type: "string"}},
	})

	rec := f.do(http.MethodGet, "/_markup/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 3, health.Pages)
	assert.Equal(t, 1, health.Components)

	rec = f.do(http.MethodGet, "/_markup/components")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []componentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Card", list[0].Name)
	assert.Equal(t, []parameterEntry{{Name: "title", Type: "string"}}, list[0].Parameters)
}

func TestReloadBroadcasts(t *testing.T) {
	f := newFixture(t, true)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+LivePath, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return f.server.live.Clients() == 1 },
		time.Second, 10*time.Millisecond)

	f.templates["pages/new.html"] = &fstest.MapFile{Data: []byte("<p>new</p>")}
	require.NoError(t, f.server.Reload(ctx, []watcher.ChangeEvent{
		{Type: watcher.EventTypeCreated, Path: "pages/new.html"},
	}))
	assert.Contains(t, f.server.library.Routes(), "/new")

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "reload", msg.Type)
	assert.Equal(t, []string{"pages/new.html"}, msg.Files)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestIsComponentFile(t *testing.T) {
	f := newFixture(t, false)

	assert.True(t, f.server.isComponentFile("components/card.html"))
	assert.True(t, f.server.isComponentFile("components/nested/badge.html"))
	assert.False(t, f.server.isComponentFile("pages/index.html"))
	assert.False(t, f.server.isComponentFile("data.yml"))
	assert.False(t, f.server.isComponentFile("components.html"))
}

func TestComponentChangesBroadcast(t *testing.T) {
	f := newFixture(t, true)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+LivePath, nil)
	require.NoError(t, err)
	defer conn.CloseNow()
	require.Eventually(t, func() bool { return f.server.live.Clients() == 1 },
		time.Second, 10*time.Millisecond)

	f.templates["components/card.html"] = &fstest.MapFile{Data: []byte("<b>card</b>")}
	require.NoError(t, f.server.Reload(ctx, []watcher.ChangeEvent{
		{Type: watcher.EventTypeCreated, Path: "components/card.html"},
	}))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg UpdateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "components", msg.Type)
	assert.Equal(t, []string{"Card"}, msg.Components)
	assert.Empty(t, msg.Files)

	// An unchanged component is not announced again; the page change is.
	f.templates["pages/about.html"] = &fstest.MapFile{Data: []byte("<main>about us</main>")}
	require.NoError(t, f.server.Reload(ctx, []watcher.ChangeEvent{
		{Type: watcher.EventTypeModified, Path: "pages/about.html"},
	}))

	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	var next UpdateMessage
	require.NoError(t, json.Unmarshal(data, &next))
	assert.Equal(t, "reload", next.Type)
	assert.Equal(t, []string{"pages/about.html"}, next.Files)
	assert.Empty(t, next.Components)
}

func TestReloadKeepsPagesOnError(t *testing.T) {
	f := newFixture(t, false)

	f.templates["pages/bad.html"] = &fstest.MapFile{Data: []byte("<div><p></div>")}
	err := f.server.Reload(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/").Code)
}

func TestLiveReloadClose(t *testing.T) {
	hub := NewLiveReload(nil)
	hub.Close()
	hub.Broadcast(UpdateMessage{Type: "reload"})
	assert.Equal(t, 0, hub.Clients())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, true)

	addr, err := f.server.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr.String() + "/_markup/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
