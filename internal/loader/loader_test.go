package loader

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/markup/internal/errors"
	"github.com/conneroisu/markup/internal/node"
	"github.com/conneroisu/markup/internal/registry"
	"github.com/conneroisu/markup/pkg/markup"
)

func TestSplit(t *testing.T) {
	testCases := []struct {
		name     string
		src      string
		segments []string
		exprs    []string
	}{
		{"no placeholders", "<p>x</p>", []string{"<p>x</p>"}, nil},
		{"child", "<p>${ name }</p>", []string{"<p>", "</p>"}, []string{"name"}},
		{"adjacent", "${a}${b}", []string{"", "", ""}, []string{"a", "b"}},
		{"attribute", `<a href="/u/${user.id}">`, []string{`<a href="/u/`, `">`}, []string{"user.id"}},
		{"spread", "<div ...${props}>", []string{"<div ...", ">"}, []string{"props"}},
		{"dollar without brace", "$5 ${price}", []string{"$5 ", ""}, []string{"price"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := Split(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.segments, src.Segments)
			assert.Equal(t, tc.exprs, src.Exprs)
		})
	}

	_, err := Split("<p>${name</p>")
	assert.True(t, errors.IsKind(err, errors.KindMalformedTemplate))
	_, err = Split("<p>${ }</p>")
	assert.True(t, errors.IsKind(err, errors.KindMalformedTemplate))
}

type user struct {
	Name string
	Tags []string
}

func TestResolve(t *testing.T) {
	scope := map[string]any{
		"name":  "Ada",
		"site":  map[string]any{"title": "Example", "nav": []any{"home", "about"}},
		"user":  &user{Name: "Grace", Tags: []string{"admin"}},
		"props": node.Props{"size": "lg"},
		"empty": nil,
	}

	testCases := []struct {
		expr     string
		expected any
	}{
		{"name", "Ada"},
		{"site.title", "Example"},
		{"site.nav.1", "about"},
		{"site.missing", nil},
		{"site.nav.9", nil},
		{"user.Name", "Grace"},
		{"user.Tags.0", "admin"},
		{"user.unexported", nil},
		{"props.size", "lg"},
		{"empty.anything", nil},
		{`"quoted"`, "quoted"},
		{"'single'", "single"},
		{"42", int64(42)},
		{"1.5", 1.5},
		{"true", true},
		{"false", false},
		{"nil", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			v, err := Resolve(tc.expr, scope)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v)
		})
	}

	for _, expr := range []string{"missing", "name()", "a..b", "site.title + 1"} {
		t.Run("error "+expr, func(t *testing.T) {
			_, err := Resolve(expr, scope)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.NewMalformedTemplate(errors.ErrCodeUnresolved, ""))
		})
	}
}

func TestComponentName(t *testing.T) {
	testCases := map[string]string{
		"user-card.html":           "UserCard",
		"components/nav_bar.html":  "NavBar",
		"header.html":              "Header",
		"components/myWidget.html": "MyWidget",
		"components/a.b-c.html":    "ABC",
	}
	for file, expected := range testCases {
		assert.Equal(t, expected, ComponentName(file), file)
	}
}

func TestRoute(t *testing.T) {
	testCases := map[string]string{
		"index.html":           "/",
		"about.html":           "/about",
		"blog/index.html":      "/blog",
		"blog/first-post.html": "/blog/first-post",
	}
	for rel, expected := range testCases {
		assert.Equal(t, expected, Route(rel), rel)
	}
}

func TestSplitFrontMatter(t *testing.T) {
	fm, body, err := splitFrontMatter("---\nprops:\n  title: string\n  tags: array?\ndata:\n  year: 2024\n---\n<p>${title}</p>")
	require.NoError(t, err)
	assert.Equal(t, "\n<p>${title}</p>", body)
	assert.Equal(t, map[string]string{"title": "string", "tags": "array?"}, fm.Props)
	assert.Equal(t, map[string]any{"year": 2024}, fm.Data)

	v, params, err := fm.shape()
	require.NoError(t, err)
	assert.Equal(t, []registry.ParameterInfo{
		{Name: "tags", Type: "array", Optional: true},
		{Name: "title", Type: "string"},
	}, params)
	assert.NoError(t, v.Validate(node.Props{"title": "x"}))
	assert.NoError(t, v.Validate(node.Props{"title": "x", "tags": nil}))
	assert.Error(t, v.Validate(node.Props{"tags": []any{}}))

	_, body, err = splitFrontMatter("<p>plain</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>plain</p>", body)

	_, _, err = splitFrontMatter("---\nprops: {}\n<p>never closed</p>")
	assert.ErrorIs(t, err, errors.NewMalformedTemplate(errors.ErrCodeFrontMatter, ""))

	fm, _, err = splitFrontMatter("---\nprops:\n  x: widget\n---\n")
	require.NoError(t, err)
	_, _, err = fm.shape()
	assert.ErrorIs(t, err, errors.NewMalformedTemplate(errors.ErrCodeFrontMatter, ""))
}

const userCard = `---
props:
  name: string
  role: string?
---
<div class="card">
  <h2>${name}</h2>
  ${children}
</div>
`

const indexPage = `---
data:
  heading: Team
---
<main>
  <h1>${heading} of ${site.name}</h1>
  <${UserCard} name="Ada"><p>first</p><//>
  <${UserCard} name=${site.owner} />
</main>
`

func newTestLibrary(t *testing.T, files fstest.MapFS) (*Library, *registry.ComponentRegistry) {
	t.Helper()
	reg := registry.NewComponentRegistry()
	lib := NewLibrary(files, Config{
		ComponentsDir: "components",
		PagesDir:      "pages",
		DataFile:      "data.yml",
	}, markup.New(), reg, nil)
	return lib, reg
}

func TestLibraryRendersPages(t *testing.T) {
	files := fstest.MapFS{
		"components/user-card.html":  {Data: []byte(userCard)},
		"pages/index.html":           {Data: []byte(indexPage)},
		"pages/blog/first-post.html": {Data: []byte("<article>${site.name}</article>")},
		"data.yml":                   {Data: []byte("site:\n  name: Example\n  owner: Grace\n")},
	}
	lib, reg := newTestLibrary(t, files)
	require.NoError(t, lib.Load(context.Background()))

	assert.Equal(t, []string{"/", "/blog/first-post"}, lib.Routes())
	info, ok := reg.Get("UserCard")
	require.True(t, ok)
	assert.Equal(t, "components/user-card.html", info.Source)
	assert.Len(t, info.Parameters, 2)
	assert.NotEmpty(t, info.Hash)

	out, err := lib.RenderPage(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, `<main><h1>Team of Example</h1>`+
		`<div class="card"><h2>Ada</h2><p>first</p></div>`+
		`<div class="card"><h2>Grace</h2></div></main>`, out)

	out, err = lib.RenderPage(context.Background(), "/blog/first-post", nil)
	require.NoError(t, err)
	assert.Equal(t, "<article>Example</article>", out)

	out, err = lib.Render(context.Background(), "UserCard", node.Props{"name": "Linus"})
	require.NoError(t, err)
	assert.Equal(t, `<div class="card"><h2>Linus</h2></div>`, out)
}

func TestLibraryRenderErrors(t *testing.T) {
	files := fstest.MapFS{
		"components/user-card.html": {Data: []byte(userCard)},
		"pages/missing-prop.html":   {Data: []byte("<${UserCard} />")},
		"pages/unknown.html":        {Data: []byte("<p>${nobody}</p>")},
	}
	lib, _ := newTestLibrary(t, files)
	require.NoError(t, lib.Load(context.Background()))

	_, err := lib.RenderPage(context.Background(), "/missing-prop", nil)
	assert.True(t, errors.IsKind(err, errors.KindInvalidComponentProps), "got %v", err)

	_, err = lib.RenderPage(context.Background(), "/unknown", nil)
	assert.ErrorIs(t, err, errors.NewMalformedTemplate(errors.ErrCodeUnresolved, ""))

	_, err = lib.RenderPage(context.Background(), "/nope", nil)
	assert.ErrorIs(t, err, errors.NewIOError(errors.ErrCodePageNotFound, "", nil))

	_, err = lib.Render(context.Background(), "Nope", nil)
	assert.Error(t, err)
}

func TestLibraryLoadReportsSyntaxErrors(t *testing.T) {
	files := fstest.MapFS{
		"components/broken.html": {Data: []byte("<div><p></div>")},
	}
	lib, _ := newTestLibrary(t, files)

	err := lib.Load(context.Background())
	require.Error(t, err)
	var me *errors.MarkupError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "components/broken.html", me.Context["file"])
}

func TestLibraryReloadRemovesDeletedComponents(t *testing.T) {
	files := fstest.MapFS{
		"components/header.html": {Data: []byte("<header>h</header>")},
		"components/footer.html": {Data: []byte("<footer>f</footer>")},
	}
	lib, reg := newTestLibrary(t, files)
	reg.Register(&registry.ComponentInfo{Name: "Builtin", Source: "builtin", Component: &node.Component{Name: "Builtin"}})

	require.NoError(t, lib.Load(context.Background()))
	assert.Equal(t, 3, reg.Count())

	delete(files, "components/footer.html")
	require.NoError(t, lib.Load(context.Background()))

	_, ok := reg.Get("Footer")
	assert.False(t, ok)
	_, ok = reg.Get("Builtin")
	assert.True(t, ok)
	assert.Equal(t, 2, reg.Count())
}

func TestLibraryFailedReloadKeepsPreviousState(t *testing.T) {
	files := fstest.MapFS{
		"components/a-card.html": {Data: []byte("<b>v1</b>")},
		"pages/index.html":       {Data: []byte("<p>${greeting} <${ACard} /></p>")},
		"data.yml":               {Data: []byte("greeting: old\n")},
	}
	lib, reg := newTestLibrary(t, files)
	require.NoError(t, lib.Load(context.Background()))

	out, err := lib.RenderPage(context.Background(), "/", nil)
	require.NoError(t, err)
	require.Equal(t, "<p>old <b>v1</b></p>", out)
	before, _ := reg.Get("ACard")

	files["data.yml"] = &fstest.MapFile{Data: []byte("greeting: new\n")}
	files["components/a-card.html"] = &fstest.MapFile{Data: []byte("<b>v2</b>")}
	files["components/z-broken.html"] = &fstest.MapFile{Data: []byte("<div>")}

	err = lib.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewMalformedTemplate(errors.ErrCodeUnclosedElement, ""))

	out, err = lib.RenderPage(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>old <b>v1</b></p>", out)
	after, _ := reg.Get("ACard")
	assert.Same(t, before, after)
	_, ok := reg.Get("ZBroken")
	assert.False(t, ok)

	delete(files, "components/z-broken.html")
	require.NoError(t, lib.Load(context.Background()))
	out, err = lib.RenderPage(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>new <b>v2</b></p>", out)
}

func TestLibraryReloadKeepsUnchangedComponents(t *testing.T) {
	files := fstest.MapFS{
		"components/header.html": {Data: []byte("<header>h</header>")},
		"components/footer.html": {Data: []byte("<footer>f</footer>")},
	}
	lib, reg := newTestLibrary(t, files)
	require.NoError(t, lib.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := reg.Watch(ctx)

	files["components/footer.html"] = &fstest.MapFile{Data: []byte("<footer>g</footer>")}
	require.NoError(t, lib.Load(context.Background()))

	select {
	case event := <-events:
		assert.Equal(t, registry.EventTypeUpdated, event.Type)
		assert.Equal(t, "Footer", event.Component.Name)
	default:
		t.Fatal("expected an update event for Footer")
	}
	select {
	case event := <-events:
		t.Fatalf("unexpected event %s for %s", event.Type, event.Component.Name)
	default:
	}
}

func TestLibraryMissingDirectories(t *testing.T) {
	lib, reg := newTestLibrary(t, fstest.MapFS{})
	require.NoError(t, lib.Load(context.Background()))
	assert.Empty(t, lib.Routes())
	assert.Zero(t, reg.Count())
}
