package fizzy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testPassword = "secret"

func newTestApp(t *testing.T, opts ...func(*Options)) *App {
	t.Helper()
	return newTestAppWithConfig(t, func(cfg string) string { return cfg }, opts...)
}

// newTestAppWithConfig is newTestApp with the fixture config.xml passed
// through edit first.
func newTestAppWithConfig(t *testing.T, edit func(string) string, opts ...func(*Options)) *App {
	t.Helper()
	dir := t.TempDir()
	cfg, err := os.ReadFile(filepath.Join("testdata", "config.xml"))
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "config.xml"), edit(string(cfg)))
	copyFixture(t, dir, "pages.xml")
	writeFile(t, filepath.Join(dir, "views", "layout.plush.html"),
		`<html><title><%= page["title"] %></title><body><%= yield %></body></html>`)

	o := Options{
		RootDir:       dir,
		AdminPassword: testPassword,
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}
	for _, fn := range opts {
		fn(&o)
	}
	a := New(o)
	require.NoError(t, a.Setup())
	t.Cleanup(func() { a.Close() })
	return a
}

func serve(a *App, method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// login signs in through the real login form and returns the cookies a
// browser would hold afterwards.
func login(t *testing.T, a *App) []*http.Cookie {
	t.Helper()
	rec := serve(a, http.MethodGet, "/fizzy/login", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	csrf := cookieNamed(rec, "_csrf")
	require.NotNil(t, csrf)

	rec = serve(a, http.MethodPost, "/fizzy/login", url.Values{
		"_csrf":    {csrf.Value},
		"password": {testPassword},
	}, csrf)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/fizzy", rec.Header().Get(echo.HeaderLocation))
	sess := cookieNamed(rec, sessionName)
	require.NotNil(t, sess)
	return []*http.Cookie{csrf, sess}
}

func TestSetupRequiresSecrets(t *testing.T) {
	a := New(Options{RootDir: t.TempDir()})
	assert.Error(t, a.Setup())
}

func TestSetupRequiresBackendSwitch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.xml"), `<fizzy><application><env>production</env></application></fizzy>`)
	copyFixture(t, dir, "pages.xml")

	a := New(Options{RootDir: dir, AdminPassword: "x", SessionSecret: "y"})
	err := a.Setup()
	var cerr *ConfigError
	assert.True(t, errors.As(err, &cerr), "got %v", err)
}

func TestSetupSetsDebugFromEnv(t *testing.T) {
	a := newTestApp(t)
	assert.True(t, a.Echo.Debug)
	assert.Equal(t, "/fizzy", a.BackendURL())
	assert.Len(t, a.Routes, 10)
}

func TestHomepage(t *testing.T) {
	a := newTestApp(t)

	rec := serve(a, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Hello</h1>")
	assert.Contains(t, rec.Body.String(), "<p>Hi & welcome</p>")
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
}

func TestPageBySlugUsesLayout(t *testing.T) {
	a := newTestApp(t)

	rec := serve(a, http.MethodGet, "/about", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>About</title>")
	assert.Contains(t, rec.Body.String(), "<p>About us</p>")
}

func TestPageByUID(t *testing.T) {
	a := newTestApp(t)

	rec := serve(a, http.MethodGet, "/page/abc123", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Hello</h1>")
}

func TestUnknownPagesAreNotFound(t *testing.T) {
	a := newTestApp(t)

	for _, target := range []string{"/nope", "/page/nope", "/page/x'%20or%20'1'='1"} {
		rec := serve(a, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "Not found", target)
	}
}

func TestSiteNotFoundPage(t *testing.T) {
	a := newTestApp(t)
	writeFile(t, filepath.Join(a.Options.ViewsDir, "frontend", NotFoundView), `<p>No page at <%= path %></p>`)

	rec := serve(a, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Not found</title>")
	assert.Contains(t, rec.Body.String(), "No page at /nope")
}

func TestSitemap(t *testing.T) {
	a := newTestApp(t)

	rec := serve(a, http.MethodGet, "/sitemap.xml", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<loc>http://localhost:3000/</loc>")
	assert.Contains(t, body, "<loc>http://localhost:3000/about</loc>")
	assert.NotContains(t, body, "/hello")
}

func TestBackendRequiresLogin(t *testing.T) {
	a := newTestApp(t)

	rec := serve(a, http.MethodGet, "/fizzy", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/fizzy/login", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestLoginWrongPassword(t *testing.T) {
	a := newTestApp(t)

	rec := serve(a, http.MethodGet, "/fizzy/login", nil)
	csrf := cookieNamed(rec, "_csrf")
	require.NotNil(t, csrf)

	rec = serve(a, http.MethodPost, "/fizzy/login", url.Values{
		"_csrf":    {csrf.Value},
		"password": {"wrong"},
	}, csrf)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong password.")
}

func TestLoginWithoutCSRFIsForbidden(t *testing.T) {
	a := newTestApp(t)

	rec := serve(a, http.MethodPost, "/fizzy/login", url.Values{"password": {testPassword}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDashboardAfterLogin(t *testing.T) {
	a := newTestApp(t)
	cookies := login(t, a)

	rec := serve(a, http.MethodGet, "/fizzy", nil, cookies...)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Hello")
	assert.Contains(t, body, "/fizzy/edit/def456")
	assert.Contains(t, body, "(homepage)")
}

func TestAddPageThroughBackend(t *testing.T) {
	a := newTestApp(t)
	cookies := login(t, a)

	rec := serve(a, http.MethodPost, "/fizzy/add", url.Values{
		"_csrf": {cookies[0].Value},
		"title": {"Contact us"},
		"body":  {"<p>Write to us</p>"},
	}, cookies...)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/fizzy?msg=Page+saved.", rec.Header().Get(echo.HeaderLocation))

	rec = serve(a, http.MethodGet, "/contact-us", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<p>Write to us</p>")

	reloaded, err := LoadStore(a.Store.Path())
	require.NoError(t, err)
	_, err = reloaded.FindBySlug("contact-us")
	assert.NoError(t, err)
}

func newBackendContext(a *App, method, target string, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return a.Echo.NewContext(req, rec), rec
}

func TestAddPageValidation(t *testing.T) {
	a := newTestApp(t)

	c, rec := newBackendContext(a, http.MethodPost, "/fizzy/add", url.Values{
		"title": {"Another about"},
		"slug":  {"about"},
		"body":  {"x"},
	})
	require.NoError(t, a.handleAddPage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "slug: is already used by another page")
	assert.Contains(t, rec.Body.String(), `value="Another about"`)
	assert.Len(t, a.Store.All(), 2)

	c, rec = newBackendContext(a, http.MethodPost, "/fizzy/add", url.Values{"title": {"No body"}})
	require.NoError(t, a.handleAddPage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "body: is required")
}

func TestAddPageForm(t *testing.T) {
	a := newTestApp(t)

	c, rec := newBackendContext(a, http.MethodGet, "/fizzy/add", nil)
	require.NoError(t, a.handleAddPage(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "New page")
	assert.Contains(t, rec.Body.String(), `<option value="plain"`)
}

func TestEditPage(t *testing.T) {
	a := newTestApp(t)

	c, rec := newBackendContext(a, http.MethodGet, "/fizzy/edit/def456", nil)
	c.SetParamNames("uid")
	c.SetParamValues("def456")
	require.NoError(t, a.handleEditPage(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="About"`)

	c, rec = newBackendContext(a, http.MethodPost, "/fizzy/edit/def456", url.Values{
		"title":  {"About us"},
		"slug":   {"about"},
		"body":   {"<p>New text</p>"},
		"layout": {"frontend"},
	})
	c.SetParamNames("uid")
	c.SetParamValues("def456")
	require.NoError(t, a.handleEditPage(c))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	all := a.Store.All()
	require.Len(t, all, 2)
	assert.Equal(t, "def456", all[1][FieldUID])
	assert.Equal(t, "About us", all[1][FieldTitle])
	assert.Equal(t, "frontend", all[1][FieldLayout])
	assert.Equal(t, "false", all[1][FieldIsHomepage])
}

func TestEditUnknownPage(t *testing.T) {
	a := newTestApp(t)

	c, _ := newBackendContext(a, http.MethodGet, "/fizzy/edit/nope", nil)
	c.SetParamNames("uid")
	c.SetParamValues("nope")
	err := a.handleEditPage(c)
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestDeletePage(t *testing.T) {
	a := newTestApp(t)

	c, rec := newBackendContext(a, http.MethodGet, "/fizzy/delete/def456", nil)
	c.SetParamNames("uid")
	c.SetParamValues("def456")
	require.NoError(t, a.handleDeletePage(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Delete page")
	assert.Len(t, a.Store.All(), 2)

	c, rec = newBackendContext(a, http.MethodPost, "/fizzy/delete/def456", url.Values{})
	c.SetParamNames("uid")
	c.SetParamValues("def456")
	require.NoError(t, a.handleDeletePage(c))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/fizzy?msg=Page+deleted.", rec.Header().Get(echo.HeaderLocation))

	_, err := a.Store.FindByID("def456")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPageViewsAreCounted(t *testing.T) {
	a := newTestApp(t, func(o *Options) {
		o.AnalyticsEnabled = true
		o.AnalyticsDatabasePath = filepath.Join(o.RootDir, "data", "analytics.db")
	})

	serve(a, http.MethodGet, "/", nil)
	serve(a, http.MethodGet, "/about", nil)
	serve(a, http.MethodGet, "/about", nil)

	counts, err := a.analyticsStore.ViewCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts["abc123"])
	assert.Equal(t, 2, counts["def456"])
}

func TestFormRecord(t *testing.T) {
	a := newTestApp(t)

	c, _ := newBackendContext(a, http.MethodPost, "/", url.Values{
		"title":    {"  My First Post! "},
		"body":     {"  keep spaces  "},
		"homepage": {"1"},
	})
	rec, err := FormRecord(c)
	require.NoError(t, err)
	assert.Equal(t, "My First Post!", rec[FieldTitle])
	assert.Equal(t, "my-first-post", rec[FieldSlug])
	assert.Equal(t, "  keep spaces  ", rec[FieldBody])
	assert.Equal(t, "true", rec[FieldIsHomepage])
	_, ok := rec[FieldLayout]
	assert.False(t, ok)
}

func TestCustomRoutesAndLogger(t *testing.T) {
	dir := t.TempDir()
	copyFixture(t, dir, "config.xml")
	copyFixture(t, dir, "pages.xml")

	a := New(Options{RootDir: dir, AdminPassword: testPassword, SessionSecret: "s"},
		WithLogger(zaptest.NewLogger(t)),
		WithCustomRoutes(func(a *App) {
			a.Echo.GET("/healthz", func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})
		}),
	)
	require.NoError(t, a.Setup())
	t.Cleanup(func() { a.Close() })

	rec := serve(a, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

var locPattern = regexp.MustCompile(`<loc>([^<]+)</loc>`)

func sitemapPaths(t *testing.T, a *App) []string {
	t.Helper()
	rec := serve(a, http.MethodGet, "/sitemap.xml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var paths []string
	for _, m := range locPattern.FindAllStringSubmatch(rec.Body.String(), -1) {
		u, err := url.Parse(m[1])
		require.NoError(t, err)
		paths = append(paths, u.Path)
	}
	return paths
}

func TestSitemapFollowsSlugRoute(t *testing.T) {
	a := newTestAppWithConfig(t, func(cfg string) string {
		return strings.Replace(cfg, `destination="f_by_slug">/:slug<`, `destination="f_by_slug">/p/:slug<`, 1)
	})

	paths := sitemapPaths(t, a)
	assert.Equal(t, []string{"/", "/p/about"}, paths)
	for _, p := range paths {
		rec := serve(a, http.MethodGet, p, nil)
		assert.Equal(t, http.StatusOK, rec.Code, p)
	}

	cookies := login(t, a)
	rec := serve(a, http.MethodGet, "/fizzy", nil, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<a href="/p/about">about</a>`)
}

func TestSitemapWithoutSlugRoute(t *testing.T) {
	a := newTestAppWithConfig(t, func(cfg string) string {
		return strings.Replace(cfg, `<route type="GET" destination="f_by_slug">/:slug</route>`, "", 1)
	})

	assert.Equal(t, []string{"/"}, sitemapPaths(t, a))
	_, ok := a.PagePath("about")
	assert.False(t, ok)
}

func TestShadowedSlugsAreRejected(t *testing.T) {
	a := newTestApp(t)

	for _, slug := range []string{"fizzy", "sitemap.xml"} {
		err := a.Store.Validate(Record{FieldTitle: "T", FieldSlug: slug, FieldBody: "b"}, "")
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "slug %q: got %v", slug, err)
		assert.Equal(t, FieldSlug, verr.Field)
	}

	// Neither a route with a parameter nor the static file prefix hides a slug.
	for _, slug := range []string{"page", "publications"} {
		_, err := a.Store.CreatePage(Record{FieldTitle: slug, FieldSlug: slug, FieldBody: "<p>" + slug + "</p>"})
		require.NoError(t, err, slug)
		rec := serve(a, http.MethodGet, "/"+slug, nil)
		assert.Equal(t, http.StatusOK, rec.Code, slug)
		assert.Contains(t, rec.Body.String(), "<p>"+slug+"</p>", slug)
	}
}

func TestSlugReservationFollowsRoutePrefix(t *testing.T) {
	a := newTestAppWithConfig(t, func(cfg string) string {
		return strings.Replace(cfg, `destination="f_by_slug">/:slug<`, `destination="f_by_slug">/p/:slug<`, 1)
	})

	err := a.Store.Validate(Record{FieldTitle: "T", FieldSlug: "fizzy", FieldBody: "b"}, "")
	assert.NoError(t, err)
}
