package fizzy

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

// Render writes a templ component as an HTTP 200 HTML response.
func Render(c echo.Context, cmp templ.Component) error {
	return RenderStatus(c, http.StatusOK, cmp)
}

// RenderStatus writes a templ component with a specific HTTP status code.
func RenderStatus(c echo.Context, code int, cmp templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)
	return cmp.Render(c.Request().Context(), c.Response().Writer)
}

// renderPage runs a store record through the page renderer.
func (a *App) renderPage(c echo.Context, rec Record) error {
	out, err := a.Renderer.RenderPage(rec, map[string]any{
		"path": c.Request().URL.Path,
	})
	if err != nil {
		return err
	}
	return c.HTML(http.StatusOK, out)
}

// renderBackend renders a built-in backend view with the values every
// backend template expects.
func (a *App) renderBackend(c echo.Context, code int, view string, vars map[string]any) error {
	locals := map[string]any{
		"csrf":       CsrfToken(c),
		"backendURL": a.BackendURL(),
		"msg":        "",
		"error":      "",
	}
	for k, v := range vars {
		locals[k] = v
	}
	out, err := a.Renderer.RenderBackend(view, locals)
	if err != nil {
		return err
	}
	return c.HTML(code, out)
}
