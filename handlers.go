package fizzy

import (
	"net/http"

	"github.com/antchfx/xmlquery"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eringen/fizzy/analytics"
)

func (a *App) handleHomepage(c echo.Context) error {
	return a.showPage(c, func() (*xmlquery.Node, error) {
		return a.Store.Homepage()
	})
}

func (a *App) handleBySlug(c echo.Context) error {
	slug := c.Param("slug")
	return a.showPage(c, func() (*xmlquery.Node, error) {
		return a.Store.FindBySlug(slug)
	})
}

func (a *App) handleByUID(c echo.Context) error {
	uid := c.Param("uid")
	return a.showPage(c, func() (*xmlquery.Node, error) {
		return a.Store.FindByID(uid)
	})
}

func (a *App) showPage(c echo.Context, find func() (*xmlquery.Node, error)) error {
	node, err := find()
	if err != nil {
		return lookupHTTPError(err)
	}
	rec := ToRecord(node)
	a.countView(c, rec[FieldUID])
	return a.renderPage(c, rec)
}

// lookupHTTPError turns ErrNotFound into a 404; anything else stays a 500.
func lookupHTTPError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	}
	return err
}

func (a *App) countView(c echo.Context, uid string) {
	if a.analyticsStore == nil {
		return
	}
	ua := c.Request().UserAgent()
	if analytics.IsBot(ua) {
		return
	}
	v := analytics.View{
		UID:       uid,
		Path:      c.Request().URL.Path,
		VisitorID: analytics.GenerateVisitorID(c.RealIP(), ua),
	}
	if err := a.analyticsStore.SaveView(c.Request().Context(), v); err != nil {
		a.Log.Warn("record page view", zap.String("uid", uid), zap.Error(err))
	}
}

func (a *App) handleSitemap(c echo.Context) error {
	return a.renderSitemap(c, a.Store.All())
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		a.renderNotFound(c)
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Log.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err),
		)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

// renderNotFound prefers the site's frontend/404.plush.html and falls back
// to the built-in component.
func (a *App) renderNotFound(c echo.Context) {
	if a.Renderer != nil && a.Renderer.HasFrontend(NotFoundView) {
		out, err := a.Renderer.RenderFrontend(NotFoundView, map[string]any{
			PageVar: map[string]string{FieldTitle: "Not found"},
			"path":  c.Request().URL.Path,
		})
		if err == nil {
			_ = c.HTML(http.StatusNotFound, out)
			return
		}
		a.Log.Warn("render site 404 page", zap.Error(err))
	}
	_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
}
