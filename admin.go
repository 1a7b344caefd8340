package fizzy

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (a *App) requireEditor(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !IsEditor(c) {
			return c.Redirect(http.StatusSeeOther, a.BackendURL()+"/login")
		}
		return next(c)
	}
}

func (a *App) handleLoginForm(c echo.Context) error {
	if IsEditor(c) {
		return c.Redirect(http.StatusSeeOther, a.BackendURL())
	}
	return Render(c, a.Views.Login(a.BackendURL()+"/login", CsrfToken(c), false))
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Options.AdminPassword)) == 1 {
		if err := startEditorSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, a.BackendURL())
	}
	a.loginLimiter.Record(ip)
	a.Log.Info("backend login failed", zap.String("ip", ip))
	return RenderStatus(c, http.StatusUnauthorized, a.Views.Login(a.BackendURL()+"/login", CsrfToken(c), true))
}

func (a *App) handleLogout(c echo.Context) error {
	if err := endEditorSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, a.BackendURL()+"/login")
}

func (a *App) handleDashboard(c echo.Context) error {
	pages := a.Store.All()
	var counts map[string]int
	if a.analyticsStore != nil {
		var err error
		counts, err = a.analyticsStore.ViewCounts(c.Request().Context())
		if err != nil {
			a.Log.Warn("load view counts", zap.Error(err))
		}
	}
	rows := make([]dashboardRow, 0, len(pages))
	for _, p := range pages {
		var link string
		if pagePath, ok := a.PagePath(p[FieldSlug]); ok && p[FieldSlug] != "" {
			link = (&url.URL{Path: pagePath}).String()
		}
		rows = append(rows, dashboardRow{
			UID:      p[FieldUID],
			URL:      link,
			Title:    p[FieldTitle],
			Slug:     p[FieldSlug],
			Body:     p[FieldBody],
			Homepage: p[FieldIsHomepage] == "true",
			Views:    counts[p[FieldUID]],
		})
	}
	return a.renderBackend(c, http.StatusOK, "dashboard.plush.html", map[string]any{
		"rows": rows,
		"msg":  c.QueryParam("msg"),
	})
}

func (a *App) handleAddPage(c echo.Context) error {
	action := a.BackendURL() + "/add"
	if c.Request().Method != http.MethodPost {
		return a.renderForm(c, http.StatusOK, "New page", action, pageForm{}, "")
	}

	rec, err := FormRecord(c)
	if err != nil {
		return err
	}
	node, err := a.Store.CreatePage(rec)
	if err != nil {
		return a.rejectForm(c, "New page", action, rec, err)
	}
	a.Log.Info("page added", zap.String("uid", node.SelectAttr(FieldUID)), zap.String("slug", rec[FieldSlug]))
	return a.redirectDashboard(c, "Page saved.")
}

func (a *App) handleEditPage(c echo.Context) error {
	uid := c.Param("uid")
	action := a.BackendURL() + "/edit/" + url.PathEscape(uid)
	node, err := a.Store.FindByID(uid)
	if err != nil {
		return lookupHTTPError(err)
	}
	if c.Request().Method != http.MethodPost {
		return a.renderForm(c, http.StatusOK, "Edit page", action, formFromRecord(ToRecord(node)), "")
	}

	rec, err := FormRecord(c)
	if err != nil {
		return err
	}
	if err := a.Store.UpdatePage(uid, rec); err != nil {
		if errors.Is(err, ErrNotFound) {
			return lookupHTTPError(err)
		}
		return a.rejectForm(c, "Edit page", action, rec, err)
	}
	a.Log.Info("page updated", zap.String("uid", uid), zap.String("slug", rec[FieldSlug]))
	return a.redirectDashboard(c, "Page saved.")
}

func (a *App) handleDeletePage(c echo.Context) error {
	uid := c.Param("uid")
	node, err := a.Store.FindByID(uid)
	if err != nil {
		return lookupHTTPError(err)
	}
	if c.Request().Method != http.MethodPost {
		return a.renderBackend(c, http.StatusOK, "delete.plush.html", map[string]any{
			"form":   formFromRecord(ToRecord(node)),
			"action": a.BackendURL() + "/delete/" + url.PathEscape(uid),
		})
	}
	if err := a.Store.Delete(uid); err != nil {
		return lookupHTTPError(err)
	}
	a.Log.Info("page deleted", zap.String("uid", uid))
	return a.redirectDashboard(c, "Page deleted.")
}

func (a *App) redirectDashboard(c echo.Context, msg string) error {
	return c.Redirect(http.StatusSeeOther, a.BackendURL()+"?msg="+url.QueryEscape(msg))
}

func (a *App) renderForm(c echo.Context, code int, heading, action string, form pageForm, problem string) error {
	var layouts []layoutOption
	all := a.Config.Layouts()
	for _, name := range a.Config.LayoutNames() {
		layouts = append(layouts, layoutOption{Name: name, Path: all[name]})
	}
	return a.renderBackend(c, code, "form.plush.html", map[string]any{
		"heading": heading,
		"action":  action,
		"form":    form,
		"layouts": layouts,
		"error":   problem,
	})
}

func (a *App) rejectForm(c echo.Context, heading, action string, rec Record, err error) error {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	return a.renderForm(c, http.StatusBadRequest, heading, action, formFromRecord(rec), verr.Error())
}

// FormRecord builds a page record from a submitted backend form. The
// homepage checkbox maps to isHomepage "true" or "false".
func FormRecord(c echo.Context) (Record, error) {
	form, err := c.FormParams()
	if err != nil {
		return nil, errors.Wrap(err, "parse form")
	}
	rec := Record{
		FieldTitle:      strings.TrimSpace(form.Get("title")),
		FieldSlug:       strings.TrimSpace(form.Get("slug")),
		FieldBody:       form.Get("body"),
		FieldIsHomepage: "false",
	}
	if rec[FieldSlug] == "" {
		rec[FieldSlug] = Slugify(rec[FieldTitle])
	}
	if form.Has("homepage") {
		rec[FieldIsHomepage] = "true"
	}
	if v := strings.TrimSpace(form.Get("layout")); v != "" {
		rec[FieldLayout] = v
	}
	if v := strings.TrimSpace(form.Get("template")); v != "" {
		rec[FieldTemplate] = v
	}
	return rec, nil
}
