package fizzy

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const (
	sessionName      = "fizzy_session"
	sessionKeyEditor = "editor"
	sessionKeySince  = "since"
	sessionMaxAge    = 12 * time.Hour
)

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Options.SessionSecret))
	store.Options = &sessions.Options{
		Path:     a.BackendURL(),
		HttpOnly: true,
		MaxAge:   int(sessionMaxAge / time.Second),
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Options.CookieSecure,
	}
	return store
}

// IsEditor reports whether the request carries a live backend session.
func IsEditor(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	ok, _ := sess.Values[sessionKeyEditor].(bool)
	since, _ := sess.Values[sessionKeySince].(int64)
	return ok && time.Since(time.Unix(since, 0)) < sessionMaxAge
}

func startEditorSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values[sessionKeyEditor] = true
	sess.Values[sessionKeySince] = time.Now().Unix()
	return sess.Save(c.Request(), c.Response())
}

func endEditorSession(c echo.Context) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	delete(sess.Values, sessionKeyEditor)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request(), c.Response())
}
