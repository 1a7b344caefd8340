package fizzy

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// BackendPlaceholder is replaced by the configured backend switch in every
// route pattern.
const BackendPlaceholder = "BACKEND"

// Dispatcher is the part of *echo.Echo and *echo.Group the route table
// needs.
type Dispatcher interface {
	Add(method, path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Route
}

// Registration records one route handed to the dispatcher.
type Registration struct {
	Method      string
	Path        string
	Destination string
	Backend     bool
}

// BuildRoutes registers every route declared in cfg with d. BOTH routes
// register GET then POST; unrecognized types are skipped. Routes under the
// backend switch are wrapped in backendMW.
func BuildRoutes(cfg *Config, d Dispatcher, actions map[string]echo.HandlerFunc, backendMW ...echo.MiddlewareFunc) ([]Registration, error) {
	backendSwitch := cfg.BackendSwitch()
	var regs []Registration
	for _, decl := range cfg.Routes() {
		pattern := strings.ReplaceAll(decl.Pattern, BackendPlaceholder, backendSwitch)

		var methods []string
		switch strings.ToUpper(strings.TrimSpace(decl.Type)) {
		case "GET":
			methods = []string{http.MethodGet}
		case "POST":
			methods = []string{http.MethodPost}
		case "BOTH":
			methods = []string{http.MethodGet, http.MethodPost}
		default:
			continue
		}

		handler, ok := actions[decl.Destination]
		if !ok {
			return nil, &ConfigError{
				Path: cfg.Path(),
				Err:  errors.Errorf("route %s: unknown destination %q", decl.Pattern, decl.Destination),
			}
		}

		backend := isBackendPath(pattern, backendSwitch)
		var mw []echo.MiddlewareFunc
		if backend {
			mw = backendMW
		}
		for _, m := range methods {
			d.Add(m, pattern, handler, mw...)
			regs = append(regs, Registration{
				Method:      m,
				Path:        pattern,
				Destination: decl.Destination,
				Backend:     backend,
			})
		}
	}
	return regs, nil
}

func isBackendPath(pattern, backendSwitch string) bool {
	if backendSwitch == "" {
		return false
	}
	prefix := "/" + backendSwitch
	return pattern == prefix || strings.HasPrefix(pattern, prefix+"/")
}
