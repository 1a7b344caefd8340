// Package fizzy is a micro CMS. It reads a route table, layouts and its
// environment from an XML config file, keeps pages in an XML pages file,
// and renders them through plush templates. Public readers get the
// frontend routes; editors log in to the backend routes, which live under
// the configured backend switch.
package fizzy

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eringen/fizzy/analytics"
)

// App wires together the config, page store, renderer and HTTP stack.
// It is the single process-scoped context every handler reads from.
type App struct {
	Options  Options
	Config   *Config
	Store    *Store
	Renderer *Renderer
	Echo     *echo.Echo
	Log      *zap.Logger
	Views    ViewFuncs

	// Routes lists what the config route table registered, in order.
	Routes []Registration

	loginLimiter   *LoginLimiter
	analyticsStore *analytics.Store
	stopCleanup    func()
	customRoutes   []func(*App)
}

// New creates an App. Nothing is loaded until Setup.
func New(opts Options, options ...Option) *App {
	opts.setDefaults()

	a := &App{
		Options: opts,
		Echo:    echo.New(),
		Log:     zap.NewNop(),
		Views:   DefaultViews(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range options {
		opt(a)
	}
	return a
}

// Setup loads the config and pages files, then builds middleware and the
// route table. Any error here means the site cannot be served.
func (a *App) Setup() error {
	if a.Options.AdminPassword == "" {
		return errors.New("fizzy: AdminPassword is required")
	}
	if a.Options.SessionSecret == "" {
		return errors.New("fizzy: SessionSecret is required")
	}

	cfg, err := LoadConfig(a.Options.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.BackendSwitch() == "" {
		return &ConfigError{Path: cfg.Path(), Err: errors.New("backendSwitch is required")}
	}
	a.Config = cfg
	a.Echo.Debug = cfg.Env() == "development"

	store, err := LoadStore(a.Options.PagesPath)
	if err != nil {
		return err
	}
	a.Store = store

	a.Renderer = NewRenderer(a.Options.ViewsDir, cfg.Layouts())
	a.Renderer.SetHelper("baseURL", a.Options.BaseURL)
	a.Renderer.SetHelper("backendURL", a.BackendURL())

	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if a.Options.AnalyticsEnabled {
		as, err := analytics.NewStore(a.Options.AnalyticsDatabasePath)
		if err != nil {
			return errors.Wrap(err, "fizzy: init analytics")
		}
		if err := analytics.InitSalt(as); err != nil {
			return errors.Wrap(err, "fizzy: init analytics salt")
		}
		a.analyticsStore = as
		a.stopCleanup = as.StartCleanupScheduler(365, 24*time.Hour)
	}

	a.setupMiddleware()
	if err := a.setupRoutes(); err != nil {
		return err
	}
	for _, fn := range a.customRoutes {
		fn(a)
	}
	a.reserveShadowedSlugs()

	a.Log.Info("site loaded",
		zap.String("config", cfg.Path()),
		zap.String("pages", store.Path()),
		zap.String("env", cfg.Env()),
		zap.Int("routes", len(a.Routes)),
	)
	return nil
}

// Start serves HTTP until the server is shut down.
func (a *App) Start() error {
	a.Log.Info("listening", zap.String("addr", a.Options.Addr))
	if err := a.Echo.Start(a.Options.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Close()
	}
	if a.stopCleanup != nil {
		a.stopCleanup()
	}
	if a.analyticsStore != nil {
		return a.analyticsStore.Close()
	}
	return nil
}

// BackendURL is the base URL joined with the backend switch.
func (a *App) BackendURL() string {
	if a.Config == nil {
		return a.Options.BaseURL
	}
	return a.Options.BaseURL + "/" + a.Config.BackendSwitch()
}

func (a *App) backendPath(elem ...string) string {
	return path.Join(append([]string{"/", a.Config.BackendSwitch()}, elem...)...)
}

// ActionNames lists the route destinations the config may use.
var ActionNames = []string{
	DestHomepage, DestBySlug, "f_by_uid",
	"b_dashboard", "b_add_page", "b_edit_page", "b_delete_page",
}

func (a *App) actions() map[string]echo.HandlerFunc {
	return map[string]echo.HandlerFunc{
		DestHomepage:    a.handleHomepage,
		DestBySlug:      a.handleBySlug,
		"f_by_uid":      a.handleByUID,
		"b_dashboard":   a.handleDashboard,
		"b_add_page":    a.handleAddPage,
		"b_edit_page":   a.handleEditPage,
		"b_delete_page": a.handleDeletePage,
	}
}

func (a *App) setupRoutes() error {
	e := a.Echo

	e.Static("/public/", a.Options.PublicDir)
	e.GET("/sitemap.xml", a.handleSitemap)

	e.GET(a.backendPath("login"), a.handleLoginForm)
	e.POST(a.backendPath("login"), a.handleLogin)
	e.POST(a.backendPath("logout"), a.handleLogout)

	regs, err := BuildRoutes(a.Config, e, a.actions(), a.requireEditor)
	if err != nil {
		return err
	}
	a.Routes = regs
	for _, r := range regs {
		a.Log.Debug("route registered",
			zap.String("method", r.Method),
			zap.String("path", r.Path),
			zap.String("destination", r.Destination),
			zap.Bool("backend", r.Backend),
		)
	}
	return nil
}
