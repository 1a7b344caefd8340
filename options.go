package fizzy

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Options holds the process-wide settings fixed at startup.
type Options struct {
	RootDir    string // Site root (default ".")
	ConfigPath string // default <root>/config.xml
	PagesPath  string // default <root>/pages.xml
	ViewsDir   string // default <root>/views
	PublicDir  string // default <root>/public
	BaseURL    string // URL prefix the site is mounted under (default "")
	SiteURL    string // Canonical URL for the sitemap (default "http://localhost:3000")

	Addr string // Listen address (default ":3000")

	AdminPassword string // Required: backend login password
	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	AnalyticsEnabled      bool   // Count page views
	AnalyticsDatabasePath string // default <root>/data/analytics.db
}

func (o *Options) setDefaults() {
	if o.RootDir == "" {
		o.RootDir = "."
	}
	if o.ConfigPath == "" {
		o.ConfigPath = filepath.Join(o.RootDir, "config.xml")
	}
	if o.PagesPath == "" {
		o.PagesPath = filepath.Join(o.RootDir, "pages.xml")
	}
	if o.ViewsDir == "" {
		o.ViewsDir = filepath.Join(o.RootDir, "views")
	}
	if o.PublicDir == "" {
		o.PublicDir = filepath.Join(o.RootDir, "public")
	}
	if o.SiteURL == "" {
		o.SiteURL = "http://localhost:3000"
	}
	if o.Addr == "" {
		o.Addr = ":3000"
	}
	if o.AnalyticsDatabasePath == "" {
		o.AnalyticsDatabasePath = filepath.Join(o.RootDir, "data", "analytics.db")
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger replaces the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithCustomRoutes registers additional routes on the Echo instance after
// the configured route table.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
