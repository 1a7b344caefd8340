package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/fizzy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the site",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("addr", "a", fizzy.EnvOr("FIZZY_ADDR", ":3000"), "listen address")
	f.String("base-url", fizzy.EnvOr("FIZZY_BASE_URL", ""), "URL prefix used in generated links")
	f.String("site-url", fizzy.EnvOr("FIZZY_SITE_URL", "http://localhost:3000"), "canonical site URL for the sitemap")
	f.Bool("cookie-secure", envBool("FIZZY_COOKIE_SECURE"), "mark session cookies Secure (HTTPS)")
	f.Bool("analytics", envBool("FIZZY_ANALYTICS"), "count page views")
	f.String("analytics-db", fizzy.EnvOr("FIZZY_ANALYTICS_DB", ""), "analytics SQLite path (default <root>/data/analytics.db)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, sync := logInject()
	defer sync()

	f := cmd.Flags()
	addr, _ := f.GetString("addr")
	baseURL, _ := f.GetString("base-url")
	siteURL, _ := f.GetString("site-url")
	cookieSecure, _ := f.GetBool("cookie-secure")
	analyticsEnabled, _ := f.GetBool("analytics")
	analyticsDB, _ := f.GetString("analytics-db")

	app := fizzy.New(fizzy.Options{
		RootDir:               rootDir,
		BaseURL:               baseURL,
		SiteURL:               siteURL,
		Addr:                  addr,
		AdminPassword:         os.Getenv("FIZZY_ADMIN_PASSWORD"),
		SessionSecret:         os.Getenv("FIZZY_SESSION_SECRET"),
		CookieSecure:          cookieSecure,
		AnalyticsEnabled:      analyticsEnabled,
		AnalyticsDatabasePath: analyticsDB,
	}, fizzy.WithLogger(logger))
	defer app.Close()

	if err := app.Setup(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- app.Start()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
