package fizzy

import (
	"net/http"
	"strings"
)

// Destinations whose routes the app links to.
const (
	DestHomepage = "f_homepage"
	DestBySlug   = "f_by_slug"
)

func (a *App) routePattern(destination string) (string, bool) {
	for _, r := range a.Routes {
		if r.Method == http.MethodGet && r.Destination == destination {
			return r.Path, true
		}
	}
	return "", false
}

// PagePath returns the site path that serves the page with slug, following
// the first GET route bound to f_by_slug. ok is false when there is none.
func (a *App) PagePath(slug string) (string, bool) {
	pattern, ok := a.routePattern(DestBySlug)
	if !ok {
		return "", false
	}
	return a.Options.BaseURL + fillParams(pattern, slug), true
}

// HomePath returns the site path of the f_homepage route.
func (a *App) HomePath() (string, bool) {
	pattern, ok := a.routePattern(DestHomepage)
	if !ok {
		return "", false
	}
	return a.Options.BaseURL + pattern, true
}

// fillParams puts value into every :param segment of pattern.
func fillParams(pattern, value string) string {
	segs := strings.Split(pattern, "/")
	for i, seg := range segs {
		if strings.HasPrefix(seg, ":") {
			segs[i] = value
		}
	}
	return strings.Join(segs, "/")
}

// ShadowedSlugs lists the slugs a by-slug route with slugPattern can never
// serve because one of paths is a static route at the same place. Only a
// pattern ending in a :param segment can be shadowed.
func ShadowedSlugs(slugPattern string, paths []string) []string {
	i := strings.LastIndex(slugPattern, "/")
	if i < 0 || !strings.HasPrefix(slugPattern[i+1:], ":") {
		return nil
	}
	prefix := slugPattern[:i+1]

	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if rest == "" || strings.ContainsAny(rest, "/:*") || seen[rest] {
			continue
		}
		seen[rest] = true
		out = append(out, rest)
	}
	return out
}

// reserveShadowedSlugs tells the store which slugs the route table hides.
func (a *App) reserveShadowedSlugs() {
	pattern, ok := a.routePattern(DestBySlug)
	if !ok {
		return
	}
	var paths []string
	for _, r := range a.Echo.Routes() {
		paths = append(paths, r.Path)
	}
	slugs := ShadowedSlugs(pattern, paths)
	if strings.LastIndex(pattern, "/") == 0 {
		slugs = append(slugs, a.Config.BackendSwitch())
	}
	a.Store.Reserve(slugs...)
}
