package fizzy

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// renderSitemap lists the homepage route plus every other page at the
// path of the configured by-slug route. Without a by-slug route only the
// homepage is listed.
func (a *App) renderSitemap(c echo.Context, pages []Record) error {
	var urls []sitemapURL
	if home, ok := a.HomePath(); ok {
		urls = append(urls, sitemapURL{Loc: BuildURL(a.Options.SiteURL, home)})
	}
	for _, p := range pages {
		if p[FieldIsHomepage] == "true" || p[FieldSlug] == "" {
			continue
		}
		pagePath, ok := a.PagePath(p[FieldSlug])
		if !ok {
			break
		}
		urls = append(urls, sitemapURL{Loc: BuildURL(a.Options.SiteURL, pagePath)})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
