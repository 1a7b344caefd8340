package fizzy

import (
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/pkg/errors"
)

// Config is the parsed site config file. It is read-only after LoadConfig.
//
//	<fizzy>
//	  <application>
//	    <env>production</env>
//	    <backendSwitch>fizzy</backendSwitch>
//	    <layouts><layout name="frontend">layout.plush.html</layout></layouts>
//	    <routes><route type="GET" destination="f_homepage">/</route></routes>
//	  </application>
//	</fizzy>
type Config struct {
	path string
	doc  *xmlquery.Node
}

// RouteDecl is one <route> row of the config.
type RouteDecl struct {
	Type        string
	Pattern     string
	Destination string
}

const (
	queryEnv           = "/fizzy/application/env"
	queryBackendSwitch = "/fizzy/application/backendSwitch"
	queryLayouts       = "/fizzy/application/layouts/layout"
	queryRoutes        = "/fizzy/application/routes/route"
)

// LoadConfig reads and parses the config file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	defer f.Close()
	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: errors.Wrap(err, "parse xml")}
	}
	if doc.SelectElement("fizzy") == nil {
		return nil, &ConfigError{Path: path, Err: errors.New("missing <fizzy> root element")}
	}
	return &Config{path: path, doc: doc}, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// Text returns the text of the single node matched by query. Zero matches,
// more than one match and invalid queries all yield "".
func (c *Config) Text(query string) string {
	expr, err := xpath.Compile(query)
	if err != nil {
		return ""
	}
	nodes := xmlquery.QuerySelectorAll(c.doc, expr)
	if len(nodes) != 1 {
		return ""
	}
	return strings.TrimSpace(nodes[0].InnerText())
}

// Env is the configured environment name, lower-cased.
func (c *Config) Env() string {
	return strings.ToLower(c.Text(queryEnv))
}

// BackendSwitch is the URL path segment that prefixes admin routes.
func (c *Config) BackendSwitch() string {
	return strings.Trim(c.Text(queryBackendSwitch), "/")
}

// Layout resolves a layout name to its template path. It returns "" for
// unknown names, and also when the name is declared twice.
func (c *Config) Layout(name string) string {
	return c.Text("/fizzy/application/layouts/layout[@name=" + Literal(name) + "]")
}

// Layouts maps every declared layout name to its template path.
func (c *Config) Layouts() map[string]string {
	layouts := make(map[string]string)
	for _, n := range xmlquery.Find(c.doc, queryLayouts) {
		layouts[n.SelectAttr("name")] = strings.TrimSpace(n.InnerText())
	}
	return layouts
}

// LayoutNames lists layout names in declaration order.
func (c *Config) LayoutNames() []string {
	var names []string
	for _, n := range xmlquery.Find(c.doc, queryLayouts) {
		names = append(names, n.SelectAttr("name"))
	}
	return names
}

// Routes returns the declared routes in config order, placeholders intact.
func (c *Config) Routes() []RouteDecl {
	var routes []RouteDecl
	for _, n := range xmlquery.Find(c.doc, queryRoutes) {
		routes = append(routes, RouteDecl{
			Type:        n.SelectAttr("type"),
			Pattern:     strings.TrimSpace(n.InnerText()),
			Destination: n.SelectAttr("destination"),
		})
	}
	return routes
}
