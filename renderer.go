package fizzy

import (
	"html"
	"html/template"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/gobuffalo/plush"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
)

// Template file names looked up by the renderer.
const (
	DefaultPageTemplate = "page.plush.html"
	BackendLayout       = "layout.plush.html"
	FrontendLayoutName  = "frontend"
	PageVar             = "page"
	NotFoundView        = "404.plush.html"
)

// Renderer picks templates and layouts and executes them with plush.
// Site templates are read from the views directory on every render, so
// edits show up without a restart.
type Renderer struct {
	views   fs.FS
	builtin fs.FS
	layouts map[string]string
	helpers map[string]any
}

// NewRenderer returns a Renderer over viewsDir. layouts maps layout names
// from the config to template paths relative to viewsDir.
func NewRenderer(viewsDir string, layouts map[string]string) *Renderer {
	return newRenderer(os.DirFS(viewsDir), builtinFS(), layouts)
}

func newRenderer(views, builtin fs.FS, layouts map[string]string) *Renderer {
	if layouts == nil {
		layouts = make(map[string]string)
	}
	r := &Renderer{
		views:   views,
		builtin: builtin,
		layouts: layouts,
		helpers: make(map[string]any),
	}
	r.helpers["excerpt"] = excerpt
	return r
}

// SetHelper makes value available to every template under name.
func (r *Renderer) SetHelper(name string, value any) {
	r.helpers[name] = value
}

// SelectTemplate returns the filesystem and path of the template used for
// rec: its explicit template field, else the site's page.plush.html, else
// the built-in one.
func (r *Renderer) SelectTemplate(rec Record) (fs.FS, string) {
	if t := rec[FieldTemplate]; t != "" {
		return r.views, cleanTemplatePath(t)
	}
	if _, err := fs.Stat(r.views, DefaultPageTemplate); err == nil {
		return r.views, DefaultPageTemplate
	}
	return r.builtin, DefaultPageTemplate
}

// SelectLayout resolves rec's layout field through the configured layout
// names; an undeclared value is used as a template path. "" means none.
func (r *Renderer) SelectLayout(rec Record) string {
	name := rec[FieldLayout]
	if name == "" {
		return ""
	}
	if p, ok := r.layouts[name]; ok {
		return cleanTemplatePath(p)
	}
	return cleanTemplatePath(name)
}

// RenderPage renders rec with its selected template and layout. The record
// is bound to the template as "page".
func (r *Renderer) RenderPage(rec Record, vars map[string]any) (string, error) {
	fsys, view := r.SelectTemplate(rec)
	locals := map[string]any{PageVar: map[string]string(rec)}
	for k, v := range vars {
		locals[k] = v
	}
	layout := r.SelectLayout(rec)
	if layout == "" {
		return r.render(fsys, view, nil, "", locals)
	}
	return r.render(fsys, view, r.views, layout, locals)
}

// RenderFrontend renders frontend/<view> from the views directory inside
// the layout configured as "frontend".
func (r *Renderer) RenderFrontend(view string, vars map[string]any) (string, error) {
	layout := cleanTemplatePath(r.layouts[FrontendLayoutName])
	return r.render(r.views, path.Join("frontend", cleanTemplatePath(view)), r.views, layout, vars)
}

// HasFrontend reports whether the views directory has frontend/<view>.
func (r *Renderer) HasFrontend(view string) bool {
	_, err := fs.Stat(r.views, path.Join("frontend", cleanTemplatePath(view)))
	return err == nil
}

// RenderBackend renders one of the built-in backend views inside the
// built-in backend layout. The template root is switched for this call
// only; r keeps reading the site views afterwards, even on error.
func (r *Renderer) RenderBackend(view string, vars map[string]any) (string, error) {
	return r.render(r.builtin, cleanTemplatePath(view), r.builtin, BackendLayout, vars)
}

func (r *Renderer) render(fsys fs.FS, view string, layoutFS fs.FS, layout string, vars map[string]any) (string, error) {
	ctx := plush.NewContext()
	for k, v := range r.helpers {
		ctx.Set(k, v)
	}
	for k, v := range vars {
		ctx.Set(k, v)
	}
	content, err := execTemplate(fsys, view, ctx)
	if err != nil {
		return "", err
	}
	if layout == "" {
		return content, nil
	}
	ctx.Set("yield", template.HTML(content))
	return execTemplate(layoutFS, layout, ctx)
}

func execTemplate(fsys fs.FS, name string, ctx *plush.Context) (string, error) {
	src, err := fs.ReadFile(fsys, name)
	if err != nil {
		return "", errors.Wrapf(err, "read template %s", name)
	}
	t, err := plush.Parse(string(src))
	if err != nil {
		return "", errors.Wrapf(err, "parse template %s", name)
	}
	out, err := t.Exec(ctx)
	if err != nil {
		return "", errors.Wrapf(err, "execute template %s", name)
	}
	return out, nil
}

// cleanTemplatePath turns a configured template path into a path relative
// to the template root; ".." segments cannot climb out of it.
func cleanTemplatePath(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

var excerptPolicy = bluemonday.StrictPolicy()

// excerpt strips markup from body and shortens it to n runes.
func excerpt(body string, n int) string {
	text := strings.Join(strings.Fields(html.UnescapeString(excerptPolicy.Sanitize(body))), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
