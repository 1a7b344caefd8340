package fizzy

import (
	"github.com/a-h/templ"

	"github.com/eringen/fizzy/views"
)

// ViewFuncs holds the templ components for pages that exist outside the
// site templates: the backend login and the error pages.
type ViewFuncs struct {
	Login       func(action, csrfToken string, showError bool) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// DefaultViews returns the built-in components.
func DefaultViews() ViewFuncs {
	return ViewFuncs{
		Login:       views.Login,
		NotFound:    views.NotFound,
		ServerError: views.ServerError,
	}
}

// pageForm is the editable view of a page bound to form.plush.html.
type pageForm struct {
	UID      string
	Title    string
	Slug     string
	Body     string
	Layout   string
	Template string
	Homepage bool
}

func formFromRecord(rec Record) pageForm {
	return pageForm{
		UID:      rec[FieldUID],
		Title:    rec[FieldTitle],
		Slug:     rec[FieldSlug],
		Body:     rec[FieldBody],
		Layout:   rec[FieldLayout],
		Template: rec[FieldTemplate],
		Homepage: rec[FieldIsHomepage] == "true",
	}
}

// layoutOption is one entry of the layout select box.
type layoutOption struct {
	Name string
	Path string
}

// dashboardRow is one page line on the backend dashboard.
type dashboardRow struct {
	UID      string
	URL      string // public page path, "" when no route serves it
	Title    string
	Slug     string
	Body     string
	Homepage bool
	Views    int
}
