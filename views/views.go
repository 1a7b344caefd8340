// Package views holds the templ components fizzy renders outside the site
// templates.
package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const head = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>`

func page(title string, body func(w io.Writer) error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, head+templ.EscapeString(title)+"</title>\n</head>\n<body>\n"); err != nil {
			return err
		}
		if err := body(w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n</body>\n</html>\n")
		return err
	})
}

// Login is the backend sign-in form. action is the login URL.
func Login(action, csrfToken string, showError bool) templ.Component {
	return page("Log in", func(w io.Writer) error {
		out := `<h1>Log in</h1>`
		if showError {
			out += `<p class="error">Wrong password.</p>`
		}
		out += `<form method="post" action="` + templ.EscapeString(action) + `">` +
			`<input type="hidden" name="_csrf" value="` + templ.EscapeString(csrfToken) + `">` +
			`<label>Password <input type="password" name="password" autofocus></label>` +
			`<button type="submit">Log in</button></form>`
		_, err := io.WriteString(w, out)
		return err
	})
}

// NotFound is rendered with status 404.
func NotFound() templ.Component {
	return page("Not found", func(w io.Writer) error {
		_, err := io.WriteString(w, `<h1>Not found</h1><p>The page you asked for does not exist.</p>`)
		return err
	})
}

// ServerError is rendered for any 5xx.
func ServerError() templ.Component {
	return page("Server error", func(w io.Writer) error {
		_, err := io.WriteString(w, `<h1>Something went wrong</h1><p>Please try again later.</p>`)
		return err
	})
}
