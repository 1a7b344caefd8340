package fizzy

import (
	"embed"
	"io/fs"
)

// BuiltinTemplates holds the templates shipped with fizzy: the fallback
// page template and the backend views with their layout.
//
//go:embed templates/*.plush.html
var BuiltinTemplates embed.FS

func builtinFS() fs.FS {
	sub, err := fs.Sub(BuiltinTemplates, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}
