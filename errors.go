package fizzy

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is matched (via errors.Is) by every failed page lookup.
var ErrNotFound = errors.New("page not found")

// ConfigError is returned when the config file is missing, unreadable or
// not well-formed, and when it declares something the app cannot serve.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("fizzy: config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// PagesLoadError is the pages-file counterpart of ConfigError.
type PagesLoadError struct {
	Path string
	Err  error
}

func (e *PagesLoadError) Error() string {
	return fmt.Sprintf("fizzy: pages %s: %v", e.Path, e.Err)
}

func (e *PagesLoadError) Unwrap() error { return e.Err }

// LookupError reports a query that matched no page.
type LookupError struct {
	Field string
	Value string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("fizzy: no page with %s %q", e.Field, e.Value)
}

func (e *LookupError) Is(target error) bool { return target == ErrNotFound }

// PersistenceError is returned by Save when the pages file could not be
// written or the produced document did not validate. A non-nil Rollback
// means the in-memory pages could not be restored and now differ from the
// file on disk.
type PersistenceError struct {
	Path     string
	Err      error
	Rollback error
}

func (e *PersistenceError) Error() string {
	if e.Rollback != nil {
		return fmt.Sprintf("fizzy: save %s: %v (rollback failed, pages in memory differ from disk: %v)", e.Path, e.Err, e.Rollback)
	}
	return fmt.Sprintf("fizzy: save %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError describes a submitted page that cannot be stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
