package fizzy

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Page element and field names as they appear in the pages file.
const (
	FieldUID        = "uid"
	FieldIsHomepage = "isHomepage"
	FieldTitle      = "title"
	FieldSlug       = "slug"
	FieldBody       = "body"
	FieldLayout     = "layout"
	FieldTemplate   = "template"
)

var (
	exprAllPages = xpath.MustCompile("/pages/page")
	exprHomepage = xpath.MustCompile("/pages/page[@isHomepage='true']")
)

// Record is the flat field-name to value view of a page node, used for
// rendering and form handling.
type Record map[string]string

// Store holds the in-memory pages document. Lookups take a read lock;
// Add, Replace and Delete mutate under the write lock and commit to disk
// through Save before returning.
type Store struct {
	path string

	mu       sync.RWMutex
	doc      *xmlquery.Node
	reserved map[string]bool
}

// LoadStore parses the pages file at path.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PagesLoadError{Path: path, Err: err}
	}
	doc, err := parsePages(data)
	if err != nil {
		return nil, &PagesLoadError{Path: path, Err: err}
	}
	return &Store{path: path, doc: doc}, nil
}

func parsePages(data []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "parse xml")
	}
	if doc.SelectElement("pages") == nil {
		return nil, errors.New("missing <pages> root element")
	}
	return doc, nil
}

// Path returns the backing pages file.
func (s *Store) Path() string { return s.path }

// Query returns every page element matched by expr, in document order.
// Each %s verb in expr is replaced by the XPath literal of the matching
// arg, so user input never becomes part of the expression.
func (s *Store) Query(expr string, args ...string) ([]*xmlquery.Node, error) {
	compiled, err := compileQuery(expr, args...)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return selectAll(s.doc, compiled), nil
}

// QueryFirst is Query limited to the first match. No match is (nil, nil).
func (s *Store) QueryFirst(expr string, args ...string) (*xmlquery.Node, error) {
	nodes, err := s.Query(expr, args...)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// FindByID returns the page with the given uid. Unknown ids are an error
// matching ErrNotFound, never an empty page.
func (s *Store) FindByID(uid string) (*xmlquery.Node, error) {
	return s.findFirst(FieldUID, "/pages/page[@uid=%s]", uid)
}

// FindBySlug returns the first page whose slug equals slug.
func (s *Store) FindBySlug(slug string) (*xmlquery.Node, error) {
	return s.findFirst(FieldSlug, "/pages/page[slug=%s]", slug)
}

// Homepage returns the first page flagged isHomepage="true".
func (s *Store) Homepage() (*xmlquery.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := xmlquery.QuerySelector(s.doc, exprHomepage); n != nil {
		return n, nil
	}
	return nil, &LookupError{Field: FieldIsHomepage, Value: "true"}
}

func (s *Store) findFirst(field, expr, value string) (*xmlquery.Node, error) {
	n, err := s.QueryFirst(expr, value)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, &LookupError{Field: field, Value: value}
	}
	return n, nil
}

// All projects every page to a Record, in document order.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := selectAll(s.doc, exprAllPages)
	records := make([]Record, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, ToRecord(n))
	}
	return records
}

// ToRecord flattens a page element: child element text by tag name, then
// attributes, so an attribute wins over a child of the same name.
func ToRecord(n *xmlquery.Node) Record {
	rec := make(Record)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			rec[child.Data] = child.InnerText()
		}
	}
	for _, attr := range n.Attr {
		rec[attr.Name.Local] = attr.Value
	}
	return rec
}

// NewNode builds a detached page element from rec. A missing uid gets a
// fresh time-derived one. The body is written as CDATA so markup survives
// verbatim.
func NewNode(rec Record) *xmlquery.Node {
	uid := rec[FieldUID]
	if uid == "" {
		uid = NewUID()
	}
	homepage := "false"
	if rec[FieldIsHomepage] == "true" {
		homepage = "true"
	}

	page := &xmlquery.Node{Type: xmlquery.ElementNode, Data: "page"}
	xmlquery.AddAttr(page, FieldUID, uid)
	xmlquery.AddAttr(page, FieldIsHomepage, homepage)
	appendText(page, FieldTitle, rec[FieldTitle])
	appendText(page, FieldSlug, rec[FieldSlug])

	body := &xmlquery.Node{Type: xmlquery.ElementNode, Data: FieldBody}
	xmlquery.AddChild(body, &xmlquery.Node{Type: xmlquery.CharDataNode, Data: rec[FieldBody]})
	xmlquery.AddChild(page, body)

	if v := rec[FieldLayout]; v != "" {
		appendText(page, FieldLayout, v)
	}
	if v := rec[FieldTemplate]; v != "" {
		appendText(page, FieldTemplate, v)
	}
	return page
}

func appendText(parent *xmlquery.Node, name, value string) {
	el := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
	xmlquery.AddChild(el, &xmlquery.Node{Type: xmlquery.TextNode, Data: value})
	xmlquery.AddChild(parent, el)
}

// NewUID returns an md5 hex digest of a version 1 (time based) UUID.
func NewUID() string {
	sum := md5.Sum([]byte(uuid.Must(uuid.NewUUID()).String()))
	return hex.EncodeToString(sum[:])
}

// Reserve marks slugs that other routes shadow, so Validate rejects them.
func (s *Store) Reserve(slugs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserved == nil {
		s.reserved = make(map[string]bool)
	}
	for _, slug := range slugs {
		if slug != "" {
			s.reserved[slug] = true
		}
	}
}

// Validate checks a submitted record before it is stored. selfUID names
// the page being edited so its own slug does not count as a duplicate.
func (s *Store) Validate(rec Record, selfUID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validateLocked(rec, selfUID)
}

func (s *Store) validateLocked(rec Record, selfUID string) error {
	for _, field := range []string{FieldTitle, FieldSlug, FieldBody} {
		if strings.TrimSpace(rec[field]) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
	}
	if strings.Contains(rec[FieldBody], "]]>") {
		return &ValidationError{Field: FieldBody, Message: `must not contain "]]>"`}
	}
	if strings.ContainsAny(rec[FieldSlug], "/?# ") {
		return &ValidationError{Field: FieldSlug, Message: "must be a single path segment"}
	}
	if s.reserved[rec[FieldSlug]] {
		return &ValidationError{Field: FieldSlug, Message: "is taken by another route"}
	}
	expr, err := compileQuery("/pages/page[slug=%s]", rec[FieldSlug])
	if err != nil {
		return err
	}
	for _, n := range selectAll(s.doc, expr) {
		if n.SelectAttr(FieldUID) != selfUID {
			return &ValidationError{Field: FieldSlug, Message: "is already used by another page"}
		}
	}
	return nil
}

// CreatePage validates rec and appends it as a new page in one step under
// the write lock, so two submits of the same slug cannot both pass.
func (s *Store) CreatePage(rec Record) (*xmlquery.Node, error) {
	page := NewNode(rec)
	err := s.mutate(func(root *xmlquery.Node) error {
		if err := s.validateLocked(rec, ""); err != nil {
			return err
		}
		xmlquery.AddChild(root, page)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// UpdatePage validates rec and replaces the page with the given uid,
// keeping the uid and the page's position.
func (s *Store) UpdatePage(uid string, rec Record) error {
	rec[FieldUID] = uid
	return s.mutate(func(root *xmlquery.Node) error {
		old := s.lookupLocked(uid)
		if old == nil {
			return &LookupError{Field: FieldUID, Value: uid}
		}
		if err := s.validateLocked(rec, uid); err != nil {
			return err
		}
		swapNode(old, NewNode(rec))
		return nil
	})
}

// Add appends page to the document and saves.
func (s *Store) Add(page *xmlquery.Node) error {
	return s.mutate(func(root *xmlquery.Node) error {
		xmlquery.AddChild(root, page)
		return nil
	})
}

// Replace swaps the page with the given uid for page, keeping its position.
func (s *Store) Replace(uid string, page *xmlquery.Node) error {
	return s.mutate(func(root *xmlquery.Node) error {
		old := s.lookupLocked(uid)
		if old == nil {
			return &LookupError{Field: FieldUID, Value: uid}
		}
		swapNode(old, page)
		return nil
	})
}

// Delete removes the page with the given uid and saves.
func (s *Store) Delete(uid string) error {
	return s.mutate(func(root *xmlquery.Node) error {
		old := s.lookupLocked(uid)
		if old == nil {
			return &LookupError{Field: FieldUID, Value: uid}
		}
		xmlquery.RemoveFromTree(old)
		return nil
	})
}

func (s *Store) lookupLocked(uid string) *xmlquery.Node {
	expr, err := compileQuery("/pages/page[@uid=%s]", uid)
	if err != nil {
		return nil
	}
	return xmlquery.QuerySelector(s.doc, expr)
}

// mutate applies fn under the write lock and commits. If the commit fails
// the document is restored to its state before fn.
func (s *Store) mutate(fn func(root *xmlquery.Node) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.doc.OutputXML(true)
	if err := fn(s.doc.SelectElement("pages")); err != nil {
		return err
	}
	if err := s.saveLocked(); err != nil {
		doc, perr := parsePages([]byte(snapshot))
		if perr != nil {
			var pe *PersistenceError
			if errors.As(err, &pe) {
				pe.Rollback = perr
			}
			return err
		}
		s.doc = doc
		return err
	}
	return nil
}

// Save writes the document to a temp file next to the pages file,
// re-parses it to validate, then renames it over the original.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data := []byte(xmlHeader + s.doc.SelectElement("pages").OutputXML(true) + "\n")
	if _, err := parsePages(data); err != nil {
		return &PersistenceError{Path: s.path, Err: errors.Wrap(err, "validate")}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Path: s.path, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}
	if info, err := os.Stat(s.path); err == nil {
		if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
			return cleanup(errors.Wrap(err, "copy file mode"))
		}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: s.path, Err: err}
	}
	return nil
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

func swapNode(old, repl *xmlquery.Node) {
	repl.Parent = old.Parent
	repl.PrevSibling = old.PrevSibling
	repl.NextSibling = old.NextSibling
	if old.PrevSibling != nil {
		old.PrevSibling.NextSibling = repl
	} else if old.Parent != nil {
		old.Parent.FirstChild = repl
	}
	if old.NextSibling != nil {
		old.NextSibling.PrevSibling = repl
	} else if old.Parent != nil {
		old.Parent.LastChild = repl
	}
	old.Parent, old.PrevSibling, old.NextSibling = nil, nil, nil
}
