package sleigh

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Element is one node of a parsed specification document.
type Element struct {
	Name     string
	Attrs    []xml.Attr
	Children []*Element
	Content  string
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the named attribute or def when it is absent.
func (e *Element) AttrOr(name, def string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return def
}

// Child returns the first child element called name, or nil.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every child element called name in document order.
func (e *Element) ChildrenNamed(name string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Document is an immutable parsed document.
type Document struct {
	root *Element
}

func (d *Document) Root() *Element { return d.root }

// DocumentStorage owns parsed documents and the root elements registered
// from them, keyed by tag name.
type DocumentStorage struct {
	docs []*Document
	tags map[string]*Element
}

func NewDocumentStorage() *DocumentStorage {
	return &DocumentStorage{tags: make(map[string]*Element)}
}

// ParseDocument parses an XML document and keeps it in the storage.
func (s *DocumentStorage) ParseDocument(r io.Reader) (*Document, error) {
	root, err := parseElementTree(r)
	if err != nil {
		return nil, err
	}
	doc := &Document{root: root}
	s.docs = append(s.docs, doc)
	return doc, nil
}

// RegisterTag makes el retrievable by its tag name.
func (s *DocumentStorage) RegisterTag(el *Element) error {
	if el == nil || el.Name == "" {
		return fmt.Errorf("%w: cannot register empty element", ErrParse)
	}
	if _, dup := s.tags[el.Name]; dup {
		return fmt.Errorf("%w: tag <%s> registered twice", ErrParse, el.Name)
	}
	s.tags[el.Name] = el
	return nil
}

// GetTag returns the registered element called name, or nil.
func (s *DocumentStorage) GetTag(name string) *Element {
	return s.tags[name]
}

// Documents returns the parsed documents in load order.
func (s *DocumentStorage) Documents() []*Document {
	return s.docs
}

// loadMu serializes every document parse and tag registration in the process.
var loadMu sync.Mutex

// LoadDocument parses r and registers its root element in a new storage.
// Parse and register run under a process-wide lock.
func LoadDocument(r io.Reader) (*DocumentStorage, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	store := NewDocumentStorage()
	doc, err := store.ParseDocument(r)
	if err != nil {
		return nil, err
	}
	if err := store.RegisterTag(doc.Root()); err != nil {
		return nil, err
	}
	return store, nil
}

// LoadDocumentString parses an inline document.
func LoadDocumentString(s string) (*DocumentStorage, error) {
	return LoadDocument(strings.NewReader(s))
}

// LoadDocumentFile reads path and parses it. The file is read before the
// load lock is taken.
func LoadDocumentFile(path string) (*DocumentStorage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read specification: %w", err)
	}
	store, err := LoadDocument(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

func parseElementTree(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	var (
		root  *Element
		stack []*Element
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name.Local, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrParse)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Content += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}
	return root, nil
}
