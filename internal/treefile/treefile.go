package treefile

import (
	"fmt"
	"os"
	"sort"
	"text/template"

	"github.com/vango-dev/vprompt/internal/errors"
	"github.com/vango-dev/vprompt/pkg/ptree"
)

// Position is the document position an element was declared at. It is
// stored as the element's Source.
type Position struct {
	File   string
	Line   int
	Column int
}

// String returns the position as file:line:column.
func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

type kind uint8

const (
	kindText kind = iota + 1
	kindFragment
	kindChunk
	kindComponent
	kindEach
	kindSlot
)

// builtins are the element kinds a component name must not shadow.
var builtins = map[string]struct{}{
	"text":      {},
	"fragment":  {},
	"chunk":     {},
	"component": {},
	"each":      {},
	"slot":      {},
}

// tmpl is an element template. Templates are evaluated against a scope
// every time their component renders.
type tmpl struct {
	kind     kind
	pos      Position
	text     *template.Template
	comp     *definition
	props    map[string]any // string values are *template.Template
	key      *template.Template
	weight   *float64
	children []*tmpl
	each     string
	as       string
	body     *tmpl
}

// definition is a component declared under components:.
type definition struct {
	name       string
	comp       *ptree.Component
	state      map[string]any
	stateNames []string
	data       string
	max        int
	body       *tmpl
}

// Document is a parsed tree document.
type Document struct {
	Name       string
	root       *tmpl
	components map[string]*definition
}

// LoadFile reads and parses the tree document at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("VP100").
			WithDetail("The tree document could not be read.").
			Wrap(err)
	}
	return Parse(path, data)
}

// Element builds the root element of the document. Every call returns a
// new element tree sharing the document's components.
func (d *Document) Element() (*ptree.Element, error) {
	els, err := d.root.build(scope{}, nil)
	if err != nil {
		return nil, err
	}
	if len(els) == 1 {
		return els[0], nil
	}
	return ptree.Fragment(els), nil
}

// Component returns the component declared under name.
func (d *Document) Component(name string) (*ptree.Component, bool) {
	def, ok := d.components[name]
	if !ok {
		return nil, false
	}
	return def.comp, true
}

// ComponentNames returns the declared component names, sorted.
func (d *Document) ComponentNames() []string {
	names := make([]string, 0, len(d.components))
	for name := range d.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
