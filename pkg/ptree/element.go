package ptree

import (
	"fmt"

	"github.com/vango-dev/vprompt/pkg/hooks"
)

// Kind is the element type discriminator.
type Kind uint8

const (
	KindComponent Kind = iota // Function component invocation
	KindFragment              // Grouping without own output
	KindText                  // Text leaf
	KindChunk                 // Grouping elided as one unit
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindComponent:
		return "Component"
	case KindFragment:
		return "Fragment"
	case KindText:
		return "Text"
	case KindChunk:
		return "Chunk"
	default:
		return "Unknown"
	}
}

// Snapshot names of the builtin kinds.
const (
	FragmentName = "f"
	TextName     = "Text"
	ChunkName    = "Chunk"
)

// Reserved prop keys.
const (
	PropKey      = "key"
	PropWeight   = "weight"
	PropSource   = "source"
	PropChildren = "children"
)

// Props holds the props passed to a component.
type Props map[string]any

// RenderFunc renders a component. It returns the component's single child;
// nil means no output. Return a Fragment to produce several children.
type RenderFunc func(s *hooks.Store, props Props) *Element

// Component is a named render function. The *Component pointer is the
// component's type identity.
type Component struct {
	name   string
	render RenderFunc
}

// Define creates a component. Call it once per component type, typically
// in a package-level var.
func Define(name string, render RenderFunc) *Component {
	if name == "" {
		name = "Anonymous"
	}
	return &Component{name: name, render: render}
}

// Name returns the component's display name.
func (c *Component) Name() string {
	return c.name
}

// Render invokes the render function.
func (c *Component) Render(s *hooks.Store, props Props) *Element {
	if c.render == nil {
		return nil
	}
	return c.render(s, props)
}

// Element is one node of a declared prompt tree. Elements are immutable
// once constructed; helpers such as Keyed return copies.
type Element struct {
	Kind     Kind
	Comp     *Component // For KindComponent
	Props    Props      // User props, reserved keys removed
	Children []*Element // Declared children
	Key      string     // Reconciliation key, valid when HasKey
	HasKey   bool
	Weight   *float64 // Elision priority
	Source   any      // Opaque provenance
	Text     string   // For KindText
}

// Name returns the snapshot name of the element.
func (e *Element) Name() string {
	switch e.Kind {
	case KindComponent:
		if e.Comp == nil {
			return "Anonymous"
		}
		return e.Comp.Name()
	case KindFragment:
		return FragmentName
	case KindText:
		return TextName
	case KindChunk:
		return ChunkName
	default:
		return "Unknown"
	}
}

// SameType reports whether a and b have the same type identity: the same
// kind, and for components the same *Component.
func SameType(a, b *Element) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindComponent {
		return a.Comp == b.Comp
	}
	return true
}

// RenderProps returns the props passed to a component's render function:
// the element's props plus its declared children under "children".
func (e *Element) RenderProps() Props {
	props := make(Props, len(e.Props)+1)
	for k, v := range e.Props {
		props[k] = v
	}
	if len(e.Children) > 0 {
		props[PropChildren] = e.Children
	}
	return props
}

// ChildrenOf returns the declared children from a component's props.
func ChildrenOf(props Props) []*Element {
	children, _ := props[PropChildren].([]*Element)
	return children
}

// FormatKey converts a key prop value to its canonical string form.
func FormatKey(key any) string {
	switch k := key.(type) {
	case string:
		return k
	default:
		return formatValue(k)
	}
}

func (e *Element) clone() *Element {
	c := *e
	return &c
}

func formatValue(v any) string {
	if s, ok := textOf(v); ok {
		return s
	}
	return fmt.Sprint(v)
}
