package treefile

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/vprompt/internal/errors"
	"github.com/vango-dev/vprompt/pkg/ptree"
)

// yamlLine extracts the line number from yaml.v3 syntax errors.
var yamlLine = regexp.MustCompile(`line (\d+)`)

// Parse parses a tree document. name is used in error locations and is
// read again for context lines when it names a file. JSON documents are
// accepted as YAML.
func Parse(name string, data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		e := errors.New("VP100").Wrap(err)
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			line, _ := strconv.Atoi(m[1])
			e = e.WithLocation(name, line, 0)
		}
		return nil, e
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New("VP100").WithDetail("The document is empty.")
	}

	p := &parser{file: name, defs: make(map[string]*definition)}
	return p.document(root.Content[0])
}

type parser struct {
	file string
	defs map[string]*definition
}

func (p *parser) fail(n *yaml.Node, code, detail string) *errors.PromptError {
	return errors.New(code).WithLocation(p.file, n.Line, n.Column).WithDetail(detail)
}

func (p *parser) pos(n *yaml.Node) Position {
	return Position{File: p.file, Line: n.Line, Column: n.Column}
}

// pairs calls fn for each key/value of a mapping node.
func pairs(n *yaml.Node, fn func(k, v *yaml.Node) error) error {
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := fn(n.Content[i], n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) document(n *yaml.Node) (*Document, error) {
	if n.Kind != yaml.MappingNode {
		return nil, p.fail(n, "VP100", "A tree document is a mapping with a root element and optional components.")
	}

	var rootNode, compsNode *yaml.Node
	err := pairs(n, func(k, v *yaml.Node) error {
		switch k.Value {
		case "root":
			rootNode = v
		case "components":
			compsNode = v
		default:
			return p.fail(k, "VP100", fmt.Sprintf("Unknown top-level key %q.", k.Value))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rootNode == nil {
		return nil, p.fail(n, "VP100", "The document has no root element.")
	}
	if compsNode != nil {
		if err := p.components(compsNode); err != nil {
			return nil, err
		}
	}

	root, err := p.element(rootNode, false)
	if err != nil {
		return nil, err
	}
	return &Document{Name: p.file, root: root, components: p.defs}, nil
}

// components declares every component before parsing any template, so
// templates may reference components declared after them.
func (p *parser) components(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return p.fail(n, "VP100", "components must map component names to definitions.")
	}
	err := pairs(n, func(k, _ *yaml.Node) error {
		if _, ok := builtins[k.Value]; ok || k.Value == "" {
			return p.fail(k, "VP102", fmt.Sprintf("%q cannot be used as a component name.", k.Value))
		}
		def := &definition{name: k.Value}
		def.comp = ptree.Define(k.Value, def.render)
		p.defs[k.Value] = def
		return nil
	})
	if err != nil {
		return err
	}
	return pairs(n, func(k, v *yaml.Node) error {
		return p.definition(p.defs[k.Value], v)
	})
}

func (p *parser) definition(def *definition, n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return p.fail(n, "VP100", fmt.Sprintf("Component %s must be a mapping with a render template.", def.name))
	}

	var body *yaml.Node
	err := pairs(n, func(k, v *yaml.Node) error {
		switch k.Value {
		case "state":
			if v.Kind != yaml.MappingNode {
				return p.fail(v, "VP100", "state must map names to initial values.")
			}
			def.state = make(map[string]any)
			return pairs(v, func(sk, sv *yaml.Node) error {
				var val any
				if err := sv.Decode(&val); err != nil {
					return p.fail(sv, "VP100", err.Error())
				}
				def.state[sk.Value] = val
				def.stateNames = append(def.stateNames, sk.Value)
				return nil
			})
		case "data":
			if v.Kind != yaml.ScalarNode || v.Value == "" {
				return p.fail(v, "VP100", "data names the list that receives pumped strings.")
			}
			def.data = v.Value
		case "max":
			if err := v.Decode(&def.max); err != nil || def.max < 0 {
				return p.fail(v, "VP100", "max must be a non-negative integer.")
			}
		case "render":
			body = v
		default:
			return p.fail(k, "VP100", fmt.Sprintf("Unknown component field %q.", k.Value))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if body == nil {
		return p.fail(n, "VP100", fmt.Sprintf("Component %s has no render template.", def.name))
	}
	if _, clash := def.state[def.data]; def.data != "" && clash {
		return p.fail(n, "VP100", fmt.Sprintf("%s is declared both as state and as data.", def.data))
	}
	sort.Strings(def.stateNames)

	def.body, err = p.element(body, true)
	return err
}

// element parses an element template. Strings are text shorthands and
// lists are fragment shorthands.
func (p *parser) element(n *yaml.Node, inComponent bool) (*tmpl, error) {
	t := &tmpl{pos: p.pos(n)}
	var err error

	switch n.Kind {
	case yaml.ScalarNode:
		t.kind = kindText
		t.text, err = p.template(n)
		return t, err
	case yaml.SequenceNode:
		t.kind = kindFragment
		t.children, err = p.elements(n, inComponent)
		return t, err
	case yaml.MappingNode:
	default:
		return nil, p.fail(n, "VP102", "An element is a string, a list or a mapping.")
	}

	var kindKey *yaml.Node
	fields := make(map[string]*yaml.Node)
	err = pairs(n, func(k, v *yaml.Node) error {
		switch k.Value {
		case "text", "fragment", "chunk", "component", "each", "slot":
			if kindKey != nil {
				return p.fail(k, "VP102", fmt.Sprintf("The element declares both %s and %s.", kindKey.Value, k.Value))
			}
			kindKey = k
		case "key", "weight", "props", "children", "as", "render":
		default:
			return p.fail(k, "VP102", fmt.Sprintf("Unknown element field %q.", k.Value))
		}
		fields[k.Value] = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if kindKey == nil {
		return nil, p.fail(n, "VP102", "An element must name exactly one of component, text, fragment or chunk.")
	}

	v := fields[kindKey.Value]
	switch kindKey.Value {
	case "text":
		t.kind = kindText
		if v.Kind != yaml.ScalarNode {
			return nil, p.fail(v, "VP102", "text must be a string.")
		}
		t.text, err = p.template(v)
	case "fragment", "chunk":
		t.kind = kindFragment
		if kindKey.Value == "chunk" {
			t.kind = kindChunk
		}
		t.children, err = p.elements(v, inComponent)
	case "component":
		err = p.component(t, v, fields, inComponent)
	case "each":
		if !inComponent {
			return nil, p.fail(kindKey, "VP102", "each is only allowed inside component templates.")
		}
		err = p.each(t, v, fields)
	case "slot":
		if !inComponent {
			return nil, p.fail(kindKey, "VP102", "slot is only allowed inside component templates.")
		}
		t.kind = kindSlot
	}
	if err != nil {
		return nil, err
	}

	if t.kind != kindComponent {
		for _, f := range []string{"props", "children"} {
			if fn := fields[f]; fn != nil {
				return nil, p.fail(fn, "VP102", f+" is only allowed on component elements.")
			}
		}
	}
	if t.kind != kindEach {
		for _, f := range []string{"as", "render"} {
			if fn := fields[f]; fn != nil {
				return nil, p.fail(fn, "VP102", f+" is only allowed on each elements.")
			}
		}
	}

	if kn := fields["key"]; kn != nil {
		if t.kind == kindSlot || kn.Kind != yaml.ScalarNode {
			return nil, p.fail(kn, "VP102", "key must be a string on a non-slot element.")
		}
		if t.key, err = p.template(kn); err != nil {
			return nil, err
		}
	}
	if wn := fields["weight"]; wn != nil {
		var w float64
		if t.kind == kindSlot || wn.Decode(&w) != nil {
			return nil, p.fail(wn, "VP103", fmt.Sprintf("Weight %q is not a number.", wn.Value))
		}
		t.weight = &w
	}
	return t, nil
}

func (p *parser) component(t *tmpl, v *yaml.Node, fields map[string]*yaml.Node, inComponent bool) error {
	def, ok := p.defs[v.Value]
	if v.Kind != yaml.ScalarNode || !ok {
		return p.fail(v, "VP101", fmt.Sprintf("No component named %q is declared under components:.", v.Value))
	}
	t.kind = kindComponent
	t.comp = def

	if pn := fields["props"]; pn != nil {
		if pn.Kind != yaml.MappingNode {
			return p.fail(pn, "VP102", "props must be a mapping.")
		}
		t.props = make(map[string]any)
		err := pairs(pn, func(k, v *yaml.Node) error {
			var val any
			if err := v.Decode(&val); err != nil {
				return p.fail(v, "VP102", err.Error())
			}
			if _, ok := val.(string); ok {
				tpl, err := p.template(v)
				if err != nil {
					return err
				}
				val = tpl
			}
			t.props[k.Value] = val
			return nil
		})
		if err != nil {
			return err
		}
	}

	if cn := fields["children"]; cn != nil {
		var err error
		t.children, err = p.elements(cn, inComponent)
		return err
	}
	return nil
}

func (p *parser) each(t *tmpl, v *yaml.Node, fields map[string]*yaml.Node) error {
	t.kind = kindEach
	if v.Kind != yaml.ScalarNode || v.Value == "" {
		return p.fail(v, "VP102", "each names a list prop or state.")
	}
	t.each = v.Value
	t.as = "item"
	if an := fields["as"]; an != nil {
		if an.Kind != yaml.ScalarNode || an.Value == "" {
			return p.fail(an, "VP102", "as must be a name.")
		}
		t.as = an.Value
	}
	rn := fields["render"]
	if rn == nil {
		return p.fail(v, "VP102", "each needs a render template.")
	}
	var err error
	t.body, err = p.element(rn, true)
	return err
}

// elements parses a list of element templates. A single element is
// accepted in place of a list.
func (p *parser) elements(n *yaml.Node, inComponent bool) ([]*tmpl, error) {
	if n.Kind != yaml.SequenceNode {
		t, err := p.element(n, inComponent)
		if err != nil {
			return nil, err
		}
		return []*tmpl{t}, nil
	}
	out := make([]*tmpl, 0, len(n.Content))
	for _, c := range n.Content {
		t, err := p.element(c, inComponent)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (p *parser) template(n *yaml.Node) (*template.Template, error) {
	tpl, err := template.New(p.pos(n).String()).Parse(n.Value)
	if err != nil {
		return nil, p.fail(n, "VP100", "Invalid template: "+err.Error())
	}
	return tpl, nil
}
