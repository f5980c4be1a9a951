package treefile

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/vango-dev/vprompt/pkg/hooks"
	"github.com/vango-dev/vprompt/pkg/ptree"
)

// scope holds the values templates are evaluated against.
type scope map[string]any

func (sc scope) with(kv ...any) scope {
	out := make(scope, len(sc)+len(kv)/2)
	for k, v := range sc {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

// render is the render function of a document-defined component. Template
// errors panic and surface as render errors of the pass.
func (def *definition) render(s *hooks.Store, props ptree.Props) *ptree.Element {
	sc := make(scope, len(props)+len(def.stateNames)+1)
	for k, v := range props {
		if k != ptree.PropChildren {
			sc[k] = v
		}
	}

	for _, name := range def.stateNames {
		initial := def.state[name]
		if v, ok := props[name]; ok {
			initial = v
		}
		v, _ := hooks.UseState(s, initial)
		sc[name] = v
	}

	if def.data != "" {
		seed := props[def.data]
		lines, setLines := hooks.UseStateFunc(s, func() []string {
			return def.trim(stringsOf(seed))
		})
		hooks.UseData(s, func(_ context.Context, line string) error {
			setLines.Update(func(prev []string) []string {
				next := make([]string, 0, len(prev)+1)
				next = append(next, prev...)
				return def.trim(append(next, line))
			})
			return nil
		})
		sc[def.data] = lines
	}

	els, err := def.body.build(sc, ptree.ChildrenOf(props))
	if err != nil {
		panic(fmt.Errorf("%s: %w", def.name, err))
	}
	switch len(els) {
	case 0:
		return nil
	case 1:
		return els[0]
	default:
		return ptree.Fragment(els)
	}
}

// trim keeps the last max lines.
func (def *definition) trim(lines []string) []string {
	if def.max > 0 && len(lines) > def.max {
		return lines[len(lines)-def.max:]
	}
	return lines
}

// build evaluates the template. each and slot templates yield any number
// of elements; the others yield exactly one.
func (t *tmpl) build(sc scope, slot []*ptree.Element) ([]*ptree.Element, error) {
	switch t.kind {
	case kindSlot:
		return slot, nil
	case kindEach:
		var out []*ptree.Element
		for i, item := range listOf(sc[t.each]) {
			inner := sc.with(t.as, item, "index", i)
			els, err := t.body.build(inner, slot)
			if err != nil {
				return nil, err
			}
			for _, el := range els {
				if el, err = t.decorate(el, inner); err != nil {
					return nil, err
				}
				out = append(out, el)
			}
		}
		return out, nil
	}

	el, err := t.element(sc, slot)
	if err != nil {
		return nil, err
	}
	if el, err = t.decorate(el, sc); err != nil {
		return nil, err
	}
	return []*ptree.Element{el}, nil
}

func (t *tmpl) element(sc scope, slot []*ptree.Element) (*ptree.Element, error) {
	switch t.kind {
	case kindText:
		s, err := execute(t.text, sc)
		if err != nil {
			return nil, err
		}
		el := ptree.Text(s)
		el.Source = t.pos
		return el, nil

	case kindFragment, kindChunk:
		children, err := buildAll(t.children, sc, slot)
		if err != nil {
			return nil, err
		}
		el := ptree.Fragment(children)
		if t.kind == kindChunk {
			el = ptree.Chunk(children)
		}
		el.Source = t.pos
		return el, nil

	case kindComponent:
		props := make(ptree.Props, len(t.props)+1)
		for k, v := range t.props {
			if tpl, ok := v.(*template.Template); ok {
				s, err := execute(tpl, sc)
				if err != nil {
					return nil, err
				}
				v = s
			}
			props[k] = v
		}
		props[ptree.PropSource] = t.pos
		children, err := buildAll(t.children, sc, slot)
		if err != nil {
			return nil, err
		}
		return ptree.Create(t.comp.comp, props, children), nil
	}
	return nil, fmt.Errorf("treefile: unexpected element kind %d at %s", t.kind, t.pos)
}

// decorate applies the template's key and weight to el.
func (t *tmpl) decorate(el *ptree.Element, sc scope) (*ptree.Element, error) {
	if t.key != nil {
		key, err := execute(t.key, sc)
		if err != nil {
			return nil, err
		}
		el = ptree.Keyed(key, el)
	}
	if t.weight != nil {
		el = ptree.Weighted(*t.weight, el)
	}
	return el, nil
}

func buildAll(ts []*tmpl, sc scope, slot []*ptree.Element) ([]*ptree.Element, error) {
	var out []*ptree.Element
	for _, t := range ts {
		els, err := t.build(sc, slot)
		if err != nil {
			return nil, err
		}
		out = append(out, els...)
	}
	return out, nil
}

func execute(tpl *template.Template, sc scope) (string, error) {
	var b strings.Builder
	if err := tpl.Execute(&b, sc); err != nil {
		return "", err
	}
	return b.String(), nil
}

// listOf returns the items of a list value. Other non-nil values are a
// single item.
func listOf(v any) []any {
	switch l := v.(type) {
	case nil:
		return nil
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

func stringsOf(v any) []string {
	items := listOf(v)
	if len(items) == 0 {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = fmt.Sprint(item)
	}
	return out
}
