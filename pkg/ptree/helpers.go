package ptree

import (
	"fmt"
	"strconv"
	"strings"
)

// Create declares an invocation of comp. The reserved props key, weight,
// source and children are moved onto the Element; children given in props
// come before the variadic children.
func Create(comp *Component, props Props, children ...any) *Element {
	el := &Element{
		Kind:  KindComponent,
		Comp:  comp,
		Props: make(Props, len(props)),
	}

	var declared []any
	for k, v := range props {
		switch k {
		case PropKey:
			if v != nil {
				el.Key = FormatKey(v)
				el.HasKey = true
			}
		case PropWeight:
			if w, ok := toFloat(v); ok {
				el.Weight = &w
			}
		case PropSource:
			el.Source = v
		case PropChildren:
			declared = append(declared, v)
		default:
			el.Props[k] = v
		}
	}

	el.Children = normalize(append(declared, children...))
	return el
}

// Fragment groups children without a wrapper.
func Fragment(children ...any) *Element {
	return &Element{
		Kind:     KindFragment,
		Children: normalize(children),
	}
}

// Chunk groups children that are kept or elided together.
func Chunk(children ...any) *Element {
	return &Element{
		Kind:     KindChunk,
		Children: normalize(children),
	}
}

// Text creates a text leaf from the concatenation of its parts.
// Strings, numbers, fmt.Stringers and text elements contribute their text;
// nil and other values contribute nothing.
func Text(parts ...any) *Element {
	var b strings.Builder
	writeText(&b, parts)
	return &Element{
		Kind: KindText,
		Text: b.String(),
	}
}

// Textf creates a formatted text leaf.
func Textf(format string, args ...any) *Element {
	return Text(fmt.Sprintf(format, args...))
}

// Keyed returns a copy of el with the given key.
func Keyed(key any, el *Element) *Element {
	if el == nil {
		return nil
	}
	c := el.clone()
	c.Key = FormatKey(key)
	c.HasKey = true
	return c
}

// Weighted returns a copy of el with the given weight.
func Weighted(weight float64, el *Element) *Element {
	if el == nil {
		return nil
	}
	c := el.clone()
	c.Weight = &weight
	return c
}

// If returns the element if condition is true, nil otherwise.
func If(condition bool, el *Element) *Element {
	if condition {
		return el
	}
	return nil
}

// Range maps a slice to elements.
func Range[T any](items []T, fn func(item T, index int) *Element) []*Element {
	result := make([]*Element, 0, len(items))
	for i, item := range items {
		if el := fn(item, i); el != nil {
			result = append(result, el)
		}
	}
	return result
}

// normalize flattens a heterogeneous children list into elements.
// Nested slices are flattened in order; nil and empty strings are dropped.
func normalize(children []any) []*Element {
	var out []*Element
	for _, child := range children {
		out = appendChild(out, child)
	}
	return out
}

func appendChild(out []*Element, child any) []*Element {
	switch v := child.(type) {
	case nil:
		return out
	case *Element:
		if v != nil {
			out = append(out, v)
		}
	case []*Element:
		for _, c := range v {
			if c != nil {
				out = append(out, c)
			}
		}
	case []any:
		for _, c := range v {
			out = appendChild(out, c)
		}
	case *Component:
		if v != nil {
			out = append(out, Create(v, nil))
		}
	default:
		if s, ok := textOf(v); ok && s != "" {
			out = append(out, &Element{Kind: KindText, Text: s})
		}
	}
	return out
}

func writeText(b *strings.Builder, parts []any) {
	for _, p := range parts {
		switch v := p.(type) {
		case nil:
		case *Element:
			if v != nil && v.Kind == KindText {
				b.WriteString(v.Text)
			}
		case []any:
			writeText(b, v)
		default:
			if s, ok := textOf(v); ok {
				b.WriteString(s)
			}
		}
	}
}

// textOf converts strings and numbers to text.
func textOf(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint:
		return strconv.FormatUint(uint64(val), 10), true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return "", false
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	default:
		return 0, false
	}
}
