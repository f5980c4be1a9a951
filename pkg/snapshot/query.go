package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned by Parse for malformed paths.
var ErrInvalidPath = errors.New("snapshot: invalid path")

// StepKind identifies one step of a parsed path.
type StepKind uint8

const (
	StepName  StepKind = iota + 1 // .Name
	StepIndex                     // [3]
	StepKey                       // ["key"]
	StepAny                       // [*]
)

// Step is one parsed path step.
type Step struct {
	Kind  StepKind
	Name  string
	Index int
	Key   string
}

// Parse splits a path such as f["23"].Chunk[0].Text into steps.
// The name * matches any name.
func Parse(path string) ([]Step, error) {
	var steps []Step
	i := 0
	expectName := true
	for i < len(path) {
		switch c := path[i]; {
		case c == '.':
			if expectName {
				return nil, fmt.Errorf("%w: empty name at offset %d in %q", ErrInvalidPath, i, path)
			}
			expectName = true
			i++
		case c == '[':
			if expectName {
				return nil, fmt.Errorf("%w: selector without name at offset %d in %q", ErrInvalidPath, i, path)
			}
			step, n, err := parseSelector(path[i:])
			if err != nil {
				return nil, fmt.Errorf("%w: %v in %q", ErrInvalidPath, err, path)
			}
			steps = append(steps, step)
			i += n
		default:
			if !expectName {
				return nil, fmt.Errorf("%w: unexpected %q at offset %d in %q", ErrInvalidPath, c, i, path)
			}
			end := i
			for end < len(path) && path[end] != '.' && path[end] != '[' && path[end] != ']' {
				end++
			}
			if end == i {
				return nil, fmt.Errorf("%w: unexpected %q at offset %d in %q", ErrInvalidPath, c, i, path)
			}
			steps = append(steps, Step{Kind: StepName, Name: path[i:end]})
			expectName = false
			i = end
		}
	}
	if expectName {
		return nil, fmt.Errorf("%w: path %q must end with a name or selector", ErrInvalidPath, path)
	}
	return steps, nil
}

// parseSelector parses one [..] selector at the start of s and returns the
// number of bytes consumed.
func parseSelector(s string) (Step, int, error) {
	if strings.HasPrefix(s, `["`) {
		// Find the closing quote, honoring escapes.
		for j := 2; j < len(s); j++ {
			switch s[j] {
			case '\\':
				j++
			case '"':
				if j+1 >= len(s) || s[j+1] != ']' {
					return Step{}, 0, errors.New("unterminated key selector")
				}
				key, err := strconv.Unquote(s[1 : j+1])
				if err != nil {
					return Step{}, 0, fmt.Errorf("bad key selector: %v", err)
				}
				return Step{Kind: StepKey, Key: key}, j + 2, nil
			}
		}
		return Step{}, 0, errors.New("unterminated key selector")
	}

	end := strings.IndexByte(s, ']')
	if end < 0 {
		return Step{}, 0, errors.New("unterminated selector")
	}
	inner := s[1:end]
	if inner == "*" {
		return Step{Kind: StepAny}, end + 1, nil
	}
	idx, err := strconv.Atoi(inner)
	if err != nil || idx < 0 {
		return Step{}, 0, fmt.Errorf("bad index %q", inner)
	}
	return Step{Kind: StepIndex, Index: idx}, end + 1, nil
}

// Query resolves path against root and returns the matching nodes.
// Unknown names, out-of-range indexes, absent keys and malformed paths
// yield an empty result.
//
// A selector picks children by position or key; a name directly after
// another name matches any child with that name, which is how only
// children are addressed.
func Query(root *Node, path string) []*Node {
	steps, err := Parse(path)
	if err != nil || root == nil {
		return nil
	}
	return resolve(root, steps)
}

// QueryValues returns the texts of the leaves matched by path.
func QueryValues(root *Node, path string) []string {
	var values []string
	for _, n := range Query(root, path) {
		if n.IsLeaf() {
			values = append(values, *n.Value)
		}
	}
	return values
}

// Find returns the first node matched by path, or nil.
func Find(root *Node, path string) *Node {
	nodes := Query(root, path)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func resolve(root *Node, steps []Step) []*Node {
	first := steps[0]
	if first.Kind != StepName || !nameMatches(first.Name, root.Name) {
		return nil
	}

	current := []*Node{root}
	selected := false
	for _, step := range steps[1:] {
		var next []*Node
		switch step.Kind {
		case StepName:
			for _, n := range current {
				if selected {
					if nameMatches(step.Name, n.Name) {
						next = append(next, n)
					}
					continue
				}
				for _, c := range n.Children {
					if nameMatches(step.Name, c.Name) {
						next = append(next, c)
					}
				}
			}
			selected = false
		case StepIndex:
			for _, n := range current {
				if step.Index < len(n.Children) {
					next = append(next, n.Children[step.Index])
				}
			}
			selected = true
		case StepKey:
			for _, n := range current {
				for _, c := range n.Children {
					if c.Keyed && c.Key == step.Key {
						next = append(next, c)
					}
				}
			}
			selected = true
		case StepAny:
			for _, n := range current {
				next = append(next, n.Children...)
			}
			selected = true
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

func nameMatches(pattern, name string) bool {
	return pattern == "*" || pattern == name
}
