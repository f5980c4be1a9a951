// Package snapshot provides the immutable, path-addressed output of a
// reconciliation pass.
//
// Every node carries a path such as
//
//	SimilarFiles.f[0].SimilarFile.Chunk[0].Text
//	f["23"].Text
//
// built from its ancestors' names and its position among its siblings.
// Paths are unique within a snapshot and can be resolved with Query.
package snapshot

import (
	"strconv"
	"time"
)

// Statistics are per-node counters collected by the reconciler.
type Statistics struct {
	// UpdateDataTime is the time spent delivering pumped data to the node
	// since the previous snapshot.
	UpdateDataTime time.Duration `json:"updateDataTime"`

	// Renders is the number of committed invocations of the component.
	Renders int `json:"renders,omitempty"`
}

// Node is one node of a snapshot.
type Node struct {
	Name       string         `json:"name"`
	Path       string         `json:"path"`
	Key        string         `json:"key,omitempty"`
	Keyed      bool           `json:"keyed,omitempty"`
	Value      *string        `json:"value,omitempty"`
	Weight     *float64       `json:"weight,omitempty"`
	Chunk      bool           `json:"chunk,omitempty"`
	Props      map[string]any `json:"props,omitempty"`
	Children   []*Node        `json:"children,omitempty"`
	Statistics Statistics     `json:"statistics"`
}

// IsLeaf reports whether the node is a text leaf.
func (n *Node) IsLeaf() bool {
	return n != nil && n.Value != nil
}

// Text returns the leaf text, or "" for non-leaf nodes.
func (n *Node) Text() string {
	if n == nil || n.Value == nil {
		return ""
	}
	return *n.Value
}

// Segment returns the path segment that addresses a child within its
// parent: ["key"] for keyed children, [index] when the parent has more
// than one child, and "" for an only unkeyed child.
func Segment(index, siblings int, key string, keyed bool) string {
	switch {
	case keyed:
		return "[" + strconv.Quote(key) + "]"
	case siblings > 1:
		return "[" + strconv.Itoa(index) + "]"
	default:
		return ""
	}
}

// ChildPath returns the path of a child named name under parentPath.
func ChildPath(parentPath, segment, name string) string {
	return parentPath + segment + "." + name
}

// Walk visits n and its descendants depth-first in child order. Returning
// false from fn skips the node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Paths returns the paths of all nodes in depth-first order.
func Paths(n *Node) []string {
	var paths []string
	Walk(n, func(node *Node) bool {
		paths = append(paths, node.Path)
		return true
	})
	return paths
}

// Leaves returns the text leaves in document order.
func Leaves(n *Node) []*Node {
	var leaves []*Node
	Walk(n, func(node *Node) bool {
		if node.IsLeaf() {
			leaves = append(leaves, node)
		}
		return true
	})
	return leaves
}
