// Package ptree provides the declarative tree of prompt components.
//
// A prompt is declared once as a tree of Elements and then reconciled
// repeatedly. The tree is pure data; the reconciler decides which
// components to invoke and which hook state to keep.
//
// # Core Types
//
// Element is the building block. It is one of four kinds:
//
//   - KindComponent: an invocation of a Component with props and children
//   - KindFragment: a grouping without its own output
//   - KindText: a text leaf
//   - KindChunk: a grouping that later stages keep or drop as a whole
//
// # Components
//
// Components are declared with Define. The returned *Component is the
// component's identity: two elements have the same type only when they
// reference the same *Component.
//
//	var SimilarFile = ptree.Define("SimilarFile", func(s *hooks.Store, props ptree.Props) *ptree.Element {
//	    return ptree.Chunk(
//	        ptree.Text("// ", props["path"]),
//	        ptree.Text(props["snippet"]),
//	    )
//	})
//
//	tree := ptree.Fragment(
//	    ptree.Create(SimilarFile, ptree.Props{"key": "a.go", "path": "a.go", "snippet": "..."}),
//	    ptree.Create(SimilarFile, ptree.Props{"key": "b.go", "path": "b.go", "snippet": "..."}),
//	)
//
// # Reserved Props
//
// The props key, weight, source and children are extracted by Create and
// stored on the Element itself.
package ptree
