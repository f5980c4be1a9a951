// Package treefile loads prompt trees from YAML or JSON documents.
//
// A document has a root element and an optional components section:
//
//	components:
//	  Log:
//	    state:
//	      title: Recent events
//	    data: lines
//	    max: 20
//	    render:
//	      chunk:
//	        - text: "{{.title}}:"
//	        - each: lines
//	          key: "{{.index}}"
//	          render:
//	            text: "- {{.item}}"
//	root:
//	  fragment:
//	    - text: You are a helpful assistant.
//	      weight: 10
//	    - component: Log
//	      props:
//	        title: Build log
//
// Elements are strings (text), lists (fragments) or mappings naming exactly
// one of text, fragment, chunk or component. Mappings may add key and
// weight. Component templates may also use each, which repeats its render
// template for every item of a list, and slot, which inserts the children
// declared at the call site.
//
// Text, keys and string props are text/template templates evaluated against
// the component's props and state. State cells are seeded from props of the
// same name. The data list receives every string pumped into the tree and
// keeps the last max entries when max is set.
package treefile
