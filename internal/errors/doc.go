// Package errors provides structured, actionable error messages for the
// vprompt command line.
//
// Library packages return plain Go errors (sentinels and typed errors).
// The CLI classifies them into coded errors that explain what went wrong
// and how to fix it.
//
// # Error Categories
//
//   - tree: tree document errors (syntax, unknown components, bad props)
//   - reconcile: reconciliation errors (duplicate keys, hook order, panics)
//   - data: pipe and pump errors
//   - config: configuration file errors
//   - archive: snapshot archive errors
//   - cli: command usage errors
//
// # Usage
//
//	err := errors.New("VP101").
//	    WithLocation("prompt.yaml", 12, 5).
//	    WithSuggestion("Define the component under components:")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR VP101: Unknown component
//	//
//	//   prompt.yaml:12:5
//	//
//	//     10 │ root:
//	//     11 │   children:
//	//   → 12 │     - component: Greting
//	//        │       ^
//	//
//	//   Hint: Define the component under components:
package errors
