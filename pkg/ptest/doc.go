// Package ptest provides testing helpers for prompt components.
//
// # Quick Start
//
//	func TestFileList(t *testing.T) {
//	    h := ptest.New(t, ptree.Create(FileList, nil))
//	    h.Pump([]string{"a.go", "b.go"})
//	    snap := h.Reconcile()
//	    ptest.ExpectValues(t, snap, `FileList.f[*].Text`, "a.go", "b.go")
//	    ptest.ExpectUniquePaths(t, snap)
//	}
//
// # Harness
//
// The harness wraps a reconciler and fails the test on any reconcile or
// pump error:
//
//	h := ptest.New(t, root).
//	    PumpVia("files", files).
//	    PumpVia("query", "find main")
//	snap := h.Reconcile()
//
// # Assertions
//
// Assert on snapshot nodes by path, or on the rendered prompt:
//
//	ptest.ExpectValue(t, snap, "f[0].Text", "Hello")
//	ptest.ExpectNoNode(t, snap, `f["gone"]`)
//	ptest.ExpectPromptContains(t, snap, "Hello")
package ptest
