package hooks

import "fmt"

// HookOrderError reports a component whose hook calls differ between renders.
// Expected is zero for an extra hook, Got is zero for a missing hook.
type HookOrderError struct {
	Index        int
	Expected     HookType
	Got          HookType
	TypeMismatch bool
}

// Error implements the error interface.
func (e *HookOrderError) Error() string {
	switch {
	case e.TypeMismatch:
		return fmt.Sprintf("hooks: state type changed at index %d", e.Index)
	case e.Expected == 0:
		return fmt.Sprintf("hooks: hook order changed: extra %s hook at index %d", e.Got, e.Index)
	case e.Got == 0:
		return fmt.Sprintf("hooks: hook order changed: missing %s hook at index %d", e.Expected, e.Index)
	default:
		return fmt.Sprintf("hooks: hook order changed at index %d: expected %s, got %s", e.Index, e.Expected, e.Got)
	}
}
