package store

import "fmt"

// DynamicUsageError is returned when a dynamic-triggering operation occurs
// during a pass that was created static with DynamicShouldError set. The
// pass fails rather than silently downgrading to dynamic rendering; this is
// the fail-fast guarantee for callers that opted into fully static output.
type DynamicUsageError struct {
	// Pathname is the route that failed.
	Pathname string
	// Description captures what triggered the dynamic behavior.
	Description string
	// Stack is an optional caller-supplied trace of the trigger site.
	Stack string
}

// Error implements the error interface.
func (e *DynamicUsageError) Error() string {
	return fmt.Sprintf("route %s could not be rendered statically: %s", e.Pathname, e.Description)
}
