// Package types defines core domain types for the Kiln rendering runtime.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"strings"
)

// RouteMeta contains the identity of one render pass.
type RouteMeta struct {
	// RequestID is the canonical identifier for this pass. Must be unique.
	RequestID string
	// Pathname is the logical route being rendered.
	Pathname string
	// OriginalPathname is the pre-rewrite route. Nil when the route was
	// not rewritten.
	OriginalPathname *string
}

// Validate checks route identity rules:
//   - request_id must be non-empty
//   - pathname must be non-empty and rooted at "/"
//   - original_pathname, when present, must also be rooted at "/"
func (r *RouteMeta) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id must be non-empty")
	}

	if r.Pathname == "" {
		return errors.New("pathname must be non-empty")
	}

	if !strings.HasPrefix(r.Pathname, "/") {
		return fmt.Errorf("pathname must start with /, got %q", r.Pathname)
	}

	if r.OriginalPathname != nil && !strings.HasPrefix(*r.OriginalPathname, "/") {
		return fmt.Errorf("original_pathname must start with /, got %q", *r.OriginalPathname)
	}

	return nil
}

// PassOutcome represents the final classification of a render pass.
type PassOutcome string

const (
	// OutcomeStatic indicates the pass produced a statically cacheable artifact.
	OutcomeStatic PassOutcome = "static"
	// OutcomeDynamic indicates the pass must be rendered per-request.
	OutcomeDynamic PassOutcome = "dynamic"
	// OutcomeFailed indicates the pass failed before producing a usable artifact.
	OutcomeFailed PassOutcome = "failed"
)
