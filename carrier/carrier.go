// Package carrier makes a pass's generation store ambiently reachable to
// all code executing within the same logical request.
//
// The binding is keyed by the dynamic extent of a context.Context: code
// anywhere in the request's call graph reads the store without it being
// threaded through every signature, goroutines inherit the binding through
// the contexts they are handed, and concurrently executing requests with
// distinct contexts can never observe each other's store. Nested Run calls
// shadow the outer store for the nested extent only.
package carrier

import (
	"context"

	"github.com/pithecene-io/kiln/store"
)

type ctxKey struct{}

// With returns a context that carries s as the ambient generation store.
// The carrier never mutates the store itself.
func With(ctx context.Context, s *store.Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the ambient generation store, or nil when ctx is
// outside any Run extent. A nil store is a legal state, not an error:
// callers degrade to uninstrumented operation.
func FromContext(ctx context.Context) *store.Store {
	s, _ := ctx.Value(ctxKey{}).(*store.Store)
	return s
}

// Run executes fn with s established as the ambient store for fn's extent,
// and returns fn's result. Once fn returns, the caller's own context is
// untouched: sibling code continues to observe whatever store (if any) was
// ambient before.
func Run(ctx context.Context, s *store.Store, fn func(ctx context.Context) error) error {
	return fn(With(ctx, s))
}
