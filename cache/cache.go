// Package cache defines the incremental cache boundary consumed by render
// passes, plus the serialized artifact format shared by its backends.
//
// The cache is a shared external resource accessed by many concurrent
// passes; backends provide their own cross-request consistency guarantees.
// A pass merely holds a reference to it.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pithecene-io/kiln/types"
)

// Incremental is the cache capability held by a generation store.
// Read returns (nil, nil) when the key is absent.
type Incremental interface {
	// Read fetches the entry stored under key, or nil when absent.
	Read(ctx context.Context, key string) (*Entry, error)

	// Write stores an entry under key, applying its revalidate policy.
	Write(ctx context.Context, key string, entry *Entry) error

	// Delete removes the entry stored under key. Absent keys are not an error.
	Delete(ctx context.Context, key string) error

	// InvalidateTag removes every entry associated with tag and returns
	// the number of entries removed.
	InvalidateTag(ctx context.Context, tag string) (int, error)

	// Close releases backend resources.
	Close() error
}

// Entry is one cached artifact.
type Entry struct {
	// Key is the cache key the entry was stored under.
	Key string
	// Body is the artifact payload.
	Body []byte
	// ContentType is the MIME content type of Body.
	ContentType string
	// Status is the HTTP status associated with the artifact.
	Status int
	// StoredAt is the unix-millisecond timestamp of the write.
	StoredAt int64
	// Revalidate is the staleness policy applied at write time.
	Revalidate types.Revalidate
	// Tags are the cache tags associated with the entry.
	Tags []string
}

// Fresh reports whether the entry is still fresh at now. Entries with an
// unset or never policy do not expire automatically; an interval of zero
// is always stale.
func (e *Entry) Fresh(now time.Time) bool {
	if !e.Revalidate.IsSet() || e.Revalidate.Never() {
		return true
	}
	expiry := time.UnixMilli(e.StoredAt).Add(e.Revalidate.Interval())
	return now.Before(expiry)
}

// RouteKey returns the cache key for a rendered route artifact.
func RouteKey(pathname string) string {
	return "route:" + pathname
}

// FetchKey returns the cache key for an outbound fetch response. Keys are
// hashed so arbitrary URLs stay within backend key constraints.
func FetchKey(method, url string) string {
	sum := sha256.Sum256([]byte(method + " " + url))
	return "fetch:" + hex.EncodeToString(sum[:16])
}
