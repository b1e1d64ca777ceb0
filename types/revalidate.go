package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Revalidate is the staleness policy for a cached artifact: unset, never
// (do not revalidate automatically), or a non-negative interval in seconds.
//
// The zero value is unset. Use RevalidateNever and RevalidateAfter to
// construct set values; direct field access is deliberately impossible so
// that reconciliation only happens through Merge.
type Revalidate struct {
	set     bool
	never   bool
	seconds int64
}

// RevalidateNever returns the explicit "never revalidate automatically" policy.
func RevalidateNever() Revalidate {
	return Revalidate{set: true, never: true}
}

// RevalidateAfter returns a policy that marks the artifact stale after the
// given number of seconds. Negative values are clamped to zero.
func RevalidateAfter(seconds int64) Revalidate {
	if seconds < 0 {
		seconds = 0
	}
	return Revalidate{set: true, seconds: seconds}
}

// IsSet returns true if any policy has been stated.
func (r Revalidate) IsSet() bool { return r.set }

// Never returns true if the policy is the explicit never value.
func (r Revalidate) Never() bool { return r.set && r.never }

// Seconds returns the interval in seconds. Only meaningful when IsSet
// and !Never.
func (r Revalidate) Seconds() int64 { return r.seconds }

// Interval returns the interval as a time.Duration. Zero when unset or never.
func (r Revalidate) Interval() time.Duration {
	if !r.set || r.never {
		return 0
	}
	return time.Duration(r.seconds) * time.Second
}

// Merge reconciles two revalidate contributions into the tightest constraint:
// an explicit never from either side is sticky, and otherwise the minimum of
// the stated finite intervals wins. Merge is commutative and associative, so
// contributions may arrive in any order.
func (r Revalidate) Merge(o Revalidate) Revalidate {
	if !r.set {
		return o
	}
	if !o.set {
		return r
	}
	if r.never || o.never {
		return RevalidateNever()
	}
	if o.seconds < r.seconds {
		return o
	}
	return r
}

// String implements fmt.Stringer.
func (r Revalidate) String() string {
	switch {
	case !r.set:
		return "unset"
	case r.never:
		return "never"
	default:
		return fmt.Sprintf("%ds", r.seconds)
	}
}

// MarshalJSON encodes never as false, a finite interval as a number, and
// unset as null.
func (r Revalidate) MarshalJSON() ([]byte, error) {
	switch {
	case !r.set:
		return []byte("null"), nil
	case r.never:
		return []byte("false"), nil
	default:
		return json.Marshal(r.seconds)
	}
}

// UnmarshalJSON accepts false, a non-negative number, or null.
func (r *Revalidate) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return r.fromScalar(v)
}

// UnmarshalYAML accepts false, a non-negative number, or the string "never".
func (r *Revalidate) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	if s, ok := v.(string); ok && s == "never" {
		*r = RevalidateNever()
		return nil
	}
	return r.fromScalar(v)
}

func (r *Revalidate) fromScalar(v any) error {
	switch val := v.(type) {
	case nil:
		*r = Revalidate{}
	case bool:
		if val {
			return fmt.Errorf("revalidate: true is not a valid value")
		}
		*r = RevalidateNever()
	case float64:
		if val < 0 {
			return fmt.Errorf("revalidate: interval must be >= 0, got %v", val)
		}
		*r = RevalidateAfter(int64(val))
	case int:
		if val < 0 {
			return fmt.Errorf("revalidate: interval must be >= 0, got %d", val)
		}
		*r = RevalidateAfter(int64(val))
	default:
		return fmt.Errorf("revalidate: unsupported value %v (%T)", v, v)
	}
	return nil
}
