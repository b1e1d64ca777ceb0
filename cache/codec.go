package cache

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/kiln/types"
)

// Revalidate wire modes. The Revalidate value type has no exported fields,
// so the codec flattens it into a mode + seconds pair.
const (
	revalidateUnset int8 = iota
	revalidateNever
	revalidateAfter
)

// entryWire is the msgpack wire shape for Entry, shared by the redis and
// s3 backends.
type entryWire struct {
	Key               string   `msgpack:"key"`
	Body              []byte   `msgpack:"body"`
	ContentType       string   `msgpack:"content_type"`
	Status            int      `msgpack:"status"`
	StoredAt          int64    `msgpack:"stored_at"`
	RevalidateMode    int8     `msgpack:"revalidate_mode"`
	RevalidateSeconds int64    `msgpack:"revalidate_seconds"`
	Tags              []string `msgpack:"tags,omitempty"`
}

// EncodeEntry serializes an entry to its msgpack wire form.
func EncodeEntry(e *Entry) ([]byte, error) {
	wire := entryWire{
		Key:         e.Key,
		Body:        e.Body,
		ContentType: e.ContentType,
		Status:      e.Status,
		StoredAt:    e.StoredAt,
		Tags:        e.Tags,
	}

	switch {
	case e.Revalidate.Never():
		wire.RevalidateMode = revalidateNever
	case e.Revalidate.IsSet():
		wire.RevalidateMode = revalidateAfter
		wire.RevalidateSeconds = e.Revalidate.Seconds()
	}

	data, err := msgpack.Marshal(&wire)
	if err != nil {
		return nil, fmt.Errorf("cache: encode entry %q: %w", e.Key, err)
	}
	return data, nil
}

// DecodeEntry deserializes an entry from its msgpack wire form.
func DecodeEntry(data []byte) (*Entry, error) {
	var wire entryWire
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("cache: decode entry: %w", err)
	}

	e := &Entry{
		Key:         wire.Key,
		Body:        wire.Body,
		ContentType: wire.ContentType,
		Status:      wire.Status,
		StoredAt:    wire.StoredAt,
		Tags:        wire.Tags,
	}

	switch wire.RevalidateMode {
	case revalidateNever:
		e.Revalidate = types.RevalidateNever()
	case revalidateAfter:
		e.Revalidate = types.RevalidateAfter(wire.RevalidateSeconds)
	}

	return e, nil
}
