package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/kiln/types"
)

func TestEntry_Fresh(t *testing.T) {
	storedAt := time.UnixMilli(1_000_000)

	tests := []struct {
		name       string
		revalidate types.Revalidate
		at         time.Time
		want       bool
	}{
		{"unset never expires", types.Revalidate{}, storedAt.Add(24 * time.Hour), true},
		{"never does not expire", types.RevalidateNever(), storedAt.Add(24 * time.Hour), true},
		{"within interval", types.RevalidateAfter(60), storedAt.Add(30 * time.Second), true},
		{"past interval", types.RevalidateAfter(60), storedAt.Add(61 * time.Second), false},
		{"zero interval always stale", types.RevalidateAfter(0), storedAt, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entry{StoredAt: storedAt.UnixMilli(), Revalidate: tt.revalidate}
			if got := e.Fresh(tt.at); got != tt.want {
				t.Errorf("Fresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	in := &Entry{
		Key:         RouteKey("/blog/hello"),
		Body:        []byte(`{"title":"hello"}`),
		ContentType: "application/json",
		Status:      200,
		StoredAt:    time.Now().UnixMilli(),
		Revalidate:  types.RevalidateAfter(300),
		Tags:        []string{"blog", "posts"},
	}

	data, err := EncodeEntry(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := DecodeEntry(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.Key != in.Key || out.Status != in.Status || out.ContentType != in.ContentType {
		t.Errorf("decoded = %+v, want %+v", out, in)
	}
	if string(out.Body) != string(in.Body) {
		t.Errorf("body = %q, want %q", out.Body, in.Body)
	}
	if out.Revalidate != in.Revalidate {
		t.Errorf("revalidate = %v, want %v", out.Revalidate, in.Revalidate)
	}
	if len(out.Tags) != 2 {
		t.Errorf("tags = %v", out.Tags)
	}
}

func TestCodec_RevalidateModes(t *testing.T) {
	for _, r := range []types.Revalidate{{}, types.RevalidateNever(), types.RevalidateAfter(0)} {
		data, err := EncodeEntry(&Entry{Key: "k", Revalidate: r})
		if err != nil {
			t.Fatalf("encode %v: %v", r, err)
		}
		out, err := DecodeEntry(data)
		if err != nil {
			t.Fatalf("decode %v: %v", r, err)
		}
		if out.Revalidate != r {
			t.Errorf("round trip %v = %v", r, out.Revalidate)
		}
	}
}

func TestDecodeEntry_Garbage(t *testing.T) {
	if _, err := DecodeEntry([]byte("not msgpack")); err == nil {
		t.Error("expected decode error")
	}
}

func TestKeys(t *testing.T) {
	if got := RouteKey("/blog"); got != "route:/blog" {
		t.Errorf("RouteKey = %q", got)
	}

	a := FetchKey("GET", "https://api.example.com/x")
	b := FetchKey("POST", "https://api.example.com/x")
	if a == b {
		t.Error("method must partition fetch keys")
	}
	if !strings.HasPrefix(a, "fetch:") {
		t.Errorf("FetchKey = %q, want fetch: prefix", a)
	}
	if a != FetchKey("GET", "https://api.example.com/x") {
		t.Error("FetchKey must be deterministic")
	}
}
