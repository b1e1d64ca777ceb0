package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pithecene-io/kiln/metrics"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http url", "http://localhost:8080", false},
		{"https url", "https://kiln.internal", false},
		{"trailing slash trimmed", "http://localhost:8080/", false},
		{"empty", "", true},
		{"missing scheme", "localhost:8080", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.url, "")
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/-/metrics" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(metrics.Snapshot{
			PassesStarted: 3,
			PassesStatic:  2,
			CacheBackend:  "memory",
			Service:       "kiln",
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	snap, err := c.Metrics(t.Context())
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if snap.PassesStarted != 3 || snap.PassesStatic != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.CacheBackend != "memory" {
		t.Errorf("CacheBackend = %q, want memory", snap.CacheBackend)
	}
}

func TestRevalidatePath_SendsTokenAndBody(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/-/revalidate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(RevalidateResult{Revalidated: true, Path: "/blog"})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "s3cret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := c.RevalidatePath(t.Context(), "/blog")
	if err != nil {
		t.Fatalf("RevalidatePath: %v", err)
	}

	if gotAuth != "Bearer s3cret" {
		t.Errorf("Authorization = %q, want Bearer s3cret", gotAuth)
	}
	if gotBody["path"] != "/blog" {
		t.Errorf("body path = %q, want /blog", gotBody["path"])
	}
	if !result.Revalidated || result.Path != "/blog" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestRevalidateTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["tag"] != "posts" {
			t.Errorf("body tag = %q, want posts", body["tag"])
		}
		json.NewEncoder(w).Encode(RevalidateResult{Revalidated: true, Tag: "posts", Removed: 4})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "s3cret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := c.RevalidateTag(t.Context(), "posts")
	if err != nil {
		t.Fatalf("RevalidateTag: %v", err)
	}
	if result.Removed != 4 {
		t.Errorf("Removed = %d, want 4", result.Removed)
	}
}

func TestErrorFrom_GatewayMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid revalidation token"})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "wrong")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.RevalidatePath(t.Context(), "/blog")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "invalid revalidation token") {
		t.Errorf("error should carry gateway message, got: %v", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry status code, got: %v", err)
	}
}

func TestErrorFrom_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Metrics(t.Context())
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry status code, got: %v", err)
	}
}
