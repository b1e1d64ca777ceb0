package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pithecene-io/kiln/types"
)

func TestLogger_RouteContextFields(t *testing.T) {
	var buf bytes.Buffer
	original := "/posts/hello"
	route := &types.RouteMeta{
		RequestID:        "req-001",
		Pathname:         "/blog/hello",
		OriginalPathname: &original,
	}

	logger := newLoggerWithWriter(route, &buf)
	logger.Info("pass started", map[string]any{"static": true})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}

	if entry["request_id"] != "req-001" {
		t.Errorf("request_id = %v, want req-001", entry["request_id"])
	}
	if entry["pathname"] != "/blog/hello" {
		t.Errorf("pathname = %v", entry["pathname"])
	}
	if entry["original_pathname"] != "/posts/hello" {
		t.Errorf("original_pathname = %v", entry["original_pathname"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["message"] != "pass started" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestLogger_NilRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(nil, &buf)
	logger.Warn("no ambient pass", nil)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if _, ok := entry["request_id"]; ok {
		t.Error("nil route must not emit request_id")
	}
}

func TestLogger_Sugar(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerWithWriter(&types.RouteMeta{RequestID: "req-002", Pathname: "/"}, &buf)

	logger.Sugar().Infof("rendered %d routes", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["message"] != "rendered 3 routes" {
		t.Errorf("message = %v", entry["message"])
	}
}
