package config

import (
	"testing"
)

func TestExpandEnv_SetVar(t *testing.T) {
	t.Setenv("KILN_TEST_VAR", "hello")

	got := ExpandEnv("value: ${KILN_TEST_VAR}")
	want := "value: hello"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_UnsetVar(t *testing.T) {
	got := ExpandEnv("value: ${KILN_UNSET_VAR_12345}")
	want := "value: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_DefaultUsedWhenUnset(t *testing.T) {
	got := ExpandEnv("value: ${KILN_UNSET_VAR_12345:-fallback}")
	want := "value: fallback"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_DefaultIgnoredWhenSet(t *testing.T) {
	t.Setenv("KILN_TEST_VAR", "real")

	got := ExpandEnv("value: ${KILN_TEST_VAR:-fallback}")
	want := "value: real"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_DefaultUsedWhenEmpty(t *testing.T) {
	t.Setenv("KILN_TEST_VAR", "")

	got := ExpandEnv("value: ${KILN_TEST_VAR:-fallback}")
	want := "value: fallback"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_MultipleVars(t *testing.T) {
	t.Setenv("KILN_CACHE_HOST", "cache.internal")
	t.Setenv("KILN_CACHE_PORT", "6379")

	got := ExpandEnv("redis://${KILN_CACHE_HOST}:${KILN_CACHE_PORT}")
	want := "redis://cache.internal:6379"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExpandEnv_NoVars(t *testing.T) {
	input := "no variables here"
	got := ExpandEnv(input)
	if got != input {
		t.Errorf("got %q, want %q", got, input)
	}
}

func TestExpandEnv_NestedInYAML(t *testing.T) {
	t.Setenv("KILN_REDIS_URL", "redis://prod:6379")
	t.Setenv("KILN_TOKEN", "secret")

	input := `server:
  revalidate_token: ${KILN_TOKEN}
cache:
  backend: redis
  url: ${KILN_REDIS_URL}`

	got := ExpandEnv(input)
	want := `server:
  revalidate_token: secret
cache:
  backend: redis
  url: redis://prod:6379`

	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
