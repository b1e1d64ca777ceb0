package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/kiln/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiln.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
service: edge-gateway
server:
  addr: ":9090"
  revalidate_token: secret
cache:
  backend: redis
  url: redis://localhost:6379
  prefix: kiln
  evict_after: 24h
routes:
  - path: /blog
    rewrite_from: /weblog
    upstream: https://cms.example.com/blog
    static: true
    revalidate: 60
    fetch_cache: default-cache
    tags: [posts]
  - path: /pricing
    upstream: https://cms.example.com/pricing
    static: true
    revalidate: never
  - path: /now
    upstream: https://api.example.com/now
    fetch_cache: force-no-store
adapter:
  type: webhook
  url: https://hooks.example.com/kiln
  headers:
    Authorization: Bearer hook-token
  timeout: 5s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ServiceName() != "edge-gateway" {
		t.Errorf("service = %q", cfg.ServiceName())
	}
	if cfg.ListenAddr() != ":9090" || cfg.Server.RevalidateToken != "secret" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.EvictAfter.Duration != 24*time.Hour {
		t.Errorf("cache = %+v", cfg.Cache)
	}

	if len(cfg.Routes) != 3 {
		t.Fatalf("routes = %d", len(cfg.Routes))
	}
	blog := cfg.Routes[0]
	if blog.RewriteFrom != "/weblog" || !blog.Static || blog.Revalidate != types.RevalidateAfter(60) {
		t.Errorf("blog route = %+v", blog)
	}
	if cfg.Routes[1].Revalidate != types.RevalidateNever() {
		t.Errorf("pricing revalidate = %v", cfg.Routes[1].Revalidate)
	}

	if cfg.Adapter.Type != "webhook" || cfg.Adapter.Timeout.Duration != 5*time.Second {
		t.Errorf("adapter = %+v", cfg.Adapter)
	}
	if cfg.Adapter.Headers["Authorization"] != "Bearer hook-token" {
		t.Errorf("adapter headers = %v", cfg.Adapter.Headers)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
routes:
  - path: /
    upstream: https://example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName() != "kiln" {
		t.Errorf("service = %q, want kiln", cfg.ServiceName())
	}
	if cfg.ListenAddr() != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.ListenAddr())
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("KILN_REDIS_URL", "redis://prod:6379")

	path := writeConfig(t, `
server:
  revalidate_token: ${KILN_TOKEN:-fallback}
cache:
  backend: redis
  url: ${KILN_REDIS_URL}
routes:
  - path: /
    upstream: https://example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Cache.URL != "redis://prod:6379" {
		t.Errorf("url = %q", cfg.Cache.URL)
	}
	if cfg.Server.RevalidateToken != "fallback" {
		t.Errorf("token = %q, want fallback default", cfg.Server.RevalidateToken)
	}
}

func TestLoad_NoRoutes(t *testing.T) {
	path := writeConfig(t, `
service: kiln
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for config without routes")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "routes: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
cache:
  evict_after: soon
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestServerRoutes(t *testing.T) {
	cfg := &Config{Routes: []RouteConfig{
		{Path: "/blog", Upstream: "https://cms.example.com/blog", Static: true, FetchCache: "only-cache", Tags: []string{"posts"}},
		{Path: "/now", Upstream: "https://api.example.com/now"},
	}}

	routes, err := cfg.ServerRoutes()
	if err != nil {
		t.Fatalf("server routes: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("routes = %d", len(routes))
	}
	if routes[0].FetchCache != types.FetchCacheOnlyCache {
		t.Errorf("fetch cache = %q", routes[0].FetchCache)
	}
	if routes[1].FetchCache != types.FetchCacheUnset {
		t.Errorf("unstated fetch cache = %q", routes[1].FetchCache)
	}
}

func TestServerRoutes_InvalidPolicy(t *testing.T) {
	cfg := &Config{Routes: []RouteConfig{
		{Path: "/blog", Upstream: "https://u", FetchCache: "sometimes"},
	}}
	if _, err := cfg.ServerRoutes(); err == nil {
		t.Fatal("expected error for invalid fetch cache policy")
	}
}
