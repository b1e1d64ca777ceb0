package config

import (
	"fmt"
	"time"

	"github.com/pithecene-io/kiln/server"
	"github.com/pithecene-io/kiln/types"
)

// Config represents a kiln.yaml configuration file.
type Config struct {
	// Service is the service name reported in metrics (default: kiln).
	Service string        `yaml:"service"`
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Routes  []RouteConfig `yaml:"routes"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// Addr is the listen address (default :8080).
	Addr string `yaml:"addr"`
	// RevalidateToken guards POST /-/revalidate. Empty disables it.
	RevalidateToken string `yaml:"revalidate_token"`
}

// CacheConfig selects and configures the incremental cache backend.
type CacheConfig struct {
	// Backend is memory, redis, or s3 (default memory).
	Backend string `yaml:"backend"`
	// URL is the Redis connection URL (redis backend).
	URL string `yaml:"url"`
	// Prefix namespaces keys within a shared backend.
	Prefix string `yaml:"prefix"`
	// EvictAfter optionally bounds entry storage (redis backend).
	EvictAfter Duration `yaml:"evict_after"`
	// Bucket, Region, Endpoint configure the S3 backend. Endpoint plus
	// S3PathStyle support S3-compatible stores such as R2 and MinIO.
	Bucket      string `yaml:"bucket"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// RouteConfig is one entry in the route table.
type RouteConfig struct {
	Path               string           `yaml:"path"`
	RewriteFrom        string           `yaml:"rewrite_from,omitempty"`
	Upstream           string           `yaml:"upstream"`
	Static             bool             `yaml:"static"`
	Revalidate         types.Revalidate `yaml:"revalidate,omitempty"`
	FetchCache         string           `yaml:"fetch_cache,omitempty"`
	DynamicShouldError bool             `yaml:"dynamic_should_error,omitempty"`
	Tags               []string         `yaml:"tags,omitempty"`
}

// AdapterConfig configures the downstream notification adapter.
type AdapterConfig struct {
	// Type is redis or webhook. Empty disables notifications.
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// ServiceName returns the configured service name or the default.
func (c *Config) ServiceName() string {
	if c.Service == "" {
		return "kiln"
	}
	return c.Service
}

// ListenAddr returns the configured listen address or the default.
func (c *Config) ListenAddr() string {
	if c.Server.Addr == "" {
		return ":8080"
	}
	return c.Server.Addr
}

// ServerRoutes converts the route table into server routes, validating
// each entry's fetch-cache policy.
func (c *Config) ServerRoutes() ([]server.Route, error) {
	routes := make([]server.Route, 0, len(c.Routes))
	for _, rc := range c.Routes {
		policy := types.FetchCacheUnset
		if rc.FetchCache != "" {
			p, err := types.ParseFetchCachePolicy(rc.FetchCache)
			if err != nil {
				return nil, fmt.Errorf("route %s: %w", rc.Path, err)
			}
			policy = p
		}
		routes = append(routes, server.Route{
			Path:               rc.Path,
			RewriteFrom:        rc.RewriteFrom,
			Upstream:           rc.Upstream,
			Static:             rc.Static,
			Revalidate:         rc.Revalidate,
			FetchCache:         policy,
			DynamicShouldError: rc.DynamicShouldError,
			Tags:               rc.Tags,
		})
	}
	return routes, nil
}
