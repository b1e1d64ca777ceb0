// Package server exposes the render gateway over HTTP.
//
// Each configured route maps a public pathname to an upstream URL. GET
// requests are served from the incremental cache when a fresh artifact
// exists, otherwise a render pass fetches the upstream through the
// instrumented client and the resulting artifact is classified, cached,
// and served. On-demand revalidation and a metrics snapshot are exposed
// under the /-/ control prefix.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/kiln/adapter"
	"github.com/pithecene-io/kiln/cache"
	"github.com/pithecene-io/kiln/fetch"
	"github.com/pithecene-io/kiln/log"
	"github.com/pithecene-io/kiln/metrics"
	"github.com/pithecene-io/kiln/render"
	"github.com/pithecene-io/kiln/types"
)

// Header names exposed on rendered responses.
const (
	HeaderCache      = "X-Kiln-Cache"      // hit, miss, dynamic
	HeaderOutcome    = "X-Kiln-Outcome"    // static, dynamic, failed
	HeaderRevalidate = "X-Kiln-Revalidate" // never, <seconds>, unset
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Route maps a public pathname to an upstream and its render settings.
type Route struct {
	// Path is the logical route pathname (rooted).
	Path string
	// RewriteFrom is an optional public alias that rewrites to Path. When a
	// request arrives on the alias, the pass records Path as the pathname
	// and the alias as the original pathname.
	RewriteFrom string
	// Upstream is the URL fetched to produce the artifact.
	Upstream string
	// Static requests static generation for this route.
	Static bool
	// Revalidate is the route-level revalidation policy.
	Revalidate types.Revalidate
	// FetchCache is the route-level fetch caching policy.
	FetchCache types.FetchCachePolicy
	// DynamicShouldError makes dynamic behavior on this route fatal.
	DynamicShouldError bool
	// Tags are cache tags attached to the route's artifact.
	Tags []string
}

// Config configures the gateway server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// RevalidateToken guards POST /-/revalidate. Empty disables the endpoint.
	RevalidateToken string
	// Routes is the route table.
	Routes []Route
	// Cache is the incremental cache. May be nil for uncached operation.
	Cache cache.Incremental
	// Collector receives process metrics. May be nil.
	Collector *metrics.Collector
	// Adapter receives pass completion events. May be nil.
	Adapter adapter.Adapter
	// Fetcher is the instrumented fetch client. Nil builds a default one.
	Fetcher *fetch.Client
}

// Server is the render gateway.
type Server struct {
	cfg     Config
	routes  map[string]*Route // keyed by Path and by RewriteFrom
	fetcher *fetch.Client
	logger  *log.Logger
}

// New creates a gateway server from the given config.
func New(cfg Config) (*Server, error) {
	if len(cfg.Routes) == 0 {
		return nil, errors.New("server: no routes configured")
	}

	routes := make(map[string]*Route, len(cfg.Routes))
	for i := range cfg.Routes {
		rt := &cfg.Routes[i]
		if !strings.HasPrefix(rt.Path, "/") {
			return nil, fmt.Errorf("server: route path %q must be rooted", rt.Path)
		}
		if rt.Upstream == "" {
			return nil, fmt.Errorf("server: route %s has no upstream", rt.Path)
		}
		if _, dup := routes[rt.Path]; dup {
			return nil, fmt.Errorf("server: duplicate route %s", rt.Path)
		}
		routes[rt.Path] = rt

		if rt.RewriteFrom != "" {
			if !strings.HasPrefix(rt.RewriteFrom, "/") {
				return nil, fmt.Errorf("server: rewrite source %q must be rooted", rt.RewriteFrom)
			}
			if _, dup := routes[rt.RewriteFrom]; dup {
				return nil, fmt.Errorf("server: duplicate route %s", rt.RewriteFrom)
			}
			routes[rt.RewriteFrom] = rt
		}
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewClient(nil, cfg.Collector)
	}

	return &Server{
		cfg:     cfg,
		routes:  routes,
		fetcher: fetcher,
		logger:  log.NewLogger(nil),
	}, nil
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /-/revalidate", s.handleRevalidate)
	mux.HandleFunc("GET /-/metrics", s.handleMetrics)
	mux.HandleFunc("GET /", s.handleRender)
	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", map[string]any{
			"addr":   ln.Addr().String(),
			"routes": len(s.cfg.Routes),
		})
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleRender serves a configured route, from cache when possible.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Path
	rt, ok := s.routes[requested]
	if !ok {
		http.NotFound(w, r)
		return
	}

	// Fresh artifact short-circuit.
	if rt.Static && s.cfg.Cache != nil {
		entry, err := s.cfg.Cache.Read(r.Context(), cache.RouteKey(rt.Path))
		if err == nil && entry != nil && entry.Fresh(time.Now()) {
			s.cfg.Collector.IncCacheHit()
			w.Header().Set(HeaderCache, "hit")
			w.Header().Set(HeaderOutcome, string(types.OutcomeStatic))
			s.writeArtifact(w, entry.ContentType, entry.Revalidate, entry.Body)
			return
		}
	}

	route := types.RouteMeta{RequestID: uuid.NewString(), Pathname: rt.Path}
	if requested != rt.Path {
		original := requested
		route.OriginalPathname = &original
	}

	orch, err := render.NewOrchestrator(s.passConfig(rt, route, false))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := orch.Execute(r.Context(), s.renderFunc(rt))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if result.Outcome == types.OutcomeFailed {
		msg := result.Message
		if result.DynamicUsageDescription != "" {
			msg = fmt.Sprintf("dynamic behavior on a static-only route: %s", result.DynamicUsageDescription)
		}
		s.writeError(w, http.StatusInternalServerError, msg)
		return
	}

	switch result.Outcome {
	case types.OutcomeStatic:
		w.Header().Set(HeaderCache, "miss")
	default:
		w.Header().Set(HeaderCache, "dynamic")
	}
	w.Header().Set(HeaderOutcome, string(result.Outcome))
	s.writeArtifact(w, render.DefaultArtifactContentType, result.Revalidate, result.Body)
}

// passConfig assembles the render pass configuration for a route.
func (s *Server) passConfig(rt *Route, route types.RouteMeta, onDemand bool) *render.PassConfig {
	return &render.PassConfig{
		Route:              route,
		Static:             rt.Static,
		DynamicShouldError: rt.DynamicShouldError,
		FetchCache:         rt.FetchCache,
		DefaultRevalidate:  rt.Revalidate,
		Tags:               rt.Tags,
		OnDemandRevalidate: onDemand,
		Cache:              s.cfg.Cache,
		Collector:          s.cfg.Collector,
		Adapter:            s.cfg.Adapter,
	}
}

// renderFunc produces the route artifact by fetching the upstream through
// the instrumented client, with the pass's store ambient in ctx.
func (s *Server) renderFunc(rt *Route) render.RenderFunc {
	return func(ctx context.Context) ([]byte, error) {
		res, err := s.fetcher.Get(ctx, rt.Upstream, fetch.Options{})
		if err != nil {
			return nil, err
		}
		if res.Status >= 400 {
			return nil, fmt.Errorf("upstream %s: status %d", rt.Upstream, res.Status)
		}
		return res.Body, nil
	}
}

// writeArtifact writes the artifact with cache headers derived from the
// effective revalidation policy.
func (s *Server) writeArtifact(w http.ResponseWriter, contentType string, revalidate types.Revalidate, body []byte) {
	if contentType == "" {
		contentType = render.DefaultArtifactContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set(HeaderRevalidate, revalidate.String())

	switch {
	case revalidate.IsSet() && !revalidate.Never():
		w.Header().Set("Cache-Control", fmt.Sprintf("s-maxage=%d, stale-while-revalidate", revalidate.Seconds()))
	case revalidate.Never():
		w.Header().Set("Cache-Control", "s-maxage=31536000")
	default:
		w.Header().Set("Cache-Control", "no-store")
	}

	_, _ = w.Write(body)
}

// revalidateRequest is the POST /-/revalidate payload. Exactly one of path
// or tag must be set.
type revalidateRequest struct {
	Path string `json:"path,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

type revalidateResponse struct {
	Revalidated bool   `json:"revalidated"`
	Path        string `json:"path,omitempty"`
	Tag         string `json:"tag,omitempty"`
	Removed     int    `json:"removed,omitempty"`
}

func (s *Server) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	if s.cfg.RevalidateToken == "" {
		s.writeError(w, http.StatusNotFound, "revalidation disabled")
		return
	}
	if token := bearerToken(r); token != s.cfg.RevalidateToken {
		s.writeError(w, http.StatusUnauthorized, "invalid revalidation token")
		return
	}
	if s.cfg.Cache == nil {
		s.writeError(w, http.StatusConflict, "no incremental cache configured")
		return
	}

	var req revalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if (req.Path == "") == (req.Tag == "") {
		s.writeError(w, http.StatusBadRequest, "exactly one of path or tag required")
		return
	}

	rv, err := render.NewRevalidator(s.cfg.Cache, s.cfg.Collector, s.cfg.Adapter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Tag != "" {
		removed, err := rv.RevalidateTag(r.Context(), req.Tag)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, revalidateResponse{Revalidated: true, Tag: req.Tag, Removed: removed})
		return
	}

	if _, err := rv.RevalidatePath(r.Context(), req.Path, nil); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Re-render immediately when the path is a configured route, so the
	// next request is served fresh from the artifact.
	if rt, ok := s.routes[req.Path]; ok && rt.Path == req.Path {
		route := types.RouteMeta{RequestID: uuid.NewString(), Pathname: rt.Path}
		orch, err := render.NewOrchestrator(s.passConfig(rt, route, true))
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		result, err := orch.Execute(r.Context(), s.renderFunc(rt))
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if result.Outcome == types.OutcomeFailed {
			s.writeError(w, http.StatusBadGateway, "re-render failed: "+result.Message)
			return
		}
	}
	s.writeJSON(w, http.StatusOK, revalidateResponse{Revalidated: true, Path: req.Path})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Collector.Snapshot())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", map[string]any{
			"error": err.Error(),
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}
