// Package server is the read-mostly HTTP surface over the configured
// adapters: file listings, index families and cache entries, plus health
// and Prometheus metrics.
//
// Routes:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /v1/files?bucket=&exclude=a,b
//	GET    /v1/files/exists?key=&bucket=
//	GET    /v1/folders?bucket=
//	GET    /v1/indices?namespace=
//	GET    /v1/cache/{key}
//	PUT    /v1/cache/{key}?ttl=30s
//	DELETE /v1/cache/{key}
//
// A route group whose adapter is nil is not mounted.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/koustreak/roubi/internal/cache"
	"github.com/koustreak/roubi/internal/errs"
	"github.com/koustreak/roubi/internal/filestore"
	"github.com/koustreak/roubi/internal/logger"
	"github.com/koustreak/roubi/internal/search"
)

const maxCacheValue = 1 << 20

// Files is the part of *filestore.Adapter the server uses.
type Files interface {
	ListFiles(ctx context.Context, opts filestore.ListOptions) ([]filestore.ObjectEntry, error)
	ListFolders(ctx context.Context, opts filestore.ListOptions) ([]filestore.ObjectEntry, error)
	CheckAccessible(ctx context.Context, key, bucket string) (bool, error)
}

// Deps are the adapters behind the /v1 routes. Any of them may be nil.
type Deps struct {
	Files  Files
	Search search.Engine
	Cache  cache.Cache
}

// Server routes HTTP requests to the adapters.
type Server struct {
	deps    Deps
	log     *logger.Logger
	metrics *Metrics
	router  chi.Router
}

// New builds the router. A nil metrics gets a fresh registry.
func New(deps Deps, log *logger.Logger, metrics *Metrics) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	s := &Server{deps: deps, log: log, metrics: metrics}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if s.deps.Files != nil {
			r.Get("/files", s.handleFiles)
			r.Get("/files/exists", s.handleFileExists)
			r.Get("/folders", s.handleFolders)
		}
		if s.deps.Search != nil {
			r.Get("/indices", s.handleIndices)
		}
		if s.deps.Cache != nil {
			r.Get("/cache/{key}", s.handleCacheGet)
			r.Put("/cache/{key}", s.handleCacheSet)
			r.Delete("/cache/{key}", s.handleCacheDelete)
		}
	})
	return r
}

// observe records one log line and the request metrics per request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		s.metrics.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		s.metrics.duration.WithLabelValues(route).Observe(elapsed.Seconds())

		s.log.Request().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func listOptions(r *http.Request) filestore.ListOptions {
	q := r.URL.Query()
	opts := filestore.ListOptions{Bucket: q.Get("bucket")}
	if q.Has("exclude") {
		opts.ExcludeFormats = []string{}
		for _, f := range strings.Split(q.Get("exclude"), ",") {
			if f = strings.TrimSpace(f); f != "" {
				opts.ExcludeFormats = append(opts.ExcludeFormats, f)
			}
		}
	}
	return opts
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Files.ListFiles(r.Context(), listOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Files.ListFolders(r.Context(), listOptions(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entries))
}

func (s *Server) handleFileExists(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeError(w, errs.New(errs.ErrKindInvalidInput, "key is required"))
		return
	}
	ok, err := s.deps.Files.CheckAccessible(r.Context(), key, r.URL.Query().Get("bucket"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "accessible": ok})
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.deps.Search.ListIndexPatterns(r.Context(), r.URL.Query().Get("namespace"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(summaries))
}

func (s *Server) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	val, ok, err := s.deps.Cache.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, errs.New(errs.ErrKindNotFound, "no such key"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": val})
}

func (s *Server) handleCacheSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var ttl time.Duration
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			s.writeError(w, errs.New(errs.ErrKindInvalidInput, "ttl must be a non-negative duration"))
			return
		}
		ttl = d
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCacheValue+1))
	if err != nil {
		s.writeError(w, errs.Wrap(errs.ErrKindInvalidInput, "cannot read body", err))
		return
	}
	if len(body) > maxCacheValue {
		s.writeError(w, errs.New(errs.ErrKindInvalidInput, "value too large"))
		return
	}

	if err := s.deps.Cache.Set(r.Context(), key, string(body), ttl); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Cache.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindConflict:
		return http.StatusConflict
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindNotConnected, errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)

	if kind != errs.ErrKindInvalidInput && kind != errs.ErrKindNotFound {
		s.metrics.adapterErrs.WithLabelValues(kind.String()).Inc()
		s.log.ErrorWith("adapter call failed", err, map[string]interface{}{"kind": kind.String()})
	}

	msg := err.Error()
	var e *errs.Error
	if errors.As(err, &e) {
		// the cause may carry backend detail; keep it in the log only
		msg = e.Message
	}
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind.String()})
}

// nonNil keeps empty listings encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Run serves h on addr until ctx is cancelled, then shuts down gracefully
// within shutdownTimeout.
func Run(ctx context.Context, addr string, h http.Handler, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
