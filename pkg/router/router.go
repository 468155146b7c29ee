// Package router is a small method-and-path router over http.ServeMux.
// A "*" segment in a pattern matches exactly one path segment; matched
// segments are available to handlers through Params.
package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type HandlerFunc func(http.ResponseWriter, *http.Request)

type route struct {
	method   string
	pattern  string
	segments []string
	handler  HandlerFunc
}

type mount struct {
	prefix  string
	handler http.Handler
}

// Router dispatches to the first registered route that matches. Register
// specific patterns before general ones.
type Router struct {
	mux    *http.ServeMux
	routes []route
	mounts []mount
	log    zerolog.Logger
}

type paramsKey struct{}

// New creates a router that logs each request to log.
func New(log zerolog.Logger) *Router {
	r := &Router{mux: http.NewServeMux(), log: log}
	r.mux.HandleFunc("/", r.dispatch)
	return r
}

// Params returns the segments matched by "*" in the route pattern, in order.
func Params(req *http.Request) []string {
	params, _ := req.Context().Value(paramsKey{}).([]string)
	return params
}

// Param returns the i-th wildcard segment or "".
func Param(req *http.Request, i int) string {
	params := Params(req)
	if i < 0 || i >= len(params) {
		return ""
	}
	return params[i]
}

func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

	r.serve(lrw, req)

	r.log.Info().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", lrw.statusCode).
		Dur("duration", time.Since(start)).
		Msg("HTTP request")
}

func (r *Router) serve(w http.ResponseWriter, req *http.Request) {
	for _, m := range r.mounts {
		if strings.HasPrefix(req.URL.Path, m.prefix) {
			m.handler.ServeHTTP(w, req)
			return
		}
	}

	segments := split(req.URL.Path)
	pathMatched := false
	for _, rt := range r.routes {
		params, ok := match(segments, rt.segments)
		if !ok {
			continue
		}
		if rt.method != req.Method {
			pathMatched = true
			continue
		}
		ctx := context.WithValue(req.Context(), paramsKey{}, params)
		rt.handler(w, req.WithContext(ctx))
		return
	}

	if pathMatched {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// match compares request segments against a pattern, collecting wildcard values.
func match(requestSegments, routeSegments []string) ([]string, bool) {
	if len(requestSegments) != len(routeSegments) {
		return nil, false
	}
	var params []string
	for i, seg := range routeSegments {
		if seg == "*" {
			if requestSegments[i] == "" {
				return nil, false
			}
			params = append(params, requestSegments[i])
			continue
		}
		if requestSegments[i] != seg {
			return nil, false
		}
	}
	return params, true
}

// --- Register paths ---
func (r *Router) register(method, path string, handler HandlerFunc) {
	r.routes = append(r.routes, route{method: method, pattern: path, segments: split(path), handler: handler})
}

func (r *Router) GET(path string, handler HandlerFunc)   { r.register(http.MethodGet, path, handler) }
func (r *Router) POST(path string, handler HandlerFunc)  { r.register(http.MethodPost, path, handler) }
func (r *Router) PUT(path string, handler HandlerFunc)   { r.register(http.MethodPut, path, handler) }
func (r *Router) PATCH(path string, handler HandlerFunc) { r.register(http.MethodPatch, path, handler) }
func (r *Router) DELETE(path string, handler HandlerFunc) {
	r.register(http.MethodDelete, path, handler)
}

// Handle serves every path under prefix with h, ahead of the method routes.
func (r *Router) Handle(prefix string, h http.Handler) {
	r.mounts = append(r.mounts, mount{prefix: prefix, handler: h})
}

// Routes lists registered routes as "METHOD pattern", in match order.
func (r *Router) Routes() []string {
	out := make([]string, len(r.routes))
	for i, rt := range r.routes {
		out[i] = rt.method + " " + rt.pattern
	}
	return out
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// --- Logging response writer to capture status codes ---
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}
