package server

import (
	"net/http"
	"strings"
)

// BasicRouter is a simple method-aware HTTP router with a middleware stack.
//
// Uses [http.ServeMux] internally for routing; unmatched paths and wrong methods answer with the
// JSON error envelope.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	notFound    http.Handler
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		middlewares: []Middleware{},
		notFound: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			writeErrorMessage(w, http.StatusNotFound, "not_found", "no route for "+req.URL.Path)
		}),
	}
}

// Use adds [Middleware] to the router's middleware stack, applied in the order it's added.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the specified HTTP method and path. GET routes also answer HEAD.
//
// The handler is wrapped with all registered middleware.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	methodHandler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !methodMatches(method, req.Method) {
			w.Header().Set("Allow", method)
			writeErrorMessage(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		handler.ServeHTTP(w, req)
	})

	r.mux.Handle(path, r.Apply(methodHandler))
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if _, pattern := r.mux.Handler(req); pattern == "" {
		r.Apply(r.notFound).ServeHTTP(w, req)
		return
	}
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}

func methodMatches(route, got string) bool {
	if strings.EqualFold(route, got) {
		return true
	}
	return strings.EqualFold(route, http.MethodGet) && strings.EqualFold(got, http.MethodHead)
}
