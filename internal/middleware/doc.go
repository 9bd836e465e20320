// Package middleware provides the HTTP middleware of the photo library
// server: a W3C-style access log written through the logging package and
// Prometheus request metrics labelled by gorilla/mux route template. Both
// share one response writer wrapper that supports websocket upgrades.
package middleware
