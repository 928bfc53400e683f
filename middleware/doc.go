// Package middleware adapts the sessionguard engine to net/http: an
// authentication guard that exposes the identity triple to downstream
// handlers, a double-submit CSRF filter, per-class rate limiting, and the
// session route set (login, refresh, logout) with its deprecated mount.
//
// Handlers in this package never make authorization decisions; they attach
// identity and enforce transport-level policy only.
package middleware
