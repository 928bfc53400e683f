// Package sessionguard provides a session-security core for cookie-based web
// authentication: signed JWT access tokens, rotating refresh tokens with reuse
// detection, a cookie transport-policy engine, double-submit CSRF defense, and
// layered Redis-backed rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// sessionguard is the public surface. It exposes [Engine], [Builder], [Config], and
// value types (SessionArtifacts, AuthResult, MetricsSnapshot, etc.). Leaf components
// live in their own sub-packages (token, password, cookie, csrf, ledger); rate
// limiting lives under internal/ and is never exported directly.
//
// # What this package must NOT do
//
//   - Write credential records. Accounts are owned by the host application and
//     reached only through the read-only [CredentialStore].
//   - Make authorization decisions. [Engine.Authenticate] yields identity
//     (subject, account type, email) and nothing more.
//   - Expose Redis clients, key layouts, or signing keys in its public API.
//
// # Failure posture
//
// Token verification fails closed: a malformed, mis-signed, or expired token is
// invalid, never partially trusted. Credential failures are indistinguishable from
// unknown accounts. Refresh rotation is a single atomic compare-and-set against the
// ledger; presenting an already-rotated token is a reuse event that revokes every
// outstanding refresh token for that user.
package sessionguard
