// Package cookie computes transport attributes for the cookie categories the
// engine emits and applies them to HTTP responses.
//
// Five categories are recognized: auth, csrf, session, transient, and
// preference. Each carries a fixed flag set and default lifetime; the secure
// flag and the default SameSite mode follow the environment (production vs
// development). Auth and session cookies are value-signed with HMAC-SHA256 so
// a tampered cookie is rejected before any token parsing happens.
package cookie
