// Package token issues and verifies the two JWT kinds minted by the engine:
// short-lived access tokens carrying the identity triple and refresh tokens
// carrying a ledger id (jti). Both are HS256-signed with a shared secret.
//
// Verification fails closed. Signature, expiry, issuer, and token kind are
// all enforced before any claim is surfaced; a bounded leeway absorbs clock
// skew between issuing and verifying hosts.
package token
