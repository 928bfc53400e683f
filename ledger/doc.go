// Package ledger tracks refresh tokens through their lifecycle: issued,
// rotated, revoked, or expired. Records are Redis hashes keyed by jti, with a
// per-user index set so every outstanding token of a user can be revoked in
// one pass when reuse is detected.
//
// Rotation is a single Lua compare-and-set: two refresh calls racing on the
// same still-valid jti see exactly one winner. A rotated record stays in
// Redis, marked revoked with a replaced-by pointer, until its original expiry
// passes; presenting it again inside that window is distinguishable as reuse
// rather than an unknown token.
package ledger
