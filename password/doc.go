// Package password implements argon2id credential hashing and verification in
// PHC string format.
//
// Verification is parameter-adaptive: the cost parameters embedded in the
// stored hash drive the comparison, so records hashed under older tunings keep
// verifying after the configured costs change. NeedsUpgrade reports when a
// stored hash is weaker than the current configuration so callers can rehash
// on the next successful login.
//
// # What this package must NOT do
//
//   - Log, store, or otherwise retain plaintext passwords.
//   - Return distinguishable errors for "no such hash" vs "wrong password";
//     mismatches are a boolean result, never an error.
package password
