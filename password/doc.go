// Package password hashes and verifies account passwords with bcrypt (the
// default) or argon2id. Verification dispatches on the encoded hash prefix, so
// both formats can coexist while accounts are migrated between algorithms.
//
// Verification is constant-time with respect to the password: bcrypt and the
// argon2id comparison never exit early on a partial match.
package password
