// Package sqlite provides a SQLite-backed connect service store.
//
// It persists pending OAuth states, sealed platform credentials and the
// credential audit log. Only ciphertext blobs reach this layer.
package sqlite
