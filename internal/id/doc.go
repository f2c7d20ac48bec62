// Package id provides unique identifier generation utilities.
//
// It provides two ID formats:
//
//   - UUID: Standard UUID v4 (random) for general-purpose unique identifiers
//   - Short: 16-character hex IDs for user-facing contexts where brevity matters
//
// All ID generation uses crypto/rand for secure randomness.
package id
