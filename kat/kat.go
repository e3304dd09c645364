// Package kat embeds the known-answer test vectors shipped with primlab.
//
// Files are organized by category:
//   - hash/       - digest vectors (FIPS 180-4, FIPS 202, RFC 7693, RIPEMD-160)
//   - cipher/     - block cipher vectors (FIPS 197, SP 800-38A)
//   - signature/  - signature vectors (RFC 8032 Ed25519 and Ed448, RFC 6979 secp256k1), with negatives
//
// Any of them can be copied, edited and passed back with --vectors.
package kat

import "embed"

// FS contains all embedded vector files.
//
//go:embed all:hash all:cipher all:signature
var FS embed.FS
