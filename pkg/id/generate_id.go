// Package id mints the external identifiers vaults and loans are addressed
// by: 32 lowercase hex characters, the shape the hex32 request-validation
// tag accepts.
package id

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID32 draws 16 random bytes and returns them hex-encoded.
func NewID32() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
