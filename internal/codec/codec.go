// Package codec is the boundary to the external confidential-value scheme.
// The engine only ever consumes this interface; SealedAmount blobs are
// opaque to every other package.
package codec

import "errors"

var (
	ErrEncoding      = errors.New("codec: amount not representable")
	ErrDecoding      = errors.New("codec: malformed ciphertext")
	ErrAuthorization = errors.New("codec: viewer not authorized")
)

// SealedAmount is a ciphertext plus the validity proof the ledger verifies.
type SealedAmount struct {
	Ciphertext []byte `json:"ciphertext"`
	Proof      []byte `json:"proof"`
}

// ViewerCredential is an opaque token proving decode rights (owner or a
// designated verifier). The codec implementation decides what it means.
type ViewerCredential string

// Codec seals plaintext amounts for the ledger and recovers them for
// authorized viewers. Encode may be randomized (proofs usually are), but
// Decode(Encode(x)) must always return x exactly.
type Codec interface {
	Encode(amount float64) (SealedAmount, error)
	Decode(sealed SealedAmount, viewer ViewerCredential) (float64, error)
}
