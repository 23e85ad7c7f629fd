package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// MaxAmount is the largest value the reference scheme represents. Mirrors
// the fixed-width range of the production encryption scheme.
const MaxAmount = 1e12

// AESGCMCodec is the reference Codec used in tests and development wiring.
// It seals the amount with AES-GCM and attaches a keyed commitment over the
// plaintext as the proof. The production scheme is an external collaborator
// dropped in behind the same interface.
type AESGCMCodec struct {
	key     []byte
	viewers map[ViewerCredential]struct{}
}

// NewAESGCMCodec builds a codec over a 32-byte key. Viewers is the set of
// credentials allowed to decode; the key holder derives them out of band.
func NewAESGCMCodec(key []byte, viewers ...ViewerCredential) (*AESGCMCodec, error) {
	if len(key) != 32 {
		return nil, ErrEncoding
	}
	c := &AESGCMCodec{key: append([]byte(nil), key...), viewers: make(map[ViewerCredential]struct{}, len(viewers))}
	for _, v := range viewers {
		c.viewers[v] = struct{}{}
	}
	return c, nil
}

// Authorize grants an additional viewer credential.
func (c *AESGCMCodec) Authorize(v ViewerCredential) { c.viewers[v] = struct{}{} }

func (c *AESGCMCodec) Encode(amount float64) (SealedAmount, error) {
	if amount < 0 || amount > MaxAmount || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return SealedAmount{}, ErrEncoding
	}

	plain := make([]byte, 8)
	binary.BigEndian.PutUint64(plain, math.Float64bits(amount))

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return SealedAmount{}, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return SealedAmount{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return SealedAmount{}, err
	}
	ct := gcm.Seal(nonce, nonce, plain, nil)

	mac := hmac.New(sha256.New, c.key)
	mac.Write(plain)
	return SealedAmount{Ciphertext: ct, Proof: mac.Sum(nil)}, nil
}

func (c *AESGCMCodec) Decode(sealed SealedAmount, viewer ViewerCredential) (float64, error) {
	if _, ok := c.viewers[viewer]; !ok {
		return 0, ErrAuthorization
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return 0, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return 0, err
	}
	if len(sealed.Ciphertext) < gcm.NonceSize() {
		return 0, ErrDecoding
	}
	nonce, ct := sealed.Ciphertext[:gcm.NonceSize()], sealed.Ciphertext[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil || len(plain) != 8 {
		return 0, ErrDecoding
	}
	return math.Float64frombits(binary.BigEndian.Uint64(plain)), nil
}
