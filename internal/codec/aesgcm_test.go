package codec

import (
	"bytes"
	"errors"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestNewAESGCMCodec_RejectsShortKey(t *testing.T) {
	if _, err := NewAESGCMCodec([]byte("short")); !errors.Is(err, ErrEncoding) {
		t.Fatalf("want ErrEncoding, got %v", err)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	c, err := NewAESGCMCodec(testKey(), "owner")
	if err != nil {
		t.Fatalf("NewAESGCMCodec: %v", err)
	}

	for _, amount := range []float64{0, 0.01, 1_234.56, 9_000, MaxAmount} {
		sealed, err := c.Encode(amount)
		if err != nil {
			t.Fatalf("Encode(%v): %v", amount, err)
		}
		if len(sealed.Ciphertext) == 0 || len(sealed.Proof) == 0 {
			t.Fatalf("Encode(%v): empty sealed amount", amount)
		}
		got, err := c.Decode(sealed, "owner")
		if err != nil {
			t.Fatalf("Decode(%v): %v", amount, err)
		}
		if got != amount {
			t.Fatalf("round trip: got %v, want %v", got, amount)
		}
	}
}

func TestEncode_RejectsOutOfRange(t *testing.T) {
	c, _ := NewAESGCMCodec(testKey())
	for _, amount := range []float64{-0.01, MaxAmount + 1} {
		if _, err := c.Encode(amount); !errors.Is(err, ErrEncoding) {
			t.Fatalf("Encode(%v): want ErrEncoding, got %v", amount, err)
		}
	}
}

func TestDecode_UnauthorizedViewer(t *testing.T) {
	c, _ := NewAESGCMCodec(testKey(), "owner")
	sealed, err := c.Encode(500)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := c.Decode(sealed, "stranger"); !errors.Is(err, ErrAuthorization) {
		t.Fatalf("want ErrAuthorization, got %v", err)
	}

	// Granting the credential unlocks decode.
	c.Authorize("stranger")
	if _, err := c.Decode(sealed, "stranger"); err != nil {
		t.Fatalf("after Authorize: %v", err)
	}
}

func TestDecode_MalformedCiphertext(t *testing.T) {
	c, _ := NewAESGCMCodec(testKey(), "owner")

	if _, err := c.Decode(SealedAmount{Ciphertext: []byte{1, 2, 3}}, "owner"); !errors.Is(err, ErrDecoding) {
		t.Fatalf("short ciphertext: want ErrDecoding, got %v", err)
	}

	sealed, _ := c.Encode(500)
	sealed.Ciphertext[len(sealed.Ciphertext)-1] ^= 0xff
	if _, err := c.Decode(sealed, "owner"); !errors.Is(err, ErrDecoding) {
		t.Fatalf("tampered ciphertext: want ErrDecoding, got %v", err)
	}
}

func TestEncode_FreshNoncePerCall(t *testing.T) {
	c, _ := NewAESGCMCodec(testKey(), "owner")
	a, _ := c.Encode(500)
	b, _ := c.Encode(500)
	if bytes.Equal(a.Ciphertext, b.Ciphertext) {
		t.Fatalf("two encodings of the same amount must not share ciphertext")
	}
	// The proof is a deterministic commitment over the plaintext.
	if !bytes.Equal(a.Proof, b.Proof) {
		t.Fatalf("proof over the same plaintext must be stable")
	}
}
