package chain

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ed25519Flag is the signature-scheme flag prefixed to keys, addresses and signatures.
const ed25519Flag byte = 0x00

// intentTransactionData is the intent prefix (scope, version, app id) for transaction signing.
var intentTransactionData = []byte{0, 0, 0}

// Signer signs transactions with an Ed25519 key.
type Signer struct {
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	address string
}

// NewSigner builds a signer from a 32-byte Ed25519 seed.
func NewSigner(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Signer{priv: priv, pub: pub, address: deriveAddress(pub)}, nil
}

// ParseSigner decodes a base64 keystore entry: flag(1) || seed(32).
// A bare 32-byte seed is accepted as well.
func ParseSigner(encoded string) (*Signer, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize + 1:
		if raw[0] != ed25519Flag {
			return nil, fmt.Errorf("unsupported key scheme flag 0x%02x", raw[0])
		}
		return NewSigner(raw[1:])
	case ed25519.SeedSize:
		return NewSigner(raw)
	default:
		return nil, fmt.Errorf("signer key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.SeedSize+1, len(raw))
	}
}

// Address returns the 0x-prefixed account address.
func (s *Signer) Address() string {
	return s.address
}

// SignTransaction signs base64 transaction bytes and returns the serialized signature
// flag || sig || pubkey, base64 encoded.
func (s *Signer) SignTransaction(txBytesB64 string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(txBytesB64)
	if err != nil {
		return "", fmt.Errorf("decode tx bytes: %w", err)
	}

	msg := make([]byte, 0, len(intentTransactionData)+len(txBytes))
	msg = append(msg, intentTransactionData...)
	msg = append(msg, txBytes...)
	digest := blake2b.Sum256(msg)

	sig := ed25519.Sign(s.priv, digest[:])

	out := make([]byte, 0, 1+len(sig)+len(s.pub))
	out = append(out, ed25519Flag)
	out = append(out, sig...)
	out = append(out, s.pub...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// deriveAddress computes blake2b-256(flag || pubkey).
func deriveAddress(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, ed25519Flag)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}
