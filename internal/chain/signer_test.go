package chain

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func TestParseSigner(t *testing.T) {
	seed := make([]byte, 32)
	seed[0] = 7

	flagged := base64.StdEncoding.EncodeToString(append([]byte{ed25519Flag}, seed...))
	bare := base64.StdEncoding.EncodeToString(seed)

	s1, err := ParseSigner(flagged)
	require.NoError(t, err)
	s2, err := ParseSigner(bare)
	require.NoError(t, err)

	assert.Equal(t, s1.Address(), s2.Address())
	assert.True(t, strings.HasPrefix(s1.Address(), "0x"))
	assert.Len(t, s1.Address(), 66)

	_, err = ParseSigner(base64.StdEncoding.EncodeToString(append([]byte{0x01}, seed...)))
	assert.Error(t, err)
	_, err = ParseSigner("not base64!")
	assert.Error(t, err)
	_, err = ParseSigner(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
	assert.Error(t, err)
}

func TestSigner_SignTransaction(t *testing.T) {
	s, err := NewSigner(make([]byte, 32))
	require.NoError(t, err)

	txBytes := []byte{0xde, 0xad, 0xbe, 0xef}
	encoded, err := s.SignTransaction(base64.StdEncoding.EncodeToString(txBytes))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	require.Len(t, raw, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	assert.Equal(t, ed25519Flag, raw[0])

	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])

	digest := blake2b.Sum256(append([]byte{0, 0, 0}, txBytes...))
	assert.True(t, ed25519.Verify(pub, digest[:], sig))
}
