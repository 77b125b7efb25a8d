/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package envelope

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/require"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
)

func TestJWS_SignVerify(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	signer, err := NewSigner(key)
	require.NoError(t, err)

	payload := []byte(`{"_ObjectType":"CommandRequestObject","seq":0}`)

	env, err := signer.Sign(payload)
	require.NoError(t, err)
	require.Len(t, strings.Split(string(env), "."), 3)

	got, err := NewVerifier(key.PublicKey()).Verify(env)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	t.Run("wrong key", func(t *testing.T) {
		other, err := GenerateKey()
		require.NoError(t, err)

		_, err = NewVerifier(other.PublicKey()).Verify(env)
		require.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		parts := strings.Split(string(env), ".")
		parts[1] = parts[1][:len(parts[1])-2] + "AA"

		_, err := NewVerifier(key.PublicKey()).Verify([]byte(strings.Join(parts, ".")))
		require.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("not a jws", func(t *testing.T) {
		_, err := NewVerifier(key.PublicKey()).Verify([]byte("hello"))
		require.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("other algorithm", func(t *testing.T) {
		hs, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: bytes.Repeat([]byte{1}, 32)}, nil)
		require.NoError(t, err)

		obj, err := hs.Sign(payload)
		require.NoError(t, err)

		compact, err := obj.CompactSerialize()
		require.NoError(t, err)

		_, err = NewVerifier(key.PublicKey()).Verify([]byte(compact))
		require.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestComplianceKey_Encodings(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	raw, err := key.MarshalJWK()
	require.NoError(t, err)
	require.Contains(t, string(raw), `"crv":"Ed25519"`)

	parsed, err := ParseJWK(raw)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), parsed.PublicKey())

	pubRaw, err := key.MarshalPublicJWK()
	require.NoError(t, err)

	pub, err := ParsePublicJWK(pubRaw)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), pub)

	pub, err = ParsePublicJWK(raw)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), pub)

	_, err = ParseJWK(pubRaw)
	require.Error(t, err)

	_, err = ParseJWK([]byte("{"))
	require.Error(t, err)

	mb := key.PublicMultibase()
	require.True(t, strings.HasPrefix(mb, "z"))

	pub, err = ParsePublicMultibase(mb)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), pub)

	_, err = ParsePublicMultibase("zzz")
	require.Error(t, err)

	_, err = NewKey([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestRecipientAttestation(t *testing.T) {
	sender, err := address.FromHex(address.TestnetHRP, "11111111111111111111111111111111")
	require.NoError(t, err)

	msg := RecipientMessage("ab", sender, 1)

	expected := []byte{0x02, 0x00, 0x01, 0x02, 'a', 'b'}
	expected = append(expected, bytes.Repeat([]byte{0x11}, 16)...)
	expected = append(expected, 1, 0, 0, 0, 0, 0, 0, 0)
	expected = append(expected, []byte(AttestationDomainSeparator)...)
	require.Equal(t, expected, msg)

	t.Run("long reference ids use multi byte length", func(t *testing.T) {
		msg := RecipientMessage(strings.Repeat("x", 200), sender, 1)
		require.Equal(t, []byte{0xc8, 0x01}, msg[3:5])
	})

	key, err := GenerateKey()
	require.NoError(t, err)

	sig := SignRecipient(key, "ref", sender, 500)
	require.NoError(t, VerifyRecipient(key.PublicKey(), sig, "ref", sender, 500))
	require.ErrorIs(t, VerifyRecipient(key.PublicKey(), sig, "ref", sender, 501), ErrInvalidRecipientSignature)
	require.ErrorIs(t, VerifyRecipient(key.PublicKey(), "zz", "ref", sender, 500), ErrInvalidRecipientSignature)
}
