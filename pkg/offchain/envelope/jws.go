/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package envelope

import (
	"crypto/ed25519"

	"github.com/go-jose/go-jose/v3"
	"github.com/pkg/errors"
)

// ErrInvalidSignature is returned when an envelope fails verification.
// The message must then be treated as never received.
var ErrInvalidSignature = errors.New("invalid envelope signature")

// Signer signs outbound envelopes.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
}

// Verifier verifies inbound envelopes and returns their payload.
type Verifier interface {
	Verify(envelope []byte) ([]byte, error)
}

// JWSSigner produces compact JWS with the EdDSA algorithm header.
type JWSSigner struct {
	signer jose.Signer
}

// NewSigner creates a signer for key.
func NewSigner(key *ComplianceKey) (*JWSSigner, error) {
	s, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: key.private}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create jws signer")
	}

	return &JWSSigner{signer: s}, nil
}

// Sign implements Signer.
func (s *JWSSigner) Sign(payload []byte) ([]byte, error) {
	obj, err := s.signer.Sign(payload)
	if err != nil {
		return nil, errors.Wrap(err, "sign envelope")
	}

	compact, err := obj.CompactSerialize()
	if err != nil {
		return nil, errors.Wrap(err, "serialize envelope")
	}

	return []byte(compact), nil
}

// JWSVerifier verifies compact JWS signed by one public key.
type JWSVerifier struct {
	key ed25519.PublicKey
}

// NewVerifier creates a verifier for the peer key.
func NewVerifier(key ed25519.PublicKey) *JWSVerifier {
	return &JWSVerifier{key: key}
}

// Verify implements Verifier.
func (v *JWSVerifier) Verify(envelope []byte) ([]byte, error) {
	obj, err := jose.ParseSigned(string(envelope))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSignature, err.Error())
	}

	if len(obj.Signatures) != 1 {
		return nil, errors.Wrapf(ErrInvalidSignature, "expected one signature, got %d", len(obj.Signatures))
	}

	if alg := obj.Signatures[0].Header.Algorithm; alg != string(jose.EdDSA) {
		return nil, errors.Wrapf(ErrInvalidSignature, "unexpected algorithm %q", alg)
	}

	payload, err := obj.Verify(v.key)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSignature, err.Error())
	}

	return payload, nil
}
