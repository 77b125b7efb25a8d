/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"

	"github.com/go-jose/go-jose/v3"
	"github.com/multiformats/go-multibase"
	"github.com/pkg/errors"
)

// ComplianceKey is the ed25519 key pair a VASP signs protocol messages with.
type ComplianceKey struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// GenerateKey creates a new random compliance key.
func GenerateKey() (*ComplianceKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate ed25519 key")
	}

	return &ComplianceKey{private: priv, public: pub}, nil
}

// NewKey wraps an existing ed25519 private key.
func NewKey(priv ed25519.PrivateKey) (*ComplianceKey, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("invalid ed25519 private key size %d", len(priv))
	}

	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("unexpected public key type")
	}

	return &ComplianceKey{private: priv, public: pub}, nil
}

// ParseJWK reads a private OKP/Ed25519 JWK.
func ParseJWK(raw []byte) (*ComplianceKey, error) {
	jwk := &jose.JSONWebKey{}
	if err := json.Unmarshal(raw, jwk); err != nil {
		return nil, errors.Wrap(err, "parse jwk")
	}

	priv, ok := jwk.Key.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.Errorf("jwk does not hold an ed25519 private key: %T", jwk.Key)
	}

	return NewKey(priv)
}

// MarshalJWK exports the private key as a JWK.
func (k *ComplianceKey) MarshalJWK() ([]byte, error) {
	return json.Marshal(&jose.JSONWebKey{Key: k.private, Algorithm: string(jose.EdDSA)})
}

// MarshalPublicJWK exports the public key as a JWK.
func (k *ComplianceKey) MarshalPublicJWK() ([]byte, error) {
	return json.Marshal(&jose.JSONWebKey{Key: k.public, Algorithm: string(jose.EdDSA)})
}

// PublicKey returns the public half.
func (k *ComplianceKey) PublicKey() ed25519.PublicKey {
	return k.public
}

// PublicMultibase encodes the public key in base58btc multibase, as listed in peer directories.
func (k *ComplianceKey) PublicMultibase() string {
	s, err := multibase.Encode(multibase.Base58BTC, k.public)
	if err != nil {
		// base58btc is always supported
		panic(err)
	}

	return s
}

// ParsePublicMultibase decodes a multibase encoded ed25519 public key.
func ParsePublicMultibase(s string) (ed25519.PublicKey, error) {
	_, raw, err := multibase.Decode(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode multibase key")
	}

	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid ed25519 public key size %d", len(raw))
	}

	return ed25519.PublicKey(raw), nil
}

// ParsePublicJWK reads a public OKP/Ed25519 JWK.
func ParsePublicJWK(raw []byte) (ed25519.PublicKey, error) {
	jwk := &jose.JSONWebKey{}
	if err := json.Unmarshal(raw, jwk); err != nil {
		return nil, errors.Wrap(err, "parse jwk")
	}

	switch key := jwk.Key.(type) {
	case ed25519.PublicKey:
		return key, nil
	case ed25519.PrivateKey:
		pub, _ := key.Public().(ed25519.PublicKey) //nolint:errcheck

		return pub, nil
	default:
		return nil, errors.Errorf("jwk does not hold an ed25519 key: %T", jwk.Key)
	}
}
