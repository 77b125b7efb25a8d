/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package envelope

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"

	"github.com/pkg/errors"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
)

// AttestationDomainSeparator terminates every recipient attestation message.
const AttestationDomainSeparator = "@@$$LIBRA_ATTEST$$@@"

// metadata type and version prefix of travel rule attestations.
var attestationPrefix = []byte{0x02, 0x00, 0x01}

// ErrInvalidRecipientSignature is returned when a recipient signature does not verify.
var ErrInvalidRecipientSignature = errors.New("invalid recipient signature")

// RecipientMessage builds the bytes signed by the receiving VASP.
func RecipientMessage(referenceID string, sender *address.Address, amount uint64) []byte {
	ref := []byte(referenceID)

	msg := make([]byte, 0, len(attestationPrefix)+binary.MaxVarintLen64+len(ref)+address.OnChainLength+8+
		len(AttestationDomainSeparator))
	msg = append(msg, attestationPrefix...)
	msg = binary.AppendUvarint(msg, uint64(len(ref)))
	msg = append(msg, ref...)
	msg = append(msg, sender.OnChain()...)
	msg = binary.LittleEndian.AppendUint64(msg, amount)
	msg = append(msg, AttestationDomainSeparator...)

	return msg
}

// SignRecipient returns the hex encoded recipient signature.
func SignRecipient(key *ComplianceKey, referenceID string, sender *address.Address, amount uint64) string {
	return hex.EncodeToString(ed25519.Sign(key.private, RecipientMessage(referenceID, sender, amount)))
}

// VerifyRecipient checks a hex encoded recipient signature.
func VerifyRecipient(key ed25519.PublicKey, signature, referenceID string, sender *address.Address,
	amount uint64) error {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return errors.Wrap(ErrInvalidRecipientSignature, err.Error())
	}

	if !ed25519.Verify(key, RecipientMessage(referenceID, sender, amount), sig) {
		return ErrInvalidRecipientSignature
	}

	return nil
}
