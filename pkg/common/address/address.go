/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package address

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/pkg/errors"
)

const (
	// MainnetHRP is the human readable part of mainnet addresses.
	MainnetHRP = "lbr"
	// TestnetHRP is the human readable part of testnet addresses.
	TestnetHRP = "tlb"

	// OnChainLength is the length in bytes of an on-chain account address.
	OnChainLength = 16
	// SubAddressLength is the length in bytes of a sub-address.
	SubAddressLength = 8

	addressVersion = 1
)

// ErrInvalidAddress is returned when an encoded address cannot be decoded.
var ErrInvalidAddress = errors.New("invalid address")

// Address is an on-chain account address with an optional sub-address.
type Address struct {
	hrp        string
	onChain    [OnChainLength]byte
	subAddress [SubAddressLength]byte
}

// New creates an address from raw bytes. An empty or all zero sub-address means none.
func New(hrp string, onChain, subAddress []byte) (*Address, error) {
	if hrp != MainnetHRP && hrp != TestnetHRP {
		return nil, errors.Wrapf(ErrInvalidAddress, "unknown hrp %q", hrp)
	}

	if len(onChain) != OnChainLength {
		return nil, errors.Wrapf(ErrInvalidAddress, "on-chain address must be %d bytes, got %d",
			OnChainLength, len(onChain))
	}

	if len(subAddress) != 0 && len(subAddress) != SubAddressLength {
		return nil, errors.Wrapf(ErrInvalidAddress, "sub-address must be %d bytes, got %d",
			SubAddressLength, len(subAddress))
	}

	a := &Address{hrp: hrp}
	copy(a.onChain[:], onChain)
	copy(a.subAddress[:], subAddress)

	return a, nil
}

// FromHex creates an address without sub-address from a hex encoded on-chain address.
func FromHex(hrp, onChainHex string) (*Address, error) {
	raw, err := hex.DecodeString(onChainHex)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidAddress, err.Error())
	}

	return New(hrp, raw, nil)
}

// Parse decodes a bech32 encoded address.
func Parse(encoded string) (*Address, error) {
	hrp, data, err := bech32.Decode(encoded)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidAddress, err.Error())
	}

	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidAddress, "empty payload")
	}

	if data[0] != addressVersion {
		return nil, errors.Wrapf(ErrInvalidAddress, "unsupported version %d", data[0])
	}

	raw, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidAddress, err.Error())
	}

	if len(raw) != OnChainLength+SubAddressLength {
		return nil, errors.Wrapf(ErrInvalidAddress, "decoded payload has %d bytes", len(raw))
	}

	return New(hrp, raw[:OnChainLength], raw[OnChainLength:])
}

// String returns the bech32 encoding of the address.
func (a *Address) String() string {
	raw := make([]byte, 0, OnChainLength+SubAddressLength)
	raw = append(raw, a.onChain[:]...)
	raw = append(raw, a.subAddress[:]...)

	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		// converting whole bytes with padding cannot fail
		panic(err)
	}

	encoded, err := bech32.Encode(a.hrp, append([]byte{addressVersion}, conv...))
	if err != nil {
		panic(err)
	}

	return encoded
}

// HRP returns the human readable part.
func (a *Address) HRP() string {
	return a.hrp
}

// OnChain returns a copy of the on-chain account address bytes.
func (a *Address) OnChain() []byte {
	b := make([]byte, OnChainLength)
	copy(b, a.onChain[:])

	return b
}

// SubAddress returns the sub-address bytes, or nil when there is none.
func (a *Address) SubAddress() []byte {
	if !a.HasSubAddress() {
		return nil
	}

	b := make([]byte, SubAddressLength)
	copy(b, a.subAddress[:])

	return b
}

// HasSubAddress reports whether the address carries a non zero sub-address.
func (a *Address) HasSubAddress() bool {
	return a.subAddress != [SubAddressLength]byte{}
}

// OnChainAddress returns the address with the sub-address stripped.
func (a *Address) OnChainAddress() *Address {
	return &Address{hrp: a.hrp, onChain: a.onChain}
}

// SameOnChain reports whether both addresses refer to the same on-chain account.
func (a *Address) SameOnChain(other *Address) bool {
	return other != nil && a.hrp == other.hrp && a.onChain == other.onChain
}

// Equal reports whether both addresses are identical including the sub-address.
func (a *Address) Equal(other *Address) bool {
	return a.SameOnChain(other) && a.subAddress == other.subAddress
}

// Compare orders addresses by their on-chain bytes.
func (a *Address) Compare(other *Address) int {
	return bytes.Compare(a.onChain[:], other.onChain[:])
}

// Hex returns the hex encoding of the on-chain part.
func (a *Address) Hex() string {
	return hex.EncodeToString(a.onChain[:])
}

// GoString is used by %#v.
func (a *Address) GoString() string {
	return fmt.Sprintf("address.Address{%s}", a.String())
}
