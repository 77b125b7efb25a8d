/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import "bytes"

// Role of the local VASP on a channel.
type Role int

const (
	// Client receives the joint sequence from the server.
	Client Role = iota
	// Server assigns the joint sequence.
	Server
)

func (r Role) String() string {
	if r == Server {
		return "server"
	}

	return "client"
}

// ResolveRole computes the role of my on the channel shared with other.
// Both ends compute complementary roles without exchanging any message: the parity bits of the last
// bytes are XORed, 0 makes the lexicographically smaller address the server and 1 the larger one.
func ResolveRole(my, other []byte) Role {
	var bit byte
	if len(my) > 0 && len(other) > 0 {
		bit = (my[len(my)-1] & 1) ^ (other[len(other)-1] & 1)
	}

	cmp := bytes.Compare(my, other)

	switch {
	case cmp == 0:
		return Client
	case bit == 0 && cmp < 0, bit == 1 && cmp > 0:
		return Server
	default:
		return Client
	}
}
