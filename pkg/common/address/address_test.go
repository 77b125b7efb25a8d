/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package address

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddress_RoundTrip(t *testing.T) {
	onChain := bytes.Repeat([]byte{0xab}, OnChainLength)

	t.Run("without sub-address", func(t *testing.T) {
		a, err := New(TestnetHRP, onChain, nil)
		require.NoError(t, err)
		require.False(t, a.HasSubAddress())
		require.Nil(t, a.SubAddress())

		s := a.String()
		require.True(t, strings.HasPrefix(s, TestnetHRP+"1"))
		require.Len(t, s, 50)

		parsed, err := Parse(s)
		require.NoError(t, err)
		require.True(t, a.Equal(parsed))
		require.Equal(t, onChain, parsed.OnChain())
	})

	t.Run("with sub-address", func(t *testing.T) {
		sub := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		a, err := New(MainnetHRP, onChain, sub)
		require.NoError(t, err)
		require.True(t, a.HasSubAddress())

		parsed, err := Parse(a.String())
		require.NoError(t, err)
		require.Equal(t, sub, parsed.SubAddress())
		require.True(t, parsed.SameOnChain(a.OnChainAddress()))
		require.False(t, parsed.Equal(a.OnChainAddress()))
	})
}

func TestAddress_Errors(t *testing.T) {
	_, err := New("bc", make([]byte, OnChainLength), nil)
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = New(TestnetHRP, make([]byte, 20), nil)
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = New(TestnetHRP, make([]byte, OnChainLength), []byte{1})
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Parse("not-an-address")
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Parse("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4")
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = FromHex(TestnetHRP, "zz")
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddress_Compare(t *testing.T) {
	low, err := FromHex(TestnetHRP, "00000000000000000000000000000001")
	require.NoError(t, err)

	high, err := FromHex(TestnetHRP, "00000000000000000000000000000002")
	require.NoError(t, err)

	require.Equal(t, -1, low.Compare(high))
	require.Equal(t, 1, high.Compare(low))
	require.Equal(t, 0, low.Compare(low))
	require.Equal(t, "00000000000000000000000000000001", low.Hex())
}
