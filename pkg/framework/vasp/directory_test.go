/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vasp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/envelope"
)

func TestLoadDirectory(t *testing.T) {
	key, err := envelope.GenerateKey()
	require.NoError(t, err)

	addr, err := address.FromHex(address.TestnetHRP, "d738a0b9851305dfe1d17707f0841dbc")
	require.NoError(t, err)

	sub, err := address.New(addr.HRP(), addr.OnChain(), []byte{1, 1, 1, 1, 1, 1, 1, 1})
	require.NoError(t, err)

	doc := fmt.Sprintf(`
peers:
  - address: %s
    url: https://bob.example.com
    key: %s
`, sub.String(), key.PublicMultibase())

	dir, err := LoadDirectory(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, 1, dir.Len())

	peer, err := dir.Lookup(addr.Hex())
	require.NoError(t, err)
	require.Equal(t, "https://bob.example.com", peer.URL)
	require.True(t, peer.Address.Equal(addr))
	require.Equal(t, key.PublicKey(), peer.Key)

	require.Equal(t, []string{addr.Hex()}, dir.Hexes())

	_, err = dir.Lookup("00")
	require.True(t, errors.Is(err, ErrUnknownPeer))

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "peers.yaml")
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		dir, err := ReadDirectory(path)
		require.NoError(t, err)
		require.Equal(t, 1, dir.Len())

		_, err = ReadDirectory(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("empty document", func(t *testing.T) {
		dir, err := LoadDirectory(strings.NewReader(""))
		require.NoError(t, err)
		require.Zero(t, dir.Len())
	})

	t.Run("invalid entries", func(t *testing.T) {
		tests := []struct {
			name string
			doc  string
		}{
			{"bad yaml", "peers: [\n"},
			{"bad address", "peers:\n  - address: nope\n    url: http://x\n    key: " + key.PublicMultibase()},
			{"bad key", "peers:\n  - address: " + sub.String() + "\n    url: http://x\n    key: zzz"},
			{"no url", "peers:\n  - address: " + sub.String() + "\n    key: " + key.PublicMultibase()},
		}

		for _, tc := range tests {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				_, err := LoadDirectory(strings.NewReader(tc.doc))
				require.Error(t, err)
			})
		}
	})
}
