/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vasp

import (
	"crypto/ed25519"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/envelope"
)

// ErrUnknownPeer is returned for an address missing from the directory.
var ErrUnknownPeer = errors.New("unknown peer VASP")

// Peer is a counterparty VASP.
type Peer struct {
	Address *address.Address
	URL     string
	Key     ed25519.PublicKey
}

type peerConfig struct {
	Address string `yaml:"address"`
	URL     string `yaml:"url"`
	Key     string `yaml:"key"`
}

type directoryConfig struct {
	Peers []peerConfig `yaml:"peers"`
}

// Directory resolves peer VASPs by the hex encoding of their on-chain address.
type Directory struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewDirectory creates a directory holding peers.
func NewDirectory(peers ...*Peer) *Directory {
	d := &Directory{peers: make(map[string]*Peer)}

	for _, p := range peers {
		d.Add(p)
	}

	return d
}

// LoadDirectory parses a YAML peer list:
//
//	peers:
//	  - address: tlb1p42...
//	    url: https://vasp.example.com
//	    key: z6Mk...
func LoadDirectory(r io.Reader) (*Directory, error) {
	cfg := &directoryConfig{}
	if err := yaml.NewDecoder(r).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode peer directory")
	}

	d := NewDirectory()

	for i, pc := range cfg.Peers {
		addr, err := address.Parse(pc.Address)
		if err != nil {
			return nil, errors.Wrapf(err, "peer %d", i)
		}

		key, err := envelope.ParsePublicMultibase(pc.Key)
		if err != nil {
			return nil, errors.Wrapf(err, "peer %d key", i)
		}

		if pc.URL == "" {
			return nil, errors.Errorf("peer %d has no url", i)
		}

		d.Add(&Peer{Address: addr.OnChainAddress(), URL: pc.URL, Key: key})
	}

	return d, nil
}

// ReadDirectory loads the YAML peer list stored at path.
func ReadDirectory(path string) (*Directory, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, errors.Wrap(err, "open peer directory")
	}

	defer func() {
		if err := f.Close(); err != nil {
			logger.Warnf("close peer directory: %v", err)
		}
	}()

	return LoadDirectory(f)
}

// Add registers or replaces a peer.
func (d *Directory) Add(p *Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.peers[p.Address.Hex()] = p
}

// Lookup returns the peer with the on-chain address hex.
func (d *Directory) Lookup(hex string) (*Peer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.peers[hex]
	if !ok {
		return nil, errors.Wrap(ErrUnknownPeer, hex)
	}

	return p, nil
}

// Hexes returns the on-chain addresses of all peers in ascending order.
func (d *Directory) Hexes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	hexes := make([]string, 0, len(d.peers))
	for h := range d.peers {
		hexes = append(hexes, h)
	}

	sort.Strings(hexes)

	return hexes
}

// Len returns the number of peers.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.peers)
}
