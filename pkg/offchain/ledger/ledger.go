/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"encoding/json"
	"strings"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/pkg/errors"

	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

const (
	versionTag        = "version"
	versionKeyPrefix  = versionTag + "_"
	dependenciesField = "_dependencies"
	createsField      = "_creates_versions"
)

// Status of an object version.
type Status string

// version statuses.
const (
	Available Status = "available"
	Consumed  Status = "consumed"
)

// Entry is the persisted record of one object version.
type Entry struct {
	Version    string  `json:"version"`
	Status     Status  `json:"status"`
	ObjectType string  `json:"object_type"`
	CreatedAt  uint64  `json:"created_at"`
	ConsumedAt *uint64 `json:"consumed_at,omitempty"`
}

// Ledger tracks which object versions of a channel can be depended upon.
// It is not safe for concurrent use; the owning channel serializes access.
type Ledger struct {
	store    storage.Store
	entries  map[string]*Entry
	reserved map[string]uint64
}

// Change is a prepared commit that has not yet been applied to the ledger.
type Change struct {
	entries []*Entry
}

// Operations returns the storage operations persisting the change.
func (c *Change) Operations() ([]storage.Operation, error) {
	ops := make([]storage.Operation, 0, len(c.entries))

	for _, e := range c.entries {
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, errors.Wrap(err, "marshal ledger entry")
		}

		ops = append(ops, storage.Operation{
			Key:   versionKeyPrefix + e.Version,
			Value: raw,
			Tags:  []storage.Tag{{Name: versionTag, Value: string(e.Status)}},
		})
	}

	return ops, nil
}

// New loads the ledger persisted in store.
func New(store storage.Store) (*Ledger, error) {
	l := &Ledger{
		store:    store,
		entries:  make(map[string]*Entry),
		reserved: make(map[string]uint64),
	}

	iter, err := store.Query(versionTag)
	if err != nil {
		return nil, errors.Wrap(err, "query versions")
	}

	defer func() {
		if e := iter.Close(); e != nil {
			logger.Warnf("failed to close version iterator: %v", e)
		}
	}()

	for {
		ok, err := iter.Next()
		if err != nil {
			return nil, errors.Wrap(err, "iterate versions")
		}

		if !ok {
			break
		}

		raw, err := iter.Value()
		if err != nil {
			return nil, errors.Wrap(err, "read version")
		}

		e := &Entry{}
		if err := json.Unmarshal(raw, e); err != nil {
			return nil, errors.Wrap(err, "unmarshal version")
		}

		l.entries[e.Version] = e
	}

	return l, nil
}

// Get returns the entry of a version.
func (l *Ledger) Get(version string) (*Entry, bool) {
	e, ok := l.entries[version]
	if !ok {
		return nil, false
	}

	c := *e

	return &c, true
}

// Available reports whether version exists and has not been consumed.
func (l *Ledger) Available(version string) bool {
	e, ok := l.entries[version]

	return ok && e.Status == Available
}

// Reserve claims dependencies for a local request with sequence holder.
func (l *Ledger) Reserve(deps []string, holder uint64) error {
	if err := l.Check(deps); err != nil {
		return err
	}

	for _, d := range deps {
		if h, ok := l.reserved[d]; ok && h != holder {
			return protocol.NewCommandError(protocol.CodeMissingDependency, dependenciesField,
				"version %s is used by pending request %d", d, h)
		}
	}

	for _, d := range deps {
		l.reserved[d] = holder
	}

	return nil
}

// Release drops the reservations held by holder.
func (l *Ledger) Release(deps []string, holder uint64) {
	for _, d := range deps {
		if h, ok := l.reserved[d]; ok && h == holder {
			delete(l.reserved, d)
		}
	}
}

// Reserved returns the local request holding version.
func (l *Ledger) Reserved(version string) (uint64, bool) {
	h, ok := l.reserved[version]

	return h, ok
}

// Check verifies that every dependency is available. Local reservations are ignored.
func (l *Ledger) Check(deps []string) error {
	for _, d := range deps {
		e, ok := l.entries[d]
		if !ok {
			return protocol.NewCommandError(protocol.CodeMissingDependency, dependenciesField,
				"unknown version %s", d)
		}

		if e.Status != Available {
			return protocol.NewCommandError(protocol.CodeMissingDependency, dependenciesField,
				"version %s already consumed", d)
		}
	}

	return nil
}

// Commit prepares consuming deps and creating creates at joint sequence position at.
// The ledger is unchanged until Apply is called with the returned change.
func (l *Ledger) Commit(deps, creates []string, objectType string, at uint64) (*Change, error) {
	if err := l.Check(deps); err != nil {
		return nil, err
	}

	change := &Change{}
	seen := make(map[string]struct{}, len(deps)+len(creates))

	for _, d := range deps {
		if _, dup := seen[d]; dup {
			return nil, protocol.NewCommandError(protocol.CodeWrongCommandStructure, dependenciesField,
				"version %s listed twice", d)
		}

		seen[d] = struct{}{}

		e := *l.entries[d]
		e.Status = Consumed
		e.ConsumedAt = protocol.Uint64(at)
		change.entries = append(change.entries, &e)
	}

	for _, c := range creates {
		if _, exists := l.entries[c]; exists {
			return nil, protocol.NewCommandError(protocol.CodeWrongCommandStructure, createsField,
				"version %s already exists", c)
		}

		if _, dup := seen[c]; dup || strings.TrimSpace(c) == "" {
			return nil, protocol.NewCommandError(protocol.CodeWrongCommandStructure, createsField,
				"invalid created version %q", c)
		}

		seen[c] = struct{}{}

		change.entries = append(change.entries, &Entry{
			Version:    c,
			Status:     Available,
			ObjectType: objectType,
			CreatedAt:  at,
		})
	}

	return change, nil
}

// Apply makes a prepared change visible. It must be called after the change was persisted.
func (l *Ledger) Apply(change *Change) {
	for _, e := range change.entries {
		l.entries[e.Version] = e

		if e.Status == Consumed {
			delete(l.reserved, e.Version)
		}
	}
}

// Len returns the number of known versions.
func (l *Ledger) Len() int {
	return len(l.entries)
}
