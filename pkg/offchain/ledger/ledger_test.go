/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ledger

import (
	"errors"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

func newLedger(t *testing.T) (*Ledger, storage.Store) {
	t.Helper()

	store, err := mem.NewProvider().OpenStore("ledger")
	require.NoError(t, err)

	l, err := New(store)
	require.NoError(t, err)

	return l, store
}

func commit(t *testing.T, l *Ledger, store storage.Store, deps, creates []string, at uint64) {
	t.Helper()

	change, err := l.Commit(deps, creates, "PaymentObject", at)
	require.NoError(t, err)

	ops, err := change.Operations()
	require.NoError(t, err)
	require.NoError(t, store.Batch(ops))

	l.Apply(change)
}

func requireCode(t *testing.T, err error, code protocol.ErrorCode) {
	t.Helper()

	var oce *protocol.OffChainError
	require.True(t, errors.As(err, &oce), "expected OffChainError, got %v", err)
	require.Equal(t, code, oce.Code)
	require.False(t, oce.ProtocolError)
}

func TestLedger_CommitConsumesOnce(t *testing.T) {
	l, store := newLedger(t)

	commit(t, l, store, nil, []string{"v1"}, 0)
	require.True(t, l.Available("v1"))

	commit(t, l, store, []string{"v1"}, []string{"v2"}, 1)
	require.False(t, l.Available("v1"))
	require.True(t, l.Available("v2"))

	e, ok := l.Get("v1")
	require.True(t, ok)
	require.Equal(t, Consumed, e.Status)
	require.Equal(t, uint64(1), *e.ConsumedAt)

	_, err := l.Commit([]string{"v1"}, []string{"v3"}, "PaymentObject", 2)
	requireCode(t, err, protocol.CodeMissingDependency)

	_, err = l.Commit([]string{"unknown"}, []string{"v3"}, "PaymentObject", 2)
	requireCode(t, err, protocol.CodeMissingDependency)

	_, err = l.Commit(nil, []string{"v2"}, "PaymentObject", 2)
	requireCode(t, err, protocol.CodeWrongCommandStructure)

	_, err = l.Commit([]string{"v2", "v2"}, []string{"v3"}, "PaymentObject", 2)
	requireCode(t, err, protocol.CodeWrongCommandStructure)

	_, err = l.Commit(nil, []string{" "}, "PaymentObject", 2)
	requireCode(t, err, protocol.CodeWrongCommandStructure)
}

func TestLedger_UnappliedChangeLeavesLedgerUnchanged(t *testing.T) {
	l, store := newLedger(t)
	commit(t, l, store, nil, []string{"v1"}, 0)

	_, err := l.Commit([]string{"v1"}, []string{"v2"}, "PaymentObject", 1)
	require.NoError(t, err)

	require.True(t, l.Available("v1"))
	require.False(t, l.Available("v2"))
	require.Equal(t, 1, l.Len())
}

func TestLedger_Reservations(t *testing.T) {
	l, store := newLedger(t)
	commit(t, l, store, nil, []string{"v1"}, 0)

	require.NoError(t, l.Reserve([]string{"v1"}, 4))
	require.NoError(t, l.Reserve([]string{"v1"}, 4))

	h, ok := l.Reserved("v1")
	require.True(t, ok)
	require.Equal(t, uint64(4), h)

	requireCode(t, l.Reserve([]string{"v1"}, 5), protocol.CodeMissingDependency)
	requireCode(t, l.Reserve([]string{"nope"}, 5), protocol.CodeMissingDependency)

	// the peer is not bound by local reservations
	require.NoError(t, l.Check([]string{"v1"}))

	l.Release([]string{"v1"}, 5)
	_, ok = l.Reserved("v1")
	require.True(t, ok)

	l.Release([]string{"v1"}, 4)
	_, ok = l.Reserved("v1")
	require.False(t, ok)

	require.NoError(t, l.Reserve([]string{"v1"}, 6))
	commit(t, l, store, []string{"v1"}, []string{"v2"}, 1)

	_, ok = l.Reserved("v1")
	require.False(t, ok)
}

func TestLedger_Reload(t *testing.T) {
	l, store := newLedger(t)
	commit(t, l, store, nil, []string{"v1"}, 0)
	commit(t, l, store, []string{"v1"}, []string{"v2"}, 1)

	reloaded, err := New(store)
	require.NoError(t, err)
	require.Equal(t, 2, reloaded.Len())
	require.False(t, reloaded.Available("v1"))
	require.True(t, reloaded.Available("v2"))

	e, ok := reloaded.Get("v2")
	require.True(t, ok)
	require.Equal(t, "PaymentObject", e.ObjectType)
	require.Equal(t, uint64(1), e.CreatedAt)
}
