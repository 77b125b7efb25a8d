/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	pkgerrors "github.com/pkg/errors"

	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

const (
	localKeyPrefix  = "local_"
	remoteKeyPrefix = "remote_"
	jointKeyPrefix  = "joint_"
	metaKey         = "meta"
)

// StoreName returns the name of the store holding the channel between two on-chain addresses.
// The name is the same on both ends of the channel.
func StoreName(a, b string) string {
	if a > b {
		a, b = b, a
	}

	return fmt.Sprintf("channel_%s_%s", a, b)
}

// outcome of a joint sequence position.
type outcome string

const (
	outcomePending outcome = "pending"
	outcomeSuccess outcome = "success"
	outcomeFailure outcome = "failure"
)

// jointEntry points to the request sequenced at one joint position.
type jointEntry struct {
	Own     bool                    `json:"own"`
	Seq     uint64                  `json:"seq"`
	Outcome outcome                 `json:"outcome"`
	Error   *protocol.OffChainError `json:"error,omitempty"`
}

// logEntry is one request of the local or remote log with its response once known.
type logEntry struct {
	request  *protocol.CommandRequestObject
	response *protocol.CommandResponseObject
}

type logRecord struct {
	Request  json.RawMessage                 `json:"request"`
	Response *protocol.CommandResponseObject `json:"response,omitempty"`
}

type metaRecord struct {
	LastConfirmed uint64 `json:"last_confirmed"`
}

func seqKey(prefix string, seq uint64) string {
	return fmt.Sprintf("%s%020d", prefix, seq)
}

func logOperation(prefix string, e *logEntry) (storage.Operation, error) {
	req, err := json.Marshal(e.request)
	if err != nil {
		return storage.Operation{}, pkgerrors.Wrap(err, "marshal request")
	}

	raw, err := json.Marshal(&logRecord{Request: req, Response: e.response})
	if err != nil {
		return storage.Operation{}, pkgerrors.Wrap(err, "marshal log record")
	}

	return storage.Operation{Key: seqKey(prefix, e.request.Seq), Value: raw}, nil
}

func jointOperation(pos uint64, e *jointEntry) (storage.Operation, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return storage.Operation{}, pkgerrors.Wrap(err, "marshal joint entry")
	}

	return storage.Operation{Key: seqKey(jointKeyPrefix, pos), Value: raw}, nil
}

func metaOperation(lastConfirmed uint64) (storage.Operation, error) {
	raw, err := json.Marshal(&metaRecord{LastConfirmed: lastConfirmed})
	if err != nil {
		return storage.Operation{}, pkgerrors.Wrap(err, "marshal channel meta")
	}

	return storage.Operation{Key: metaKey, Value: raw}, nil
}

func loadLog(store storage.Store, prefix string, codec *protocol.Codec) ([]*logEntry, error) {
	var entries []*logEntry

	for seq := uint64(0); ; seq++ {
		raw, err := store.Get(seqKey(prefix, seq))
		if errors.Is(err, storage.ErrDataNotFound) {
			return entries, nil
		}

		if err != nil {
			return nil, pkgerrors.Wrapf(err, "load %s%d", prefix, seq)
		}

		rec := &logRecord{}
		if err := json.Unmarshal(raw, rec); err != nil {
			return nil, pkgerrors.Wrapf(err, "unmarshal %s%d", prefix, seq)
		}

		msg, err := codec.Decode(rec.Request)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "decode %s%d", prefix, seq)
		}

		req, ok := msg.(*protocol.CommandRequestObject)
		if !ok {
			return nil, fmt.Errorf("%s%d is not a request", prefix, seq)
		}

		entries = append(entries, &logEntry{request: req, response: rec.Response})
	}
}

func loadJoint(store storage.Store) ([]*jointEntry, error) {
	var entries []*jointEntry

	for pos := uint64(0); ; pos++ {
		raw, err := store.Get(seqKey(jointKeyPrefix, pos))
		if errors.Is(err, storage.ErrDataNotFound) {
			return entries, nil
		}

		if err != nil {
			return nil, pkgerrors.Wrapf(err, "load joint entry %d", pos)
		}

		e := &jointEntry{}
		if err := json.Unmarshal(raw, e); err != nil {
			return nil, pkgerrors.Wrapf(err, "unmarshal joint entry %d", pos)
		}

		entries = append(entries, e)
	}
}

func loadMeta(store storage.Store) (*metaRecord, error) {
	raw, err := store.Get(metaKey)
	if errors.Is(err, storage.ErrDataNotFound) {
		return &metaRecord{}, nil
	}

	if err != nil {
		return nil, pkgerrors.Wrap(err, "load channel meta")
	}

	m := &metaRecord{}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshal channel meta")
	}

	return m, nil
}
