/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package protocol

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// ErrUnknownObjectType is returned when a message carries an unexpected _ObjectType.
var ErrUnknownObjectType = errors.New("unknown object type")

// CommandFactory creates an empty command to decode into.
type CommandFactory func() Command

// Codec decodes wire messages, resolving commands through registered factories.
type Codec struct {
	mu        sync.RWMutex
	factories map[string]CommandFactory
}

// NewCodec creates a codec with no registered commands.
func NewCodec() *Codec {
	return &Codec{factories: make(map[string]CommandFactory)}
}

// Register adds a command type.
func (c *Codec) Register(commandType string, factory CommandFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.factories[commandType] = factory
}

// Decode parses a request or a response.
func (c *Codec) Decode(data []byte) (Message, error) {
	var head struct {
		ObjectType string `json:"_ObjectType"`
	}

	if err := json.Unmarshal(data, &head); err != nil {
		return nil, errors.Wrap(err, "decode message header")
	}

	switch head.ObjectType {
	case RequestObjectType:
		return c.decodeRequest(data)
	case ResponseObjectType:
		resp := &CommandResponseObject{}
		if err := json.Unmarshal(data, (*responseAlias)(resp)); err != nil {
			return nil, errors.Wrap(err, "decode response")
		}

		if resp.Status != StatusSuccess && resp.Status != StatusFailure {
			return nil, fmt.Errorf("invalid response status %q", resp.Status)
		}

		return resp, nil
	default:
		return nil, errors.Wrapf(ErrUnknownObjectType, "%q", head.ObjectType)
	}
}

// RequestSeq extracts the seq of a request that otherwise failed to decode, so that a
// parsing error can still be correlated by the sender.
func RequestSeq(data []byte) *uint64 {
	var head struct {
		Seq *uint64 `json:"seq"`
	}

	if err := json.Unmarshal(data, &head); err != nil {
		return nil
	}

	return head.Seq
}

func (c *Codec) decodeRequest(data []byte) (*CommandRequestObject, error) {
	wire := &requestWire{}
	if err := json.Unmarshal(data, wire); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}

	c.mu.RLock()
	factory, ok := c.factories[wire.CommandType]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown command type %q", wire.CommandType)
	}

	cmd := factory()
	if err := json.Unmarshal(wire.Command, cmd); err != nil {
		return nil, errors.Wrapf(err, "decode %s", wire.CommandType)
	}

	return &CommandRequestObject{
		Seq:         wire.Seq,
		CommandSeq:  wire.CommandSeq,
		CommandType: wire.CommandType,
		Command:     cmd,
	}, nil
}
