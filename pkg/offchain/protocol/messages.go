/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// object types carried in the _ObjectType field.
const (
	RequestObjectType  = "CommandRequestObject"
	ResponseObjectType = "CommandResponseObject"
)

// Status of a CommandResponseObject.
type Status string

// response statuses.
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Message is either a *CommandRequestObject or a *CommandResponseObject.
type Message interface {
	ObjectType() string
}

// Command is a protocol command sequenced on a channel.
type Command interface {
	// Type is the command_type sent along with the command.
	Type() string
	// CreatesVersions lists the version ids the command makes available on success.
	CreatesVersions() []string
	// Dependencies lists the version ids the command consumes on success.
	Dependencies() []string
}

// CommandRequestObject carries a command from its author to the other VASP.
type CommandRequestObject struct {
	Seq         uint64
	CommandSeq  *uint64
	CommandType string
	Command     Command
}

type requestWire struct {
	ObjectType  string          `json:"_ObjectType"`
	Seq         uint64          `json:"seq"`
	CommandSeq  *uint64         `json:"command_seq,omitempty"`
	CommandType string          `json:"command_type"`
	Command     json.RawMessage `json:"command"`
}

// NewRequest creates a request for cmd at local sequence seq.
func NewRequest(seq uint64, cmd Command) *CommandRequestObject {
	return &CommandRequestObject{Seq: seq, CommandType: cmd.Type(), Command: cmd}
}

// ObjectType implements Message.
func (r *CommandRequestObject) ObjectType() string {
	return RequestObjectType
}

// MarshalJSON implements json.Marshaler.
func (r *CommandRequestObject) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(r.Command)
	if err != nil {
		return nil, errors.Wrap(err, "marshal command")
	}

	return json.Marshal(&requestWire{
		ObjectType:  RequestObjectType,
		Seq:         r.Seq,
		CommandSeq:  r.CommandSeq,
		CommandType: r.CommandType,
		Command:     raw,
	})
}

// SameCommand reports whether both requests carry the same command.
func (r *CommandRequestObject) SameCommand(other *CommandRequestObject) bool {
	if other == nil || r.CommandType != other.CommandType {
		return false
	}

	a, err := json.Marshal(r.Command)
	if err != nil {
		return false
	}

	b, err := json.Marshal(other.Command)
	if err != nil {
		return false
	}

	return bytes.Equal(a, b)
}

// CommandResponseObject is the answer to a CommandRequestObject.
type CommandResponseObject struct {
	Seq        *uint64        `json:"seq"`
	CommandSeq *uint64        `json:"command_seq"`
	Status     Status         `json:"status"`
	Error      *OffChainError `json:"error,omitempty"`
}

type responseWire struct {
	ObjectType string `json:"_ObjectType"`
	*responseAlias
}

type responseAlias CommandResponseObject

// NewSuccessResponse creates a success response for a sequenced request.
func NewSuccessResponse(seq, commandSeq uint64) *CommandResponseObject {
	return &CommandResponseObject{Seq: &seq, CommandSeq: &commandSeq, Status: StatusSuccess}
}

// NewCommandErrorResponse creates a failure response for a sequenced request with a command error.
func NewCommandErrorResponse(seq, commandSeq uint64, err *OffChainError) *CommandResponseObject {
	return &CommandResponseObject{Seq: &seq, CommandSeq: &commandSeq, Status: StatusFailure, Error: err}
}

// NewProtocolErrorResponse creates a failure response that does not sequence the request.
// seq is nil when the request could not be parsed.
func NewProtocolErrorResponse(seq *uint64, err *OffChainError) *CommandResponseObject {
	return &CommandResponseObject{Seq: seq, Status: StatusFailure, Error: err}
}

// ObjectType implements Message.
func (r *CommandResponseObject) ObjectType() string {
	return ResponseObjectType
}

// MarshalJSON implements json.Marshaler.
func (r *CommandResponseObject) MarshalJSON() ([]byte, error) {
	return json.Marshal(&responseWire{ObjectType: ResponseObjectType, responseAlias: (*responseAlias)(r)})
}

// IsProtocolFailure reports whether the response carries a protocol error.
func (r *CommandResponseObject) IsProtocolFailure() bool {
	return r.Status == StatusFailure && r.Error != nil && r.Error.ProtocolError
}

// Sequenced reports whether the response carries a final outcome for a joint sequence position.
func (r *CommandResponseObject) Sequenced() bool {
	return !r.IsProtocolFailure() && r.Seq != nil && r.CommandSeq != nil
}

// Equal compares two responses by their wire form.
func (r *CommandResponseObject) Equal(other *CommandResponseObject) bool {
	if other == nil {
		return false
	}

	a, err := json.Marshal(r)
	if err != nil {
		return false
	}

	b, err := json.Marshal(other)
	if err != nil {
		return false
	}

	return bytes.Equal(a, b)
}

// Uint64 returns a pointer to v.
func Uint64(v uint64) *uint64 {
	return &v
}
