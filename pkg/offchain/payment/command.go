/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package payment

import (
	"github.com/google/uuid"

	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

// CommandType is the command_type of payment commands.
const CommandType = "PaymentCommand"

// Command creates or updates a payment.
type Command struct {
	ObjectType string   `json:"_ObjectType"`
	Creates    []string `json:"_creates_versions"`
	Deps       []string `json:"_dependencies"`
	Payment    *Object  `json:"payment"`
}

// NewCommand wraps a payment version. previous is the version it updates, empty for a new payment.
// The created version id is minted here and never changes on retransmission.
func NewCommand(p *Object, previous string) *Command {
	deps := []string{}
	if previous != "" {
		deps = append(deps, previous)
	}

	return &Command{
		ObjectType: CommandType,
		Creates:    []string{uuid.New().String()},
		Deps:       deps,
		Payment:    p,
	}
}

// Type implements protocol.Command.
func (c *Command) Type() string {
	return CommandType
}

// CreatesVersions implements protocol.Command.
func (c *Command) CreatesVersions() []string {
	return c.Creates
}

// Dependencies implements protocol.Command.
func (c *Command) Dependencies() []string {
	return c.Deps
}

// Version returns the single created version.
func (c *Command) Version() string {
	if len(c.Creates) == 0 {
		return ""
	}

	return c.Creates[0]
}

// Previous returns the version this command updates, or empty.
func (c *Command) Previous() string {
	if len(c.Deps) == 0 {
		return ""
	}

	return c.Deps[0]
}

// Register adds payment commands to a codec.
func Register(codec *protocol.Codec) {
	codec.Register(CommandType, func() protocol.Command { return &Command{} })
}
