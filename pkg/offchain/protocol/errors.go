/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine readable code carried in OffChainError.
type ErrorCode string

// protocol error codes.
const (
	CodeWait     ErrorCode = "wait"
	CodeMissing  ErrorCode = "missing"
	CodeConflict ErrorCode = "conflict"
	CodeParsing  ErrorCode = "parsing"
)

// command error codes.
const (
	CodeMissingDependency       ErrorCode = "missing_dependency"
	CodeWrongStructure          ErrorCode = "payment_wrong_structure"
	CodeInvalidAddress          ErrorCode = "payment_invalid_address"
	CodeWrongActor              ErrorCode = "payment_wrong_actor"
	CodeChangedOtherActor       ErrorCode = "payment_changed_other_actor"
	CodeImmutableField          ErrorCode = "payment_immutable_field"
	CodeWrongStatus             ErrorCode = "payment_wrong_status"
	CodeTerminalState           ErrorCode = "payment_terminal_state"
	CodeWrongRecipientSignature ErrorCode = "payment_wrong_recipient_signature"
	CodeInsufficientFunds       ErrorCode = "payment_insufficient_funds"
	CodeVASPError               ErrorCode = "payment_vasp_error"
	CodeWrongCommandStructure   ErrorCode = "command_wrong_structure"
)

// OffChainError is the error object carried by a failed CommandResponseObject.
// Protocol errors never advance the joint sequence, command errors are final for the command.
type OffChainError struct {
	ProtocolError bool      `json:"protocol_error"`
	Code          ErrorCode `json:"code"`
	Field         string    `json:"field,omitempty"`
	Message       string    `json:"message,omitempty"`
}

// NewProtocolError creates a protocol error.
func NewProtocolError(code ErrorCode, format string, args ...interface{}) *OffChainError {
	return &OffChainError{ProtocolError: true, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewCommandError creates a command error about the given field. field may be empty.
func NewCommandError(code ErrorCode, field, format string, args ...interface{}) *OffChainError {
	return &OffChainError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *OffChainError) Error() string {
	kind := "command"
	if e.ProtocolError {
		kind = "protocol"
	}

	if e.Field != "" {
		return fmt.Sprintf("%s error %s on %s: %s", kind, e.Code, e.Field, e.Message)
	}

	return fmt.Sprintf("%s error %s: %s", kind, e.Code, e.Message)
}

// AsCommandError extracts a command error from err. Errors that are not OffChainError are
// reported as payment_vasp_error so that a command outcome can always be produced.
func AsCommandError(err error) *OffChainError {
	if err == nil {
		return nil
	}

	var oce *OffChainError
	if errors.As(err, &oce) && !oce.ProtocolError {
		return oce
	}

	return NewCommandError(CodeVASPError, "", "%s", err.Error())
}
