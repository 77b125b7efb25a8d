/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type testCommand struct {
	Creates []string `json:"_creates_versions"`
	Deps    []string `json:"_dependencies"`
	Note    string   `json:"note"`
}

func (c *testCommand) Type() string              { return "TestCommand" }
func (c *testCommand) CreatesVersions() []string { return c.Creates }
func (c *testCommand) Dependencies() []string    { return c.Deps }

func newTestCodec() *Codec {
	c := NewCodec()
	c.Register("TestCommand", func() Command { return &testCommand{} })

	return c
}

func TestCodec_Request(t *testing.T) {
	codec := newTestCodec()

	req := NewRequest(3, &testCommand{Creates: []string{"v2"}, Deps: []string{"v1"}, Note: "hello"})
	req.CommandSeq = Uint64(7)

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"_ObjectType":"CommandRequestObject"`)
	require.Contains(t, string(raw), `"command_seq":7`)

	msg, err := codec.Decode(raw)
	require.NoError(t, err)

	decoded, ok := msg.(*CommandRequestObject)
	require.True(t, ok)
	require.Equal(t, uint64(3), decoded.Seq)
	require.Equal(t, uint64(7), *decoded.CommandSeq)
	require.True(t, req.SameCommand(decoded))

	other := NewRequest(3, &testCommand{Creates: []string{"v2"}, Deps: []string{"v1"}, Note: "changed"})
	require.False(t, req.SameCommand(other))
	require.False(t, req.SameCommand(nil))

	t.Run("client request omits command_seq", func(t *testing.T) {
		raw, err := json.Marshal(NewRequest(0, &testCommand{Creates: []string{"v1"}}))
		require.NoError(t, err)
		require.NotContains(t, string(raw), "command_seq")
	})

	t.Run("unknown command type", func(t *testing.T) {
		_, err := NewCodec().Decode(raw)
		require.Error(t, err)
		require.Contains(t, err.Error(), "unknown command type")
		require.Equal(t, uint64(3), *RequestSeq(raw))
	})
}

func TestCodec_Response(t *testing.T) {
	codec := newTestCodec()

	t.Run("command error", func(t *testing.T) {
		resp := NewCommandErrorResponse(1, 4, NewCommandError(CodeMissingDependency, "_dependencies", "v1 used"))

		raw, err := json.Marshal(resp)
		require.NoError(t, err)

		msg, err := codec.Decode(raw)
		require.NoError(t, err)

		decoded, ok := msg.(*CommandResponseObject)
		require.True(t, ok)
		require.True(t, resp.Equal(decoded))
		require.True(t, decoded.Sequenced())
		require.False(t, decoded.IsProtocolFailure())
		require.Equal(t, CodeMissingDependency, decoded.Error.Code)
	})

	t.Run("parsing error has null seq", func(t *testing.T) {
		resp := NewProtocolErrorResponse(nil, NewProtocolError(CodeParsing, "bad json"))

		raw, err := json.Marshal(resp)
		require.NoError(t, err)
		require.Contains(t, string(raw), `"seq":null`)

		msg, err := codec.Decode(raw)
		require.NoError(t, err)
		require.True(t, msg.(*CommandResponseObject).IsProtocolFailure())
		require.False(t, msg.(*CommandResponseObject).Sequenced())
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := codec.Decode([]byte(`{"_ObjectType":"CommandResponseObject","seq":1,"status":"maybe"}`))
		require.Error(t, err)
	})
}

func TestCodec_Errors(t *testing.T) {
	codec := newTestCodec()

	_, err := codec.Decode([]byte("{"))
	require.Error(t, err)

	_, err = codec.Decode([]byte(`{"_ObjectType":"Other"}`))
	require.ErrorIs(t, err, ErrUnknownObjectType)

	require.Nil(t, RequestSeq([]byte("[")))
}

func TestOffChainError(t *testing.T) {
	pe := NewProtocolError(CodeWait, "busy")
	require.Equal(t, "protocol error wait: busy", pe.Error())

	ce := NewCommandError(CodeWrongStatus, "sender.status", "backward move")
	require.Equal(t, "command error payment_wrong_status on sender.status: backward move", ce.Error())

	require.Equal(t, ce, AsCommandError(ce))
	require.Equal(t, CodeVASPError, AsCommandError(pe).Code)
	require.Nil(t, AsCommandError(nil))
}
