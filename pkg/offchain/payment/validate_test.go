/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package payment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

type fixture struct {
	vasp1, vasp2 *address.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v1, err := address.FromHex(address.TestnetHRP, "b1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)

	v2, err := address.FromHex(address.TestnetHRP, "c2bbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	require.NoError(t, err)

	return &fixture{vasp1: v1, vasp2: v2}
}

func (f *fixture) subAddress(t *testing.T, vasp *address.Address, sub byte) string {
	t.Helper()

	a, err := address.New(vasp.HRP(), vasp.OnChain(), []byte{0, 0, 0, 0, 0, 0, 0, sub})
	require.NoError(t, err)

	return a.String()
}

// newPayment is created by vasp1 as the sender.
func (f *fixture) newPayment(t *testing.T) *Object {
	t.Helper()

	p := NewObject(f.vasp1, f.subAddress(t, f.vasp1, 1), f.subAddress(t, f.vasp2, 2),
		Action{Amount: 10, Currency: "XUS", Action: ActionCharge, Timestamp: 72})
	p.Sender.Status.Status = StatusNeedsKYCData

	return p
}

func (f *fixture) byVASP1() Parties {
	return Parties{Author: f.vasp1, Counterparty: f.vasp2}
}

func (f *fixture) byVASP2() Parties {
	return Parties{Author: f.vasp2, Counterparty: f.vasp1}
}

func requireCommandError(t *testing.T, err error, code protocol.ErrorCode) {
	t.Helper()

	var oce *protocol.OffChainError
	require.True(t, errors.As(err, &oce), "expected command error %s, got %v", code, err)
	require.False(t, oce.ProtocolError)
	require.Equal(t, code, oce.Code, oce.Error())
}

func TestValidate_Create(t *testing.T) {
	f := newFixture(t)

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, Validate(f.byVASP1(), nil, f.newPayment(t)))
	})

	t.Run("receiver may create", func(t *testing.T) {
		p := NewObject(f.vasp2, f.subAddress(t, f.vasp1, 1), f.subAddress(t, f.vasp2, 2),
			Action{Amount: 1, Currency: "XUS", Action: ActionCharge, Timestamp: 1})
		p.Receiver.Status.Status = StatusReadyForSettlement
		require.NoError(t, Validate(f.byVASP2(), nil, p))
	})

	tests := []struct {
		name   string
		mutate func(p *Object)
		code   protocol.ErrorCode
	}{
		{"missing payment", nil, protocol.CodeWrongStructure},
		{"reference id of other vasp", func(p *Object) { p.ReferenceID = f.vasp2.String() + "_1" }, protocol.CodeWrongStructure},
		{"reference id without local part", func(p *Object) { p.ReferenceID = f.vasp1.String() + "_" }, protocol.CodeWrongStructure},
		{"zero amount", func(p *Object) { p.Action.Amount = 0 }, protocol.CodeWrongStructure},
		{"no currency", func(p *Object) { p.Action.Currency = "" }, protocol.CodeWrongStructure},
		{"unknown action", func(p *Object) { p.Action.Action = "refund" }, protocol.CodeWrongStructure},
		{"no timestamp", func(p *Object) { p.Action.Timestamp = 0 }, protocol.CodeWrongStructure},
		{"bad sender address", func(p *Object) { p.Sender.Address = "nope" }, protocol.CodeInvalidAddress},
		{"bad receiver address", func(p *Object) { p.Receiver.Address = "nope" }, protocol.CodeInvalidAddress},
		{"foreign actor", func(p *Object) { p.Receiver.Address = p.Sender.Address }, protocol.CodeWrongActor},
		{"counterparty not none", func(p *Object) { p.Receiver.Status.Status = StatusNeedsKYCData }, protocol.CodeWrongStatus},
		{"created aborted", func(p *Object) { p.Sender.Status.Status = StatusAbort }, protocol.CodeWrongStatus},
		{"created settled", func(p *Object) { p.Sender.Status.Status = StatusSettled }, protocol.CodeWrongStatus},
		{"unknown status", func(p *Object) { p.Sender.Status.Status = "maybe" }, protocol.CodeWrongStructure},
		{"abort code without abort", func(p *Object) { p.Sender.Status.AbortCode = "X" }, protocol.CodeWrongStructure},
		{"bad kyc type", func(p *Object) { p.Sender.KYCData = &KYCData{Type: "robot"} }, protocol.CodeWrongStructure},
		{"counterparty kyc", func(p *Object) { p.Receiver.KYCData = &KYCData{Type: KYCEntity} }, protocol.CodeChangedOtherActor},
		{"sender signs", func(p *Object) { p.RecipientSignature = "aa" }, protocol.CodeWrongActor},
		{"unrequested additional kyc", func(p *Object) {
			p.Sender.AdditionalKYCData, p.Sender.AdditionalKYCProvided = "x", true
		}, protocol.CodeWrongStatus},
		{"inconsistent additional kyc flag", func(p *Object) { p.Sender.AdditionalKYCProvided = true }, protocol.CodeWrongStructure},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var p *Object
			if tc.mutate != nil {
				p = f.newPayment(t)
				tc.mutate(p)
			}

			requireCommandError(t, Validate(f.byVASP1(), nil, p), tc.code)
		})
	}
}

func TestValidate_ScenarioA(t *testing.T) {
	f := newFixture(t)

	v1 := f.newPayment(t)
	require.NoError(t, Validate(f.byVASP1(), nil, v1))

	v2 := v1.Clone()
	v2.Receiver.Status.Status = StatusReadyForSettlement
	v2.RecipientSignature = "c0ffee"
	require.NoError(t, Validate(f.byVASP2(), v1, v2))

	v3 := v2.Clone()
	v3.Sender.Status.Status = StatusReadyForSettlement
	require.NoError(t, Validate(f.byVASP1(), v2, v3))
	require.Equal(t, OutcomeReady, v3.Outcome())

	t.Run("scenario D: abort after mutual ready", func(t *testing.T) {
		v4 := v3.Clone()
		v4.Sender.Status = StatusObject{Status: StatusAbort, AbortCode: "late"}
		requireCommandError(t, Validate(f.byVASP1(), v3, v4), protocol.CodeTerminalState)
	})

	t.Run("mutual ready allows only settling", func(t *testing.T) {
		v4 := v3.Clone()
		v4.Sender.Metadata = append(v4.Sender.Metadata, "note")
		requireCommandError(t, Validate(f.byVASP1(), v3, v4), protocol.CodeTerminalState)

		v4 = v3.Clone()
		v4.Sender.Status.Status = StatusSettled
		require.NoError(t, Validate(f.byVASP1(), v3, v4))

		v5 := v4.Clone()
		v5.Receiver.Status.Status = StatusSettled
		require.NoError(t, Validate(f.byVASP2(), v4, v5))
		require.Equal(t, OutcomeSettled, v5.Outcome())

		v6 := v5.Clone()
		v6.Description = "after"
		requireCommandError(t, Validate(f.byVASP1(), v5, v6), protocol.CodeTerminalState)
	})
}

func TestValidate_ScenarioC_OtherActor(t *testing.T) {
	f := newFixture(t)
	v1 := f.newPayment(t)

	v2 := v1.Clone()
	v2.Sender.Status.Status = StatusReadyForSettlement
	requireCommandError(t, Validate(f.byVASP2(), v1, v2), protocol.CodeChangedOtherActor)

	v2 = v1.Clone()
	v2.Sender.Metadata = []string{"sneaky"}
	requireCommandError(t, Validate(f.byVASP2(), v1, v2), protocol.CodeChangedOtherActor)
}

func TestValidate_FieldRules(t *testing.T) {
	f := newFixture(t)

	base := f.newPayment(t)
	base.Sender.KYCData = &KYCData{Type: KYCIndividual, GivenName: "Alice"}
	base.Sender.Metadata = []string{"m1"}
	base.Description = "rent"

	tests := []struct {
		name   string
		mutate func(p *Object)
		code   protocol.ErrorCode
	}{
		{"reference id", func(p *Object) { p.ReferenceID += "x" }, protocol.CodeImmutableField},
		{"amount", func(p *Object) { p.Action.Amount++ }, protocol.CodeImmutableField},
		{"sender address", func(p *Object) { p.Sender.Address = f.subAddress(t, f.vasp1, 9) }, protocol.CodeImmutableField},
		{"description", func(p *Object) { p.Description = "other" }, protocol.CodeImmutableField},
		{"kyc data", func(p *Object) { p.Sender.KYCData = &KYCData{Type: KYCIndividual, GivenName: "Eve"} }, protocol.CodeImmutableField},
		{"kyc data removed", func(p *Object) { p.Sender.KYCData = nil }, protocol.CodeImmutableField},
		{"metadata rewritten", func(p *Object) { p.Sender.Metadata = []string{"m2"} }, protocol.CodeImmutableField},
		{"metadata truncated", func(p *Object) { p.Sender.Metadata = nil }, protocol.CodeImmutableField},
		{"status backward", func(p *Object) { p.Sender.Status.Status = StatusNone }, protocol.CodeWrongStatus},
		{"settle early", func(p *Object) { p.Sender.Status.Status = StatusSettled }, protocol.CodeWrongStatus},
		{"sender signs", func(p *Object) { p.RecipientSignature = "ab" }, protocol.CodeWrongActor},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			next := base.Clone()
			tc.mutate(next)
			requireCommandError(t, Validate(f.byVASP1(), base, next), tc.code)
		})
	}

	t.Run("append metadata and set write-once fields", func(t *testing.T) {
		next := base.Clone()
		next.Sender.Metadata = append(next.Sender.Metadata, "m2")
		next.OriginalPaymentReferenceID = "orig"
		next.Sender.Status.Status = StatusNeedsRecipientSignature
		require.NoError(t, Validate(f.byVASP1(), base, next))
	})
}

func TestValidate_Abort(t *testing.T) {
	f := newFixture(t)
	v1 := f.newPayment(t)

	aborted := v1.Clone()
	aborted.Sender.Status = StatusObject{Status: StatusAbort, AbortCode: "no-funds", AbortMessage: "insufficient"}
	require.NoError(t, Validate(f.byVASP1(), v1, aborted))
	require.Equal(t, OutcomeAborted, aborted.Outcome())

	t.Run("aborted side cannot act", func(t *testing.T) {
		next := aborted.Clone()
		next.Sender.Metadata = []string{"again"}
		requireCommandError(t, Validate(f.byVASP1(), aborted, next), protocol.CodeTerminalState)
	})

	t.Run("unresolved side must resolve", func(t *testing.T) {
		next := aborted.Clone()
		next.Receiver.Status.Status = StatusNeedsKYCData
		requireCommandError(t, Validate(f.byVASP2(), aborted, next), protocol.CodeWrongStatus)

		next = aborted.Clone()
		next.Receiver.Status = StatusObject{Status: StatusAbort, AbortCode: AbortFollow}
		require.NoError(t, Validate(f.byVASP2(), aborted, next))

		final := next.Clone()
		final.Receiver.Metadata = []string{"late"}
		requireCommandError(t, Validate(f.byVASP2(), next, final), protocol.CodeTerminalState)
	})

	t.Run("ready never aborts", func(t *testing.T) {
		ready := v1.Clone()
		ready.Receiver.Status.Status = StatusReadyForSettlement
		require.NoError(t, Validate(f.byVASP2(), v1, ready))

		next := ready.Clone()
		next.Receiver.Status.Status = StatusAbort
		requireCommandError(t, Validate(f.byVASP2(), ready, next), protocol.CodeWrongStatus)
	})

	t.Run("abort details are write-once", func(t *testing.T) {
		next := aborted.Clone()
		next.Sender.Status.AbortMessage = "changed"
		requireCommandError(t, Validate(f.byVASP1(), aborted, next), protocol.CodeTerminalState)
	})
}

func TestValidate_SoftMatch(t *testing.T) {
	f := newFixture(t)
	v1 := f.newPayment(t)

	soft := v1.Clone()
	soft.Receiver.Status.Status = StatusSoftMatch
	require.NoError(t, Validate(f.byVASP2(), v1, soft))

	t.Run("cannot clear without data", func(t *testing.T) {
		next := soft.Clone()
		next.Receiver.Status.Status = StatusReadyForSettlement
		requireCommandError(t, Validate(f.byVASP2(), soft, next), protocol.CodeWrongStatus)
	})

	t.Run("status must not change while providing data", func(t *testing.T) {
		next := soft.Clone()
		next.Sender.AdditionalKYCData, next.Sender.AdditionalKYCProvided = "passport", true
		next.Sender.Status.Status = StatusReadyForSettlement
		requireCommandError(t, Validate(f.byVASP1(), soft, next), protocol.CodeWrongStatus)
	})

	provided := soft.Clone()
	provided.Sender.AdditionalKYCData, provided.Sender.AdditionalKYCProvided = "passport", true
	require.NoError(t, Validate(f.byVASP1(), soft, provided))

	t.Run("additional data is write-once", func(t *testing.T) {
		next := provided.Clone()
		next.Sender.AdditionalKYCData = "visa"
		requireCommandError(t, Validate(f.byVASP1(), provided, next), protocol.CodeImmutableField)
	})

	cleared := provided.Clone()
	cleared.Receiver.Status.Status = StatusReadyForSettlement
	require.NoError(t, Validate(f.byVASP2(), provided, cleared))

	t.Run("soft match may abort", func(t *testing.T) {
		next := soft.Clone()
		next.Receiver.Status.Status = StatusAbort
		require.NoError(t, Validate(f.byVASP2(), soft, next))
	})

	t.Run("data not requested", func(t *testing.T) {
		next := v1.Clone()
		next.Receiver.AdditionalKYCData, next.Receiver.AdditionalKYCProvided = "x", true
		requireCommandError(t, Validate(f.byVASP2(), v1, next), protocol.CodeWrongStatus)
	})
}
