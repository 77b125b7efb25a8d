/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package payment

import (
	"strings"

	"golang.org/x/exp/slices"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

// Parties of a channel as seen by the author of a command.
type Parties struct {
	Author       *address.Address
	Counterparty *address.Address
}

// Validate checks that next is a legal successor of prev authored by parties.Author.
// prev is nil when next creates a new payment. The returned error is a command error.
func Validate(parties Parties, prev, next *Object) error {
	if next == nil {
		return protocol.NewCommandError(protocol.CodeWrongStructure, "payment", "missing payment")
	}

	role, err := checkStructure(parties, next)
	if err != nil {
		return err
	}

	if prev == nil {
		return checkCreate(parties, role, next)
	}

	return checkUpdate(role, prev, next)
}

func checkStructure(parties Parties, p *Object) (Role, error) {
	sender, err := address.Parse(p.Sender.Address)
	if err != nil {
		return "", protocol.NewCommandError(protocol.CodeInvalidAddress, "sender.address", "%s", err.Error())
	}

	receiver, err := address.Parse(p.Receiver.Address)
	if err != nil {
		return "", protocol.NewCommandError(protocol.CodeInvalidAddress, "receiver.address", "%s", err.Error())
	}

	var role Role

	switch {
	case sender.SameOnChain(parties.Author) && receiver.SameOnChain(parties.Counterparty):
		role = Sender
	case receiver.SameOnChain(parties.Author) && sender.SameOnChain(parties.Counterparty):
		role = Receiver
	default:
		return "", protocol.NewCommandError(protocol.CodeWrongActor, "sender.address",
			"payment actors do not match channel parties %s and %s", parties.Author, parties.Counterparty)
	}

	for _, r := range []Role{Sender, Receiver} {
		if err := checkActorStructure(r, p.Actor(r)); err != nil {
			return "", err
		}
	}

	return role, nil
}

func checkActorStructure(r Role, a *Actor) error {
	field := string(r)

	if _, err := stateFromName(a.Status.Status); err != nil {
		return protocol.NewCommandError(protocol.CodeWrongStructure, field+".status.status", "%s", err.Error())
	}

	if a.Status.Status != StatusAbort && (a.Status.AbortCode != "" || a.Status.AbortMessage != "") {
		return protocol.NewCommandError(protocol.CodeWrongStructure, field+".status.abort_code",
			"abort details without abort status")
	}

	if a.KYCData != nil && a.KYCData.Type != KYCIndividual && a.KYCData.Type != KYCEntity {
		return protocol.NewCommandError(protocol.CodeWrongStructure, field+".kyc_data.type",
			"unknown kyc type %q", a.KYCData.Type)
	}

	if a.AdditionalKYCProvided != (a.AdditionalKYCData != "") {
		return protocol.NewCommandError(protocol.CodeWrongStructure, field+".additional_kyc_provided",
			"flag does not match additional_kyc_data")
	}

	return nil
}

func checkCreate(parties Parties, role Role, p *Object) error {
	prefix := parties.Author.OnChainAddress().String() + "_"
	if !strings.HasPrefix(p.ReferenceID, prefix) || len(p.ReferenceID) == len(prefix) {
		return protocol.NewCommandError(protocol.CodeWrongStructure, "reference_id",
			"reference id %q must be <creator-address>_<local-id>", p.ReferenceID)
	}

	a := p.Action
	switch {
	case a.Amount == 0:
		return protocol.NewCommandError(protocol.CodeWrongStructure, "action.amount", "amount must be positive")
	case a.Currency == "":
		return protocol.NewCommandError(protocol.CodeWrongStructure, "action.currency", "missing currency")
	case a.Action != ActionCharge:
		return protocol.NewCommandError(protocol.CodeWrongStructure, "action.action", "unsupported action %q", a.Action)
	case a.Timestamp == 0:
		return protocol.NewCommandError(protocol.CodeWrongStructure, "action.timestamp", "missing timestamp")
	}

	if s := p.Actor(role).Status.Status; !creationStatus(s) {
		return protocol.NewCommandError(protocol.CodeWrongStatus, string(role)+".status",
			"a payment cannot be created with status %s", s)
	}

	if s := p.Actor(role.Other()).Status.Status; s != StatusNone {
		return protocol.NewCommandError(protocol.CodeWrongStatus, string(role.Other())+".status",
			"counterparty status must be none, got %s", s)
	}

	if p.Actor(role).AdditionalKYCProvided {
		return protocol.NewCommandError(protocol.CodeWrongStatus, string(role)+".additional_kyc_data",
			"additional kyc data was not requested")
	}

	if c := p.Actor(role.Other()); c.KYCData != nil || len(c.Metadata) != 0 || c.AdditionalKYCProvided {
		return protocol.NewCommandError(protocol.CodeChangedOtherActor, string(role.Other()),
			"the %s actor is owned by the other VASP", role.Other())
	}

	if role != Receiver && p.RecipientSignature != "" {
		return protocol.NewCommandError(protocol.CodeWrongActor, "recipient_signature",
			"only the receiver may sign")
	}

	return nil
}

func checkUpdate(role Role, prev, next *Object) error {
	if err := checkPaymentFields(role, prev, next); err != nil {
		return err
	}

	other := role.Other()
	if !actorEqual(prev.Actor(other), next.Actor(other)) {
		return protocol.NewCommandError(protocol.CodeChangedOtherActor, string(other),
			"the %s actor is owned by the other VASP", other)
	}

	if err := checkTerminal(role, prev, next); err != nil {
		return err
	}

	return checkOwnActor(role, prev, next)
}

func checkPaymentFields(role Role, prev, next *Object) error {
	immutable := []struct {
		field      string
		prev, next string
	}{
		{"reference_id", prev.ReferenceID, next.ReferenceID},
		{"sender.address", prev.Sender.Address, next.Sender.Address},
		{"receiver.address", prev.Receiver.Address, next.Receiver.Address},
	}

	for _, f := range immutable {
		if f.prev != f.next {
			return protocol.NewCommandError(protocol.CodeImmutableField, f.field, "field is immutable")
		}
	}

	if prev.Action != next.Action {
		return protocol.NewCommandError(protocol.CodeImmutableField, "action", "field is immutable")
	}

	writeOnce := []struct {
		field      string
		prev, next string
	}{
		{"original_payment_reference_id", prev.OriginalPaymentReferenceID, next.OriginalPaymentReferenceID},
		{"description", prev.Description, next.Description},
		{"recipient_signature", prev.RecipientSignature, next.RecipientSignature},
	}

	for _, f := range writeOnce {
		if f.prev != "" && f.prev != f.next {
			return protocol.NewCommandError(protocol.CodeImmutableField, f.field, "field is write-once")
		}
	}

	if prev.RecipientSignature == "" && next.RecipientSignature != "" && role != Receiver {
		return protocol.NewCommandError(protocol.CodeWrongActor, "recipient_signature",
			"only the receiver may sign")
	}

	return nil
}

func checkTerminal(role Role, prev, next *Object) error {
	own, other := prev.Actor(role), prev.Actor(role.Other())

	if resolved(own.Status.Status) && resolved(other.Status.Status) {
		if prev.Outcome() == OutcomeAborted || own.Status.Status == StatusSettled {
			return protocol.NewCommandError(protocol.CodeTerminalState, string(role)+".status",
				"payment %s is final", prev.ReferenceID)
		}

		// mutual ready: the only step left is settling
		settledOnly := prev.Clone()
		settledOnly.Actor(role).Status = StatusObject{Status: StatusSettled}

		if !next.Equal(settledOnly) {
			return protocol.NewCommandError(protocol.CodeTerminalState, string(role)+".status",
				"payment %s is ready for settlement and can only be settled", prev.ReferenceID)
		}

		return nil
	}

	if own.Status.Status == StatusAbort {
		return protocol.NewCommandError(protocol.CodeTerminalState, string(role)+".status",
			"the %s actor already aborted", role)
	}

	return nil
}

func checkOwnActor(role Role, prev, next *Object) error {
	field := string(role)
	p, n := prev.Actor(role), next.Actor(role)
	counterparty := prev.Actor(role.Other())

	if p.KYCData != nil && (n.KYCData == nil || *p.KYCData != *n.KYCData) {
		return protocol.NewCommandError(protocol.CodeImmutableField, field+".kyc_data", "field is write-once")
	}

	if len(n.Metadata) < len(p.Metadata) || !slices.Equal(p.Metadata, n.Metadata[:len(p.Metadata)]) {
		return protocol.NewCommandError(protocol.CodeImmutableField, field+".metadata", "metadata is append-only")
	}

	if p.AdditionalKYCProvided {
		if p.AdditionalKYCData != n.AdditionalKYCData || !n.AdditionalKYCProvided {
			return protocol.NewCommandError(protocol.CodeImmutableField, field+".additional_kyc_data",
				"field is write-once")
		}
	} else if n.AdditionalKYCProvided {
		if counterparty.Status.Status != StatusSoftMatch {
			return protocol.NewCommandError(protocol.CodeWrongStatus, field+".additional_kyc_data",
				"additional kyc data was not requested")
		}

		if n.Status != p.Status {
			return protocol.NewCommandError(protocol.CodeWrongStatus, field+".status",
				"status must not change while providing additional kyc data")
		}
	}

	return checkStatus(role, p.Status, n.Status, prev)
}

func checkStatus(role Role, from, to StatusObject, prev *Object) error {
	field := string(role) + ".status"
	counterparty := prev.Actor(role.Other())

	if from.Status == to.Status {
		if from != to {
			return protocol.NewCommandError(protocol.CodeImmutableField, field, "abort details are write-once")
		}
	} else if !CanTransition(from.Status, to.Status) {
		return protocol.NewCommandError(protocol.CodeWrongStatus, field,
			"cannot move from %s to %s", from.Status, to.Status)
	}

	if counterparty.Status.Status == StatusAbort && to.Status != StatusReadyForSettlement &&
		to.Status != StatusAbort {
		return protocol.NewCommandError(protocol.CodeWrongStatus, field,
			"the %s actor aborted, only ready_for_settlement or abort may follow", role.Other())
	}

	switch {
	case to.Status == StatusSettled && from.Status != StatusSettled && !resolvedReady(counterparty.Status.Status):
		return protocol.NewCommandError(protocol.CodeWrongStatus, field,
			"settlement requires both actors ready for settlement")
	case from.Status == StatusSoftMatch && to.Status == StatusReadyForSettlement &&
		!counterparty.AdditionalKYCProvided:
		return protocol.NewCommandError(protocol.CodeWrongStatus, field,
			"soft match cannot be cleared before the %s actor provides additional kyc data", role.Other())
	}

	return nil
}

func actorEqual(a, b *Actor) bool {
	if a.Address != b.Address || a.Status != b.Status || a.AdditionalKYCData != b.AdditionalKYCData ||
		a.AdditionalKYCProvided != b.AdditionalKYCProvided || !slices.Equal(a.Metadata, b.Metadata) {
		return false
	}

	if a.KYCData == nil || b.KYCData == nil {
		return a.KYCData == b.KYCData
	}

	return *a.KYCData == *b.KYCData
}
