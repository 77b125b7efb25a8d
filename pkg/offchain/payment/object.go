/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package payment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
)

// ActionCharge is the only supported payment action kind.
const ActionCharge = "charge"

// KYCType of the KYC data.
type KYCType string

// KYC types.
const (
	KYCIndividual KYCType = "individual"
	KYCEntity     KYCType = "entity"
)

// Role of an actor within a payment.
type Role string

// payment roles.
const (
	Sender   Role = "sender"
	Receiver Role = "receiver"
)

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == Sender {
		return Receiver
	}

	return Sender
}

// StatusObject holds an actor status.
type StatusObject struct {
	Status       Status `json:"status"`
	AbortCode    string `json:"abort_code,omitempty"`
	AbortMessage string `json:"abort_message,omitempty"`
}

// KYCData describes the owner of an account.
type KYCData struct {
	PayloadVersion  int     `json:"payload_version"`
	Type            KYCType `json:"type"`
	GivenName       string  `json:"given_name,omitempty"`
	Surname         string  `json:"surname,omitempty"`
	DateOfBirth     string  `json:"dob,omitempty"`
	Address         string  `json:"address,omitempty"`
	LegalEntityName string  `json:"legal_entity_name,omitempty"`
}

// Actor is the sender or the receiver of a payment.
type Actor struct {
	Address               string       `json:"address"`
	KYCData               *KYCData     `json:"kyc_data,omitempty"`
	Status                StatusObject `json:"status"`
	Metadata              []string     `json:"metadata"`
	AdditionalKYCData     string       `json:"additional_kyc_data,omitempty"`
	AdditionalKYCProvided bool         `json:"additional_kyc_provided"`
}

// Action is the value moved by a payment.
type Action struct {
	Amount    uint64 `json:"amount"`
	Currency  string `json:"currency"`
	Action    string `json:"action"`
	Timestamp uint64 `json:"timestamp"`
}

// Object is one immutable version of a payment.
type Object struct {
	Sender                     Actor  `json:"sender"`
	Receiver                   Actor  `json:"receiver"`
	ReferenceID                string `json:"reference_id"`
	OriginalPaymentReferenceID string `json:"original_payment_reference_id,omitempty"`
	RecipientSignature         string `json:"recipient_signature,omitempty"`
	Action                     Action `json:"action"`
	Description                string `json:"description,omitempty"`
}

// NewObject creates the first version of a payment authored by creator.
func NewObject(creator *address.Address, sender, receiver string, action Action) *Object {
	return &Object{
		Sender:      Actor{Address: sender, Status: StatusObject{Status: StatusNone}, Metadata: []string{}},
		Receiver:    Actor{Address: receiver, Status: StatusObject{Status: StatusNone}, Metadata: []string{}},
		ReferenceID: NewReferenceID(creator),
		Action:      action,
	}
}

// NewReferenceID mints a reference id in the "<creator-address>_<local-id>" format.
func NewReferenceID(creator *address.Address) string {
	return fmt.Sprintf("%s_%s", creator.OnChainAddress().String(), uuid.New().String())
}

// Actor returns the actor with role r.
func (o *Object) Actor(r Role) *Actor {
	if r == Sender {
		return &o.Sender
	}

	return &o.Receiver
}

// RoleOf returns the role whose actor address is held by the on-chain account of vasp.
func (o *Object) RoleOf(vasp *address.Address) (Role, error) {
	sender, err := address.Parse(o.Sender.Address)
	if err != nil {
		return "", err
	}

	receiver, err := address.Parse(o.Receiver.Address)
	if err != nil {
		return "", err
	}

	switch {
	case sender.SameOnChain(vasp) && !receiver.SameOnChain(vasp):
		return Sender, nil
	case receiver.SameOnChain(vasp) && !sender.SameOnChain(vasp):
		return Receiver, nil
	default:
		return "", fmt.Errorf("%s is not exactly one party of payment %s", vasp, o.ReferenceID)
	}
}

// Clone returns a deep copy used as the base of the next version.
func (o *Object) Clone() *Object {
	c := *o
	c.Sender = o.Sender.clone()
	c.Receiver = o.Receiver.clone()

	return &c
}

func (a Actor) clone() Actor {
	c := a
	if a.KYCData != nil {
		k := *a.KYCData
		c.KYCData = &k
	}

	c.Metadata = append([]string{}, a.Metadata...)

	return c
}

// Equal reports whether two payment versions hold the same values.
func (o *Object) Equal(other *Object) bool {
	if o == nil || other == nil {
		return o == other
	}

	return o.ReferenceID == other.ReferenceID &&
		o.OriginalPaymentReferenceID == other.OriginalPaymentReferenceID &&
		o.RecipientSignature == other.RecipientSignature &&
		o.Description == other.Description &&
		o.Action == other.Action &&
		actorEqual(&o.Sender, &other.Sender) &&
		actorEqual(&o.Receiver, &other.Receiver)
}

// Outcome of a payment.
type Outcome string

// payment outcomes.
const (
	OutcomePending Outcome = ""
	OutcomeReady   Outcome = "ready"
	OutcomeSettled Outcome = "settled"
	OutcomeAborted Outcome = "aborted"
)

// Outcome reports whether the payment reached a final agreement.
func (o *Object) Outcome() Outcome {
	s, r := o.Sender.Status.Status, o.Receiver.Status.Status

	switch {
	case s == StatusAbort || r == StatusAbort:
		return OutcomeAborted
	case s == StatusSettled && r == StatusSettled:
		return OutcomeSettled
	case resolvedReady(s) && resolvedReady(r):
		return OutcomeReady
	default:
		return OutcomePending
	}
}

func resolvedReady(s Status) bool {
	return s == StatusReadyForSettlement || s == StatusSettled
}
