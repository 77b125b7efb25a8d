/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package payment

import "fmt"

// Status of a payment actor.
type Status string

// actor statuses.
const (
	StatusNone                    Status = "none"
	StatusNeedsKYCData            Status = "needs_kyc_data"
	StatusNeedsRecipientSignature Status = "needs_recipient_signature"
	StatusSoftMatch               Status = "soft_match"
	StatusPendingReview           Status = "pending_review"
	StatusReadyForSettlement      Status = "ready_for_settlement"
	StatusAbort                   Status = "abort"
	StatusSettled                 Status = "settled"
)

// the status of one payment actor.
type state interface {
	// Name of this state.
	Name() Status
	// Whether this state allows transitioning into the next state.
	CanTransitionTo(next state) bool
}

// none state
type none struct{}

func (s *none) Name() Status {
	return StatusNone
}

func (s *none) CanTransitionTo(next state) bool {
	return next.Name() != StatusSettled
}

// needsKYCData state
type needsKYCData struct{}

func (s *needsKYCData) Name() Status {
	return StatusNeedsKYCData
}

func (s *needsKYCData) CanTransitionTo(next state) bool {
	switch next.Name() {
	case StatusNeedsKYCData, StatusNeedsRecipientSignature, StatusSoftMatch, StatusPendingReview,
		StatusReadyForSettlement, StatusAbort:
		return true
	}

	return false
}

// needsRecipientSignature state
type needsRecipientSignature struct{}

func (s *needsRecipientSignature) Name() Status {
	return StatusNeedsRecipientSignature
}

func (s *needsRecipientSignature) CanTransitionTo(next state) bool {
	switch next.Name() {
	case StatusNeedsRecipientSignature, StatusSoftMatch, StatusPendingReview, StatusReadyForSettlement, StatusAbort:
		return true
	}

	return false
}

// softMatch state
type softMatch struct{}

func (s *softMatch) Name() Status {
	return StatusSoftMatch
}

func (s *softMatch) CanTransitionTo(next state) bool {
	switch next.Name() {
	case StatusSoftMatch, StatusReadyForSettlement, StatusAbort:
		return true
	}

	return false
}

// pendingReview state
type pendingReview struct{}

func (s *pendingReview) Name() Status {
	return StatusPendingReview
}

func (s *pendingReview) CanTransitionTo(next state) bool {
	switch next.Name() {
	case StatusPendingReview, StatusSoftMatch, StatusReadyForSettlement, StatusAbort:
		return true
	}

	return false
}

// readyForSettlement state, it can never abort
type readyForSettlement struct{}

func (s *readyForSettlement) Name() Status {
	return StatusReadyForSettlement
}

func (s *readyForSettlement) CanTransitionTo(next state) bool {
	return next.Name() == StatusReadyForSettlement || next.Name() == StatusSettled
}

// abort state
type abort struct{}

func (s *abort) Name() Status {
	return StatusAbort
}

func (s *abort) CanTransitionTo(next state) bool {
	return next.Name() == StatusAbort
}

// settled state
type settled struct{}

func (s *settled) Name() Status {
	return StatusSettled
}

func (s *settled) CanTransitionTo(next state) bool {
	return next.Name() == StatusSettled
}

func stateFromName(name Status) (state, error) {
	switch name {
	case StatusNone:
		return &none{}, nil
	case StatusNeedsKYCData:
		return &needsKYCData{}, nil
	case StatusNeedsRecipientSignature:
		return &needsRecipientSignature{}, nil
	case StatusSoftMatch:
		return &softMatch{}, nil
	case StatusPendingReview:
		return &pendingReview{}, nil
	case StatusReadyForSettlement:
		return &readyForSettlement{}, nil
	case StatusAbort:
		return &abort{}, nil
	case StatusSettled:
		return &settled{}, nil
	default:
		return nil, fmt.Errorf("invalid state name %q", name)
	}
}

// CanTransition reports whether an actor may move from one status to another.
func CanTransition(from, to Status) bool {
	f, err := stateFromName(from)
	if err != nil {
		return false
	}

	t, err := stateFromName(to)
	if err != nil {
		return false
	}

	return f.CanTransitionTo(t)
}

func creationStatus(s Status) bool {
	switch s {
	case StatusNone, StatusNeedsKYCData, StatusNeedsRecipientSignature, StatusSoftMatch, StatusPendingReview,
		StatusReadyForSettlement:
		return true
	}

	return false
}

// resolved statuses are the ones an actor cannot leave except to settle.
func resolved(s Status) bool {
	return s == StatusReadyForSettlement || s == StatusAbort || s == StatusSettled
}
