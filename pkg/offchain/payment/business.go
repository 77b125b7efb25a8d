/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package payment

import (
	"context"
	"fmt"
)

// Business is implemented by the VASP to drive its side of a payment forward.
// Every method receives the latest committed version.
type Business interface {
	// CheckAccountExistence fails when the receiving sub-account does not exist.
	CheckAccountExistence(ctx context.Context, p *Object) error
	// NextKYCLevelToRequest returns the status the local actor should move to, or its current status.
	NextKYCLevelToRequest(ctx context.Context, p *Object) (Status, error)
	// GetExtendedKYC returns the KYC data of the local actor.
	GetExtendedKYC(ctx context.Context, p *Object) (*KYCData, error)
	// GetAdditionalKYC returns the data answering a soft match of the counterparty.
	GetAdditionalKYC(ctx context.Context, p *Object) (string, error)
	// GetRecipientSignature returns the recipient attestation signature.
	GetRecipientSignature(ctx context.Context, p *Object) (string, error)
	// ReadyForSettlement reports whether the local actor can commit to settle.
	ReadyForSettlement(ctx context.Context, p *Object) (bool, error)
	// HasSettled reports whether the payment settled on chain.
	HasSettled(ctx context.Context, p *Object) (bool, error)
}

// AbortFollow is the abort code used when following an abort of the counterparty.
const AbortFollow = "FOLLOW"

// ForceAbort is returned by Business methods to abort the payment.
type ForceAbort struct {
	Code    string
	Message string
}

func (e *ForceAbort) Error() string {
	return fmt.Sprintf("payment aborted: %s: %s", e.Code, e.Message)
}
