/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package offchain

import (
	"github.com/offchainapi/offchain-framework-go/pkg/controller/command/offchain"
)

// submitPaymentRequest model
//
// This is used for creating a payment sent by this VASP.
//
// swagger:parameters submitPayment
type submitPaymentRequest struct { // nolint: unused,deadcode
	// in: body
	Params offchain.SubmitPaymentArgs
}

// submitPaymentResponse model
//
// swagger:response submitPaymentResponse
type submitPaymentResponse struct { // nolint: unused,deadcode
	// in: body
	offchain.SubmitPaymentResponse
}

// paymentRequest model
//
// swagger:parameters getPayment waitForOutcome
type paymentRequest struct { // nolint: unused,deadcode
	// Reference id of the payment.
	//
	// in: path
	// required: true
	ReferenceID string `json:"reference_id"`
}

// paymentResponse model
//
// swagger:response paymentResponse
type paymentResponse struct { // nolint: unused,deadcode
	// in: body
	offchain.PaymentResponse
}

// channelRequest model
//
// swagger:parameters channelStatus
type channelRequest struct { // nolint: unused,deadcode
	// Hex encoded on-chain address of the peer VASP.
	//
	// in: path
	// required: true
	Peer string `json:"peer"`
}

// channelResponse model
//
// swagger:response channelResponse
type channelResponse struct { // nolint: unused,deadcode
	// in: body
	offchain.ChannelResponse
}
