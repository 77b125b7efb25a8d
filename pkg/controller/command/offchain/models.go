/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package offchain

import (
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/channel"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/payment"
)

// SubmitPaymentArgs contains parameters for creating a new payment sent by this VASP.
type SubmitPaymentArgs struct {
	// Sender account address, with sub-address, held by this VASP.
	// required: true
	Sender string `json:"sender"`

	// Receiver account address, with sub-address, held by the counterparty VASP.
	// required: true
	Receiver string `json:"receiver"`

	// Amount in the currency's smallest unit.
	// required: true
	Amount uint64 `json:"amount"`

	// Currency code.
	// required: true
	Currency string `json:"currency"`

	// KYC data of the sender, optional on creation.
	SenderKYC *payment.KYCData `json:"sender_kyc,omitempty"`

	// Free text description of the payment.
	Description string `json:"description,omitempty"`
}

// SubmitPaymentResponse is returned once the payment creation is sequenced.
type SubmitPaymentResponse struct {
	ReferenceID string `json:"reference_id"`
	Version     string `json:"version"`
}

// PaymentArgs identifies a payment.
type PaymentArgs struct {
	// required: true
	ReferenceID string `json:"reference_id"`

	// Seconds to wait for an outcome. Only used by WaitForOutcome.
	Timeout int `json:"timeout,omitempty"`
}

// PaymentResponse is the latest committed version of a payment.
type PaymentResponse struct {
	Payment *payment.Object `json:"payment"`
	Version string          `json:"version,omitempty"`
	Outcome payment.Outcome `json:"outcome,omitempty"`
}

// ChannelArgs identifies the channel with a peer VASP.
type ChannelArgs struct {
	// Hex encoded on-chain address of the peer VASP.
	// required: true
	Peer string `json:"peer"`
}

// ChannelResponse is a snapshot of a channel.
type ChannelResponse struct {
	Channel *channel.Status `json:"channel"`
}
