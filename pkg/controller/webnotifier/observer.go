/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"

	"github.com/offchainapi/offchain-framework-go/pkg/offchain/payment"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

// PaymentsTopic is the topic payment events are published on.
const PaymentsTopic = "payments"

// PaymentEvent is the notification published after each sequenced payment command.
type PaymentEvent struct {
	ReferenceID string                  `json:"reference_id"`
	Version     string                  `json:"version"`
	JointSeq    uint64                  `json:"joint_seq"`
	Own         bool                    `json:"own"`
	Outcome     payment.Outcome         `json:"outcome,omitempty"`
	Payment     *payment.Object         `json:"payment,omitempty"`
	Error       *protocol.OffChainError `json:"error,omitempty"`
}

// Observer forwards payment events to a notifier.
type Observer struct {
	notifier Notifier
}

// NewObserver returns a new Observer.
func NewObserver(notifier Notifier) *Observer {
	return &Observer{notifier: notifier}
}

// RegisterPayments starts forwarding events on topic until events is closed.
func (o *Observer) RegisterPayments(topic string, events <-chan payment.Event) {
	go func() {
		for e := range events {
			o.notify(topic, toPaymentEvent(e))
		}
	}()
}

func toPaymentEvent(e payment.Event) *PaymentEvent {
	msg := &PaymentEvent{
		ReferenceID: e.ReferenceID,
		Version:     e.Version,
		JointSeq:    e.JointSeq,
		Own:         e.Own,
		Payment:     e.Payment,
		Error:       e.Error,
	}

	if e.Payment != nil {
		msg.Outcome = e.Payment.Outcome()
	}

	return msg
}

func (o *Observer) notify(topic string, msg interface{}) {
	raw, err := json.Marshal(msg)
	if err != nil {
		logger.Errorf("observer marshal: %v", err)

		return
	}

	if err := o.notifier.Notify(topic, raw); err != nil {
		logger.Warnf("observer notify: %v", err)
	}
}
