/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/offchainapi/offchain-framework-go/pkg/controller/rest"
)

var logger = log.New("offchain-framework/webnotifier")

const (
	notificationSendTimeout = 10 * time.Second

	emptyTopicErrMsg     = "cannot notify with an empty topic"
	emptyMessageErrMsg   = "cannot notify with an empty message"
	failedToCreateErrMsg = "failed to create topic message : %w"
)

// Notifier delivers a message published on a topic.
type Notifier interface {
	Notify(topic string, message []byte) error
}

// WebNotifier dispatches notifications to webhook subscribers and websocket clients.
type WebNotifier struct {
	notifiers []Notifier
	handlers  []rest.Handler
}

// New returns a WebNotifier serving websocket clients on path and posting to webhookURLs.
func New(path string, webhookURLs []string) *WebNotifier {
	ws := NewWSNotifier(path)

	return &WebNotifier{
		notifiers: []Notifier{NewHTTPNotifier(webhookURLs), ws},
		handlers:  ws.GetRESTHandlers(),
	}
}

// Notify sends the message to all webhook subscribers and websocket clients.
func (n *WebNotifier) Notify(topic string, message []byte) error {
	var allErrs error

	for _, notifier := range n.notifiers {
		allErrs = appendError(allErrs, notifier.Notify(topic, message))
	}

	return allErrs
}

// GetRESTHandlers returns the websocket subscription handler.
func (n *WebNotifier) GetRESTHandlers() []rest.Handler {
	return n.handlers
}

type topicMessage struct {
	ID      string          `json:"id"`
	Topic   string          `json:"topic"`
	Message json.RawMessage `json:"message"`
}

// PrepareTopicMessage wraps message in the envelope sent to subscribers.
func PrepareTopicMessage(topic string, message []byte) ([]byte, error) {
	return json.Marshal(&topicMessage{
		ID:      uuid.New().String(),
		Topic:   topic,
		Message: message,
	})
}

// envelope checks the notification and wraps it for delivery.
func envelope(topic string, message []byte) ([]byte, error) {
	switch {
	case topic == "":
		return nil, errors.New(emptyTopicErrMsg)
	case len(message) == 0:
		return nil, errors.New(emptyMessageErrMsg)
	}

	msg, err := PrepareTopicMessage(topic, message)
	if err != nil {
		return nil, fmt.Errorf(failedToCreateErrMsg, err)
	}

	return msg, nil
}

func appendError(errToAppendTo, err error) error {
	if errToAppendTo == nil {
		return err
	}

	if err == nil {
		return errToAppendTo
	}

	return fmt.Errorf("%v;%w", errToAppendTo, err)
}
