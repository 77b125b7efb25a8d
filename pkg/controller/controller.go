/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller

import (
	"fmt"

	"github.com/offchainapi/offchain-framework-go/pkg/controller/command"
	offchaincmd "github.com/offchainapi/offchain-framework-go/pkg/controller/command/offchain"
	"github.com/offchainapi/offchain-framework-go/pkg/controller/rest"
	offchainrest "github.com/offchainapi/offchain-framework-go/pkg/controller/rest/offchain"
	"github.com/offchainapi/offchain-framework-go/pkg/controller/webnotifier"
	"github.com/offchainapi/offchain-framework-go/pkg/framework/vasp"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/payment"
)

const (
	wsPath = "/ws"

	eventBufferSize = 64
)

type allOpts struct {
	webhookURLs []string
	notifier    webnotifier.Notifier
}

// Opt represents a controller option.
type Opt func(opts *allOpts)

// WithWebhookURLs is an option for setting up a webhook dispatcher which will notify clients of payment events.
func WithWebhookURLs(webhookURLs ...string) Opt {
	return func(opts *allOpts) {
		opts.webhookURLs = webhookURLs
	}
}

// WithNotifier is an option for setting up a notifier which will notify clients of payment events.
func WithNotifier(notifier webnotifier.Notifier) Opt {
	return func(opts *allOpts) {
		opts.notifier = notifier
	}
}

// GetRESTHandlers returns all REST handlers provided by controller.
// Payment events of v are published to the configured notifier.
func GetRESTHandlers(v *vasp.VASP, opts ...Opt) ([]rest.Handler, error) {
	restAPIOpts := &allOpts{}
	for _, opt := range opts {
		opt(restAPIOpts)
	}

	notifier := restAPIOpts.notifier
	if notifier == nil {
		notifier = webnotifier.New(wsPath, restAPIOpts.webhookURLs)
	}

	if err := observePayments(v, notifier); err != nil {
		return nil, err
	}

	var allHandlers []rest.Handler
	allHandlers = append(allHandlers, offchainrest.New(offchaincmd.New(v)).GetRESTHandlers()...)

	if nhp, ok := notifier.(handlerProvider); ok {
		allHandlers = append(allHandlers, nhp.GetRESTHandlers()...)
	}

	return allHandlers, nil
}

type handlerProvider interface {
	GetRESTHandlers() []rest.Handler
}

// GetCommandHandlers returns all command handlers provided by controller.
func GetCommandHandlers(v *vasp.VASP) []command.Handler {
	return offchaincmd.New(v).GetHandlers()
}

func observePayments(v *vasp.VASP, notifier webnotifier.Notifier) error {
	events := make(chan payment.Event, eventBufferSize)

	if err := v.Processor().RegisterEvent(events); err != nil {
		return fmt.Errorf("register payment events : %w", err)
	}

	webnotifier.NewObserver(notifier).RegisterPayments(webnotifier.PaymentsTopic, events)

	return nil
}
