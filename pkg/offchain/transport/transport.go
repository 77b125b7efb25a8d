/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"context"
	"fmt"
	"strings"
)

// ContentType of the signed off-chain envelopes.
const ContentType = "application/offchain-jws"

// CommandRoute is the gorilla/mux template of the inbound command endpoint.
const CommandRoute = "/v1/{sender}/{receiver}/command"

// OutboundTransport sends an envelope to a peer and returns its reply envelope, empty if there is none.
type OutboundTransport interface {
	// Send sends data to url.
	Send(data []byte, url string) ([]byte, error)
	// Accept reports whether the transport can send to url.
	Accept(url string) bool
}

// InboundMessageHandler handles an inbound envelope sent by sender to receiver and returns the reply envelope.
type InboundMessageHandler func(ctx context.Context, sender, receiver string, payload []byte) ([]byte, error)

// CommandURL returns the endpoint of receiver under base for messages of sender.
func CommandURL(base, sender, receiver string) string {
	return fmt.Sprintf("%s/v1/%s/%s/command", strings.TrimSuffix(base, "/"), sender, receiver)
}
