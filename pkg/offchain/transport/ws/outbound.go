/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"nhooyr.io/websocket"
)

const (
	webSocketScheme = "ws"
	defaultTimeout  = 30 * time.Second
)

// OutboundClient sends each envelope over its own websocket connection and reads one reply.
type OutboundClient struct {
	timeout time.Duration
}

// OutboundOpt is an outbound websocket transport option.
type OutboundOpt func(c *OutboundClient)

// WithTimeout bounds one exchange.
func WithTimeout(d time.Duration) OutboundOpt {
	return func(c *OutboundClient) {
		c.timeout = d
	}
}

// NewOutbound creates a client for Outbound WS transport.
func NewOutbound(opts ...OutboundOpt) *OutboundClient {
	c := &OutboundClient{timeout: defaultTimeout}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Send sends data to url and returns the reply, empty if the peer has none.
func (cs *OutboundClient) Send(data []byte, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("url is mandatory")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cs.timeout)
	defer cancel()

	client, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "websocket client")
	}

	defer func() {
		err = client.Close(websocket.StatusNormalClosure, "closing the connection")
		if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
			logger.Debugf("failed to close connection: %v", err)
		}
	}()

	if err = client.Write(ctx, websocket.MessageText, data); err != nil {
		return nil, errors.Wrap(err, "websocket write message")
	}

	messageType, message, err := client.Read(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "websocket read message")
	}

	if messageType != websocket.MessageText {
		return nil, errors.New("message type is not text message")
	}

	if len(message) == 0 {
		return nil, nil
	}

	return message, nil
}

// Accept checks for the url scheme.
func (cs *OutboundClient) Accept(url string) bool {
	return strings.HasPrefix(url, webSocketScheme+"://") || strings.HasPrefix(url, webSocketScheme+"s://")
}
