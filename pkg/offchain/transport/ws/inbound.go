/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package ws

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/pkg/errors"
	"nhooyr.io/websocket"

	"github.com/offchainapi/offchain-framework-go/pkg/offchain/transport"
)

var logger = log.New("offchain-framework/transport/ws")

const maxPayloadSize = 1 << 20

// Inbound websocket server.
type Inbound struct {
	server *http.Server
}

// NewInbound creates a new WebSocket inbound transport listening on addr.
func NewInbound(addr string, msgHandler transport.InboundMessageHandler) (*Inbound, error) {
	if addr == "" {
		return nil, errors.New("websocket address is mandatory")
	}

	handler, err := NewInboundHandler(msgHandler)
	if err != nil {
		return nil, errors.Wrap(err, "websocket server start failed")
	}

	return &Inbound{server: &http.Server{Addr: addr, Handler: handler}}, nil //nolint:gosec
}

// Start the websocket server.
func (i *Inbound) Start() error {
	go func() {
		if err := i.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("websocket server start with address [%s] failed, cause:  %s", i.server.Addr, err)
		}
	}()

	return nil
}

// Stop the websocket server.
func (i *Inbound) Stop(ctx context.Context) error {
	if err := i.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "websocket server shutdown failed")
	}

	return nil
}

// NewInboundHandler creates the websocket handler of the command endpoint.
func NewInboundHandler(msgHandler transport.InboundMessageHandler) (http.Handler, error) {
	if msgHandler == nil {
		logger.Errorf("Error creating a new inbound handler: message handler function is nil")

		return nil, errors.New("creation of inbound handler failed")
	}

	router := mux.NewRouter()
	router.HandleFunc(transport.CommandRoute, func(w http.ResponseWriter, r *http.Request) {
		processRequest(w, r, msgHandler)
	})

	return router, nil
}

func processRequest(w http.ResponseWriter, r *http.Request, msgHandler transport.InboundMessageHandler) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.Errorf("failed to upgrade the connection : %v", err)

		return
	}

	defer func() {
		if err := c.Close(websocket.StatusNormalClosure, ""); err != nil &&
			websocket.CloseStatus(err) != websocket.StatusNormalClosure {
			logger.Debugf("failed to close connection: %v", err)
		}
	}()

	c.SetReadLimit(maxPayloadSize)

	vars := mux.Vars(r)
	ctx := r.Context()

	for {
		_, message, err := c.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				logger.Debugf("Error reading request message: %v", err)
			}

			return
		}

		reply, err := msgHandler(ctx, vars["sender"], vars["receiver"], message)
		if err != nil {
			logger.Warnf("incoming msg processing failed: %v", err)

			reply = nil
		}

		if err := c.Write(ctx, websocket.MessageText, reply); err != nil {
			logger.Errorf("error writing the message: %v", err)

			return
		}
	}
}
