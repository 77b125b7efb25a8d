/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"context"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/offchainapi/offchain-framework-go/pkg/controller/internal/cmdutil"
	"github.com/offchainapi/offchain-framework-go/pkg/controller/rest"
)

// WSNotifier pushes notifications to connected websocket clients.
type WSNotifier struct {
	conns     []*websocket.Conn
	connsLock sync.RWMutex
	handlers  []rest.Handler
}

// NewWSNotifier returns a WSNotifier accepting clients on path.
func NewWSNotifier(path string) *WSNotifier {
	n := &WSNotifier{}

	n.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(path, http.MethodGet, n.handleWS),
	}

	return n
}

// Notify writes the message to all connected clients.
// A failing client is dropped by its read loop and does not fail the notification.
func (n *WSNotifier) Notify(topic string, message []byte) error {
	topicMsg, err := envelope(topic, message)
	if err != nil {
		return err
	}

	n.connsLock.RLock()
	conns := make([]*websocket.Conn, len(n.conns))
	copy(conns, n.conns)
	n.connsLock.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)

		if err := conn.Write(ctx, websocket.MessageText, topicMsg); err != nil {
			logger.Infof("failed to notify websocket client: %v", err)
		}

		cancel()
	}

	return nil
}

func (n *WSNotifier) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		logger.Infof("failed to upgrade the websocket notification connection : %v", err)

		return
	}

	n.connsLock.Lock()
	n.conns = append(n.conns, conn)
	n.connsLock.Unlock()

	logger.Debugf("websocket notification client connected")

	// clients only listen, any inbound frame or closure ends the subscription.
	_, _, err = conn.Reader(r.Context())
	if err != nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		logger.Infof("reading from websocket notification client failed: %v", err)
	}

	if err := conn.Close(websocket.StatusPolicyViolation, "unexpected message"); err != nil {
		logger.Debugf("closing websocket notification client failed: %v", err)
	}

	n.removeConn(conn)
}

func (n *WSNotifier) removeConn(conn *websocket.Conn) {
	n.connsLock.Lock()
	defer n.connsLock.Unlock()

	for i, c := range n.conns {
		if c == conn {
			n.conns = append(n.conns[:i], n.conns[i+1:]...)

			break
		}
	}

	logger.Debugf("websocket notification client dropped")
}

// GetRESTHandlers returns the websocket subscription handler.
func (n *WSNotifier) GetRESTHandlers() []rest.Handler {
	return n.handlers
}
