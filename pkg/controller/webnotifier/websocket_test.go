/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

const wsPath = "/ws"

func TestConnectionsWS(t *testing.T) {
	n := NewWSNotifier(wsPath)
	url := startWSListener(t, n)

	require.Equal(t, 0, len(n.conns))

	t.Run("normal client lifecycle", func(t *testing.T) {
		conn := dial(t, url)
		validateConnCount(t, n, 1)

		require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
		validateConnCount(t, n, 0)
	})

	t.Run("abnormal client closure", func(t *testing.T) {
		conn := dial(t, url)
		validateConnCount(t, n, 1)

		require.NoError(t, conn.Close(websocket.StatusInternalError, "broken"))
		validateConnCount(t, n, 0)
	})

	t.Run("multiple clients", func(t *testing.T) {
		conn1 := dial(t, url)
		validateConnCount(t, n, 1)

		conn2 := dial(t, url)
		validateConnCount(t, n, 2)

		require.NoError(t, conn1.Close(websocket.StatusNormalClosure, "done"))
		validateConnCount(t, n, 1)

		require.NoError(t, conn2.Close(websocket.StatusNormalClosure, ""))
		validateConnCount(t, n, 0)
	})
}

func TestNotifyWS(t *testing.T) {
	const (
		timeout  = 2 * time.Second
		expTopic = PaymentsTopic
	)

	payloads := []string{
		`{"reference_id":"r1"}`, `{"reference_id":"r2"}`, `{"reference_id":"r3"}`,
	}

	n := NewWSNotifier(wsPath)
	url := startWSListener(t, n)

	conn := dial(t, url)
	validateConnCount(t, n, 1)

	for _, expPayload := range payloads {
		require.NoError(t, n.Notify(expTopic, []byte(expPayload)))
	}

	for _, expPayload := range payloads {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		msgType, payload, err := conn.Read(ctx)
		cancel()
		require.NoError(t, err)

		var topic topicMessage
		require.NoError(t, json.Unmarshal(payload, &topic))

		require.Equal(t, websocket.MessageText, msgType)
		require.Equal(t, expTopic, topic.Topic)
		require.JSONEq(t, expPayload, string(topic.Message))
	}

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	t.Run("invalid input", func(t *testing.T) {
		require.EqualError(t, n.Notify("", []byte("x")), emptyTopicErrMsg)
		require.EqualError(t, n.Notify(expTopic, nil), emptyMessageErrMsg)
	})
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(context.Background(), url, nil) //nolint:bodyclose
	require.NoError(t, err)

	return conn
}

func validateConnCount(t *testing.T, n *WSNotifier, expectedCount int) {
	t.Helper()

	require.Eventually(t, func() bool {
		n.connsLock.RLock()
		defer n.connsLock.RUnlock()

		return len(n.conns) == expectedCount
	}, time.Second, 20*time.Millisecond)
}

func startWSListener(t *testing.T, n *WSNotifier) string {
	t.Helper()

	handler := n.GetRESTHandlers()[0]

	router := mux.NewRouter()
	router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http") + wsPath
}
