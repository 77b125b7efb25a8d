/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/pkg/errors"

	"github.com/offchainapi/offchain-framework-go/pkg/offchain/transport"
)

var logger = log.New("offchain-framework/transport/http")

const maxPayloadSize = 1 << 20

// NewInboundHandler creates the handler of the command endpoint. It enforces the transport rules
// and routes the payload to msgHandler.
func NewInboundHandler(msgHandler transport.InboundMessageHandler) (http.Handler, error) {
	if msgHandler == nil {
		logger.Errorf("Error creating a new inbound handler: message handler function is nil")

		return nil, errors.New("creation of inbound handler failed")
	}

	router := mux.NewRouter()
	Register(router, msgHandler)

	return router, nil
}

// Register adds the command endpoint to router.
func Register(router *mux.Router, msgHandler transport.InboundMessageHandler) {
	router.HandleFunc(transport.CommandRoute, func(w http.ResponseWriter, r *http.Request) {
		processPOSTRequest(w, r, msgHandler)
	}).Methods(http.MethodPost)
}

func processPOSTRequest(w http.ResponseWriter, r *http.Request, msgHandler transport.InboundMessageHandler) {
	if valid := validateContentType(w, r); !valid {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadSize))
	if err != nil {
		logger.Errorf("Error reading request body: %s - returning Code: %d", err, http.StatusInternalServerError)
		http.Error(w, "Failed to read payload", http.StatusInternalServerError)

		return
	}

	if len(body) == 0 {
		http.Error(w, "Empty payload", http.StatusBadRequest)

		return
	}

	vars := mux.Vars(r)

	reply, err := msgHandler(r.Context(), vars["sender"], vars["receiver"], body)
	if err != nil {
		logger.Warnf("incoming msg processing failed: %v", err)
		http.Error(w, "failed to process the message", http.StatusBadRequest)

		return
	}

	if len(reply) == 0 {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	w.Header().Set("Content-Type", transport.ContentType)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(reply); err != nil {
		logger.Errorf("error writing the reply: %v", err)
	}
}

func validateContentType(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-type")
	if ct != transport.ContentType {
		http.Error(w, fmt.Sprintf("Unsupported Content-type \"%s\"", ct), http.StatusUnsupportedMediaType)

		return false
	}

	return true
}
