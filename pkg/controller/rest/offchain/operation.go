/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package offchain

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/offchainapi/offchain-framework-go/pkg/controller/command"
	"github.com/offchainapi/offchain-framework-go/pkg/controller/command/offchain"
	"github.com/offchainapi/offchain-framework-go/pkg/controller/internal/cmdutil"
	"github.com/offchainapi/offchain-framework-go/pkg/controller/rest"
)

// constants for the offchain operations.
const (
	PaymentsOperationID = "/payments"
	SubmitPaymentPath   = PaymentsOperationID
	GetPaymentPath      = PaymentsOperationID + "/{reference_id}"
	WaitForOutcomePath  = GetPaymentPath + "/outcome"
	ChannelStatusPath   = "/channels/{peer}"
)

type offchainCommand interface {
	SubmitPayment(rw io.Writer, req io.Reader) command.Error
	GetPayment(rw io.Writer, req io.Reader) command.Error
	WaitForOutcome(rw io.Writer, req io.Reader) command.Error
	ChannelStatus(rw io.Writer, req io.Reader) command.Error
}

// Operation is the admin REST API of a VASP.
type Operation struct {
	handlers []rest.Handler
	command  offchainCommand
}

// New returns new offchain operations rest client instance.
func New(cmd *offchain.Command) *Operation {
	o := &Operation{command: cmd}
	o.registerHandler()

	return o
}

// GetRESTHandlers get all controller API handler available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		cmdutil.NewHTTPHandler(SubmitPaymentPath, http.MethodPost, o.SubmitPayment),
		cmdutil.NewHTTPHandler(GetPaymentPath, http.MethodGet, o.GetPayment),
		cmdutil.NewHTTPHandler(WaitForOutcomePath, http.MethodGet, o.WaitForOutcome),
		cmdutil.NewHTTPHandler(ChannelStatusPath, http.MethodGet, o.ChannelStatus),
	}
}

// SubmitPayment swagger:route POST /payments offchain submitPayment
//
// Creates a payment sent by this VASP.
//
// Responses:
//
//	default: genericError
//	    200: submitPaymentResponse
func (o *Operation) SubmitPayment(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.SubmitPayment, rw, req.Body)
}

// GetPayment swagger:route GET /payments/{reference_id} offchain getPayment
//
// Fetches the latest committed version of a payment.
//
// Responses:
//
//	default: genericError
//	    200: paymentResponse
func (o *Operation) GetPayment(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.GetPayment, rw, paymentArgs(req))
}

// WaitForOutcome swagger:route GET /payments/{reference_id}/outcome offchain waitForOutcome
//
// Waits until the payment is ready for settlement, settled or aborted.
//
// Responses:
//
//	default: genericError
//	    200: paymentResponse
func (o *Operation) WaitForOutcome(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.WaitForOutcome, rw, paymentArgs(req))
}

// ChannelStatus swagger:route GET /channels/{peer} offchain channelStatus
//
// Returns the sequencing state of the channel with a peer VASP.
//
// Responses:
//
//	default: genericError
//	    200: channelResponse
func (o *Operation) ChannelStatus(rw http.ResponseWriter, req *http.Request) {
	rest.Execute(o.command.ChannelStatus, rw, encode(&offchain.ChannelArgs{Peer: mux.Vars(req)["peer"]}))
}

func paymentArgs(req *http.Request) io.Reader {
	return encode(&offchain.PaymentArgs{ReferenceID: mux.Vars(req)["reference_id"]})
}

func encode(v interface{}) io.Reader {
	raw, _ := json.Marshal(v) // nolint: errchkjson

	return bytes.NewReader(raw)
}
