/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package offchain

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	"github.com/offchainapi/offchain-framework-go/pkg/controller/command"
	"github.com/offchainapi/offchain-framework-go/pkg/controller/internal/cmdutil"
	"github.com/offchainapi/offchain-framework-go/pkg/internal/logutil"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/channel"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/payment"
)

var logger = log.New("offchain-framework/command/offchain")

// Error codes.
const (
	// InvalidRequestErrorCode is typically a code for invalid requests.
	InvalidRequestErrorCode = command.Code(iota + command.Payment)

	// SubmitPaymentErrorCode for submit payment error.
	SubmitPaymentErrorCode

	// GetPaymentErrorCode for get payment error.
	GetPaymentErrorCode

	// WaitForOutcomeErrorCode for a payment without outcome in time.
	WaitForOutcomeErrorCode
)

// ChannelStatusErrorCode for channel lookup errors.
const ChannelStatusErrorCode = command.Code(command.Channel)

// constants for the offchain controller's methods.
const (
	// command name.
	CommandName = "offchain"

	// command methods.
	SubmitPaymentCommandMethod  = "SubmitPayment"
	GetPaymentCommandMethod     = "GetPayment"
	WaitForOutcomeCommandMethod = "WaitForOutcome"
	ChannelStatusCommandMethod  = "ChannelStatus"

	// error messages.
	errEmptyReferenceID = "reference_id is mandatory"
	errEmptyPeer        = "peer is mandatory"
	errEmptyCurrency    = "currency is mandatory"
	errZeroAmount       = "amount must be positive"

	// log constants.
	referenceIDString = "referenceID"
	peerString        = "peer"

	defaultOutcomeTimeout = 30 * time.Second
)

// provider contains the VASP operations exposed by the controller.
type provider interface {
	NewPayment(sender, receiver string, amount uint64, currency string) *payment.Object
	SubmitPayment(ctx context.Context, p *payment.Object) (string, error)
	Payment(referenceID string) (*payment.Object, string, error)
	WaitForOutcome(ctx context.Context, referenceID string) (*payment.Object, error)
	ChannelStatus(peerHex string) (*channel.Status, error)
}

// Command contains command operations provided by the offchain controller.
type Command struct {
	vasp provider
}

// New returns new offchain controller command instance.
func New(p provider) *Command {
	return &Command{vasp: p}
}

// GetHandlers returns list of all commands supported by this controller command.
func (c *Command) GetHandlers() []command.Handler {
	return []command.Handler{
		cmdutil.NewCommandHandler(CommandName, SubmitPaymentCommandMethod, c.SubmitPayment),
		cmdutil.NewCommandHandler(CommandName, GetPaymentCommandMethod, c.GetPayment),
		cmdutil.NewCommandHandler(CommandName, WaitForOutcomeCommandMethod, c.WaitForOutcome),
		cmdutil.NewCommandHandler(CommandName, ChannelStatusCommandMethod, c.ChannelStatus),
	}
}

// SubmitPayment creates a payment sent by this VASP and sequences it on the channel with the receiver's VASP.
func (c *Command) SubmitPayment(rw io.Writer, req io.Reader) command.Error {
	var request SubmitPaymentArgs

	if err := command.DecodeArgs(req, &request); err != nil {
		logutil.LogWarn(logger, CommandName, SubmitPaymentCommandMethod, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	if err := validateSubmit(&request); err != nil {
		logutil.LogWarn(logger, CommandName, SubmitPaymentCommandMethod, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	p := c.vasp.NewPayment(request.Sender, request.Receiver, request.Amount, request.Currency)
	p.Sender.KYCData = request.SenderKYC
	p.Description = request.Description

	version, err := c.vasp.SubmitPayment(context.Background(), p)
	if err != nil {
		logutil.LogError(logger, CommandName, SubmitPaymentCommandMethod, err.Error(),
			logutil.CreateKeyValueString(referenceIDString, p.ReferenceID))

		return command.NewExecuteError(SubmitPaymentErrorCode, err)
	}

	command.WriteResponse(rw, &SubmitPaymentResponse{
		ReferenceID: p.ReferenceID,
		Version:     version,
	}, logger)

	logutil.LogDebug(logger, CommandName, SubmitPaymentCommandMethod, "success",
		logutil.CreateKeyValueString(referenceIDString, p.ReferenceID))

	return nil
}

func validateSubmit(request *SubmitPaymentArgs) error {
	if _, err := address.Parse(request.Sender); err != nil {
		return fmt.Errorf("sender: %w", err)
	}

	if _, err := address.Parse(request.Receiver); err != nil {
		return fmt.Errorf("receiver: %w", err)
	}

	if request.Amount == 0 {
		return fmt.Errorf(errZeroAmount)
	}

	if request.Currency == "" {
		return fmt.Errorf(errEmptyCurrency)
	}

	return nil
}

// GetPayment returns the latest committed version of a payment.
func (c *Command) GetPayment(rw io.Writer, req io.Reader) command.Error {
	request, cmdErr := decodePaymentArgs(req, GetPaymentCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	obj, version, err := c.vasp.Payment(request.ReferenceID)
	if err != nil {
		logutil.LogError(logger, CommandName, GetPaymentCommandMethod, err.Error(),
			logutil.CreateKeyValueString(referenceIDString, request.ReferenceID))

		return command.NewExecuteError(GetPaymentErrorCode, err)
	}

	command.WriteResponse(rw, &PaymentResponse{
		Payment: obj,
		Version: version,
		Outcome: obj.Outcome(),
	}, logger)

	return nil
}

// WaitForOutcome blocks until the payment is ready for settlement, settled or aborted.
func (c *Command) WaitForOutcome(rw io.Writer, req io.Reader) command.Error {
	request, cmdErr := decodePaymentArgs(req, WaitForOutcomeCommandMethod)
	if cmdErr != nil {
		return cmdErr
	}

	timeout := defaultOutcomeTimeout
	if request.Timeout > 0 {
		timeout = time.Duration(request.Timeout) * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	obj, err := c.vasp.WaitForOutcome(ctx, request.ReferenceID)
	if err != nil {
		logutil.LogError(logger, CommandName, WaitForOutcomeCommandMethod, err.Error(),
			logutil.CreateKeyValueString(referenceIDString, request.ReferenceID))

		return command.NewExecuteError(WaitForOutcomeErrorCode, err)
	}

	command.WriteResponse(rw, &PaymentResponse{
		Payment: obj,
		Outcome: obj.Outcome(),
	}, logger)

	return nil
}

func decodePaymentArgs(req io.Reader, method string) (*PaymentArgs, command.Error) {
	var request PaymentArgs

	if err := command.DecodeArgs(req, &request); err != nil {
		logutil.LogWarn(logger, CommandName, method, err.Error())
		return nil, command.NewValidationError(InvalidRequestErrorCode, err)
	}

	if request.ReferenceID == "" {
		logutil.LogDebug(logger, CommandName, method, errEmptyReferenceID)
		return nil, command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf(errEmptyReferenceID))
	}

	return &request, nil
}

// ChannelStatus returns a snapshot of the channel with a peer VASP.
func (c *Command) ChannelStatus(rw io.Writer, req io.Reader) command.Error {
	var request ChannelArgs

	if err := command.DecodeArgs(req, &request); err != nil {
		logutil.LogWarn(logger, CommandName, ChannelStatusCommandMethod, err.Error())
		return command.NewValidationError(InvalidRequestErrorCode, err)
	}

	if request.Peer == "" {
		logutil.LogDebug(logger, CommandName, ChannelStatusCommandMethod, errEmptyPeer)
		return command.NewValidationError(InvalidRequestErrorCode, fmt.Errorf(errEmptyPeer))
	}

	status, err := c.vasp.ChannelStatus(request.Peer)
	if err != nil {
		logutil.LogError(logger, CommandName, ChannelStatusCommandMethod, err.Error(),
			logutil.CreateKeyValueString(peerString, request.Peer))

		return command.NewExecuteError(ChannelStatusErrorCode, err)
	}

	command.WriteResponse(rw, &ChannelResponse{Channel: status}, logger)

	return nil
}
