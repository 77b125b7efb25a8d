/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"encoding/json"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	mocks "github.com/offchainapi/offchain-framework-go/pkg/internal/gomocks/controller/webnotifier"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/payment"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

func TestObserver_RegisterPayments(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	creator, err := address.FromHex(address.TestnetHRP, "f72589b71ff4f8d139674a3f7369c69b")
	require.NoError(t, err)

	obj := payment.NewObject(creator, creator.String(), creator.String(), payment.Action{
		Amount: 1, Currency: "XUS", Action: payment.ActionCharge,
	})
	obj.Sender.Status.Status = payment.StatusAbort

	event := payment.Event{ReferenceID: obj.ReferenceID, Version: "v1", JointSeq: 2, Own: true, Payment: obj}

	src, err := json.Marshal(&PaymentEvent{
		ReferenceID: obj.ReferenceID,
		Version:     "v1",
		JointSeq:    2,
		Own:         true,
		Outcome:     payment.OutcomeAborted,
		Payment:     obj,
	})
	require.NoError(t, err)

	events := make(chan payment.Event, 1)
	events <- event

	done := make(chan struct{})
	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(PaymentsTopic, src).Do(func(string, []byte) {
		close(done)
	})

	NewObserver(notifier).RegisterPayments(PaymentsTopic, events)

	<-done
	close(events)
}

func TestObserver_RejectedCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cmdErr := protocol.NewCommandError(protocol.CodeInvalidAddress, "address", "bad address")
	event := payment.Event{ReferenceID: "ref", Version: "v2", Error: cmdErr}

	done := make(chan struct{})
	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().Notify(PaymentsTopic, gomock.Any()).DoAndReturn(func(_ string, raw []byte) error {
		defer close(done)

		var got PaymentEvent
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Equal(t, "v2", got.Version)
		require.Empty(t, got.Outcome)
		require.NotNil(t, got.Error)
		require.Equal(t, protocol.CodeInvalidAddress, got.Error.Code)

		return nil
	})

	events := make(chan payment.Event, 1)
	events <- event

	NewObserver(notifier).RegisterPayments(PaymentsTopic, events)

	<-done
	close(events)
}
