/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

type mockBusiness struct {
	accountErr   error
	level        Status
	kyc          *KYCData
	additional   string
	signature    string
	ready        bool
	settled      bool
	readyErr     error
	levelErr     error
	signatureErr error
}

func (m *mockBusiness) CheckAccountExistence(context.Context, *Object) error { return m.accountErr }

func (m *mockBusiness) NextKYCLevelToRequest(_ context.Context, p *Object) (Status, error) {
	return m.level, m.levelErr
}

func (m *mockBusiness) GetExtendedKYC(context.Context, *Object) (*KYCData, error) { return m.kyc, nil }

func (m *mockBusiness) GetAdditionalKYC(context.Context, *Object) (string, error) {
	return m.additional, nil
}

func (m *mockBusiness) GetRecipientSignature(context.Context, *Object) (string, error) {
	return m.signature, m.signatureErr
}

func (m *mockBusiness) ReadyForSettlement(context.Context, *Object) (bool, error) {
	return m.ready, m.readyErr
}

func (m *mockBusiness) HasSettled(context.Context, *Object) (bool, error) { return m.settled, nil }

type verifierFunc func(receiverVASP *address.Address, p *Object) error

func (f verifierFunc) VerifyRecipient(receiverVASP *address.Address, p *Object) error {
	return f(receiverVASP, p)
}

func newProcessor(t *testing.T, opts ...Option) *Processor {
	t.Helper()

	p, err := New(mem.NewProvider(), opts...)
	require.NoError(t, err)

	return p
}

func TestProcessor_CheckAndProcess(t *testing.T) {
	f := newFixture(t)
	p := newProcessor(t)

	events := make(chan Event, 10)
	require.NoError(t, p.RegisterEvent(events))
	require.Error(t, p.RegisterEvent(nil))

	v1 := f.newPayment(t)
	create := NewCommand(v1, "")
	require.Len(t, create.CreatesVersions(), 1)
	require.Empty(t, create.Dependencies())

	require.NoError(t, p.Check(f.vasp1, f.vasp2, create, true))
	require.NoError(t, p.Check(f.vasp2, f.vasp1, create, false))
	require.NoError(t, p.Process(create, 0, true, nil))
	require.True(t, p.Committed(create.Version()))

	e := <-events
	require.Equal(t, v1.ReferenceID, e.ReferenceID)
	require.Equal(t, create.Version(), e.Version)
	require.Nil(t, e.Error)

	t.Run("reference ids are unique", func(t *testing.T) {
		dup := NewCommand(v1, "")
		requireCommandError(t, p.Check(f.vasp1, f.vasp2, dup, true), protocol.CodeWrongStructure)
	})

	t.Run("unknown dependency", func(t *testing.T) {
		cmd := NewCommand(v1.Clone(), "missing")
		requireCommandError(t, p.Check(f.vasp1, f.vasp2, cmd, true), protocol.CodeMissingDependency)
	})

	t.Run("author is resolved from own flag", func(t *testing.T) {
		v2 := v1.Clone()
		v2.Receiver.Status.Status = StatusReadyForSettlement
		update := NewCommand(v2, create.Version())

		// vasp2 receiving it from vasp1 means vasp1 touched the receiver
		requireCommandError(t, p.Check(f.vasp2, f.vasp1, update, false), protocol.CodeChangedOtherActor)
		require.NoError(t, p.Check(f.vasp2, f.vasp1, update, true))
	})

	t.Run("rejected command is published but not stored", func(t *testing.T) {
		v2 := v1.Clone()
		cmd := NewCommand(v2, create.Version())
		require.NoError(t, p.Process(cmd, 1, false,
			protocol.NewCommandError(protocol.CodeWrongStatus, "", "rejected")))
		require.False(t, p.Committed(cmd.Version()))

		e := <-events
		require.NotNil(t, e.Error)
	})

	latest, version, err := p.Payment(v1.ReferenceID)
	require.NoError(t, err)
	require.Equal(t, create.Version(), version)
	require.True(t, latest.Equal(v1))

	_, _, err = p.Payment("unknown")
	require.True(t, errors.Is(err, ErrPaymentNotFound))

	p.UnregisterEvent(events)
	require.Empty(t, p.events)
}

type unreadableStore struct {
	storage.Store
}

func (s *unreadableStore) Get(string) ([]byte, error) {
	return nil, errors.New("leveldb: closed")
}

func TestProcessor_CheckStorageFailure(t *testing.T) {
	f := newFixture(t)
	p := newProcessor(t)

	v1 := f.newPayment(t)
	create := NewCommand(v1, "")
	require.NoError(t, p.Process(create, 0, true, nil))

	p.store = &unreadableStore{Store: p.store}

	var oce *protocol.OffChainError

	err := p.Check(f.vasp1, f.vasp2, NewCommand(f.newPayment(t), ""), true)
	require.Error(t, err)
	require.False(t, errors.As(err, &oce))

	err = p.Check(f.vasp2, f.vasp1, NewCommand(v1.Clone(), create.Version()), false)
	require.Error(t, err)
	require.False(t, errors.As(err, &oce))
}

func TestProcessor_Backlog(t *testing.T) {
	f := newFixture(t)
	p := newProcessor(t)

	stalled := make(chan Event)
	require.NoError(t, p.RegisterEvent(stalled))
	require.Empty(t, p.TakeBacklog())

	v1 := f.newPayment(t)
	create := NewCommand(v1, "")
	require.NoError(t, p.Process(create, 0, true, nil))

	p.AddBacklog("other")
	require.ElementsMatch(t, []string{"other", v1.ReferenceID}, p.TakeBacklog())
	require.Empty(t, p.TakeBacklog())
}

func TestProcessor_RecipientSignature(t *testing.T) {
	f := newFixture(t)
	bad := errors.New("bad signature")

	var calls int

	p := newProcessor(t, WithRecipientVerifier(verifierFunc(func(receiverVASP *address.Address, o *Object) error {
		calls++
		require.True(t, receiverVASP.SameOnChain(f.vasp2))

		if o.RecipientSignature != "good" {
			return bad
		}

		return nil
	})))

	v1 := f.newPayment(t)
	create := NewCommand(v1, "")
	require.NoError(t, p.Process(create, 0, true, nil))

	v2 := v1.Clone()
	v2.RecipientSignature = "forged"
	requireCommandError(t, p.Check(f.vasp1, f.vasp2, NewCommand(v2, create.Version()), false),
		protocol.CodeWrongRecipientSignature)

	v2.RecipientSignature = "good"
	require.NoError(t, p.Check(f.vasp1, f.vasp2, NewCommand(v2, create.Version()), false))

	// own commands are not verified
	require.NoError(t, p.Check(f.vasp2, f.vasp1, NewCommand(v2, create.Version()), true))
	require.Equal(t, 2, calls)
}

func TestProcessor_WaitForOutcome(t *testing.T) {
	f := newFixture(t)
	p := newProcessor(t)

	v1 := f.newPayment(t)
	create := NewCommand(v1, "")
	require.NoError(t, p.Process(create, 0, true, nil))

	t.Run("times out while pending", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := p.WaitForOutcome(ctx, v1.ReferenceID)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Empty(t, p.waiters)
	})

	done := make(chan *Object)

	go func() {
		obj, err := p.WaitForOutcome(context.Background(), v1.ReferenceID)
		require.NoError(t, err)
		done <- obj
	}()

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()

		return len(p.waiters[v1.ReferenceID]) == 1
	}, time.Second, time.Millisecond)

	v2 := v1.Clone()
	v2.Receiver.Status = StatusObject{Status: StatusAbort, AbortCode: "no"}
	require.NoError(t, p.Process(NewCommand(v2, create.Version()), 1, false, nil))

	select {
	case obj := <-done:
		require.Equal(t, OutcomeAborted, obj.Outcome())
	case <-time.After(time.Second):
		t.Fatal("outcome not delivered")
	}

	obj, err := p.WaitForOutcome(context.Background(), v1.ReferenceID)
	require.NoError(t, err)
	require.Equal(t, OutcomeAborted, obj.Outcome())
}

func TestProcessor_NextVersion(t *testing.T) {
	f := newFixture(t)

	t.Run("no business", func(t *testing.T) {
		next, err := newProcessor(t).NextVersion(context.Background(), f.vasp2, f.newPayment(t))
		require.NoError(t, err)
		require.Nil(t, next)
	})

	t.Run("receiver provides kyc and becomes ready", func(t *testing.T) {
		b := &mockBusiness{kyc: &KYCData{Type: KYCEntity, LegalEntityName: "Bob Inc"}, ready: true}
		p := newProcessor(t, WithBusiness(b))

		v1 := f.newPayment(t)
		next, err := p.NextVersion(context.Background(), f.vasp2, v1)
		require.NoError(t, err)
		require.NotNil(t, next)
		require.Equal(t, StatusReadyForSettlement, next.Receiver.Status.Status)
		require.Equal(t, "Bob Inc", next.Receiver.KYCData.LegalEntityName)
		require.NoError(t, Validate(f.byVASP2(), v1, next))
	})

	t.Run("receiver asks for signature level", func(t *testing.T) {
		b := &mockBusiness{level: StatusNeedsKYCData}
		p := newProcessor(t, WithBusiness(b))

		v1 := f.newPayment(t)
		next, err := p.NextVersion(context.Background(), f.vasp2, v1)
		require.NoError(t, err)
		require.Equal(t, StatusNeedsKYCData, next.Receiver.Status.Status)
		require.NoError(t, Validate(f.byVASP2(), v1, next))
	})

	t.Run("receiver signs when asked", func(t *testing.T) {
		b := &mockBusiness{signature: "5151", level: StatusNone}
		p := newProcessor(t, WithBusiness(b))

		v1 := f.newPayment(t)
		v1.Sender.Status.Status = StatusNeedsRecipientSignature

		next, err := p.NextVersion(context.Background(), f.vasp2, v1)
		require.NoError(t, err)
		require.Equal(t, "5151", next.RecipientSignature)
		require.NoError(t, Validate(f.byVASP2(), v1, next))
	})

	t.Run("missing account aborts", func(t *testing.T) {
		b := &mockBusiness{accountErr: &ForceAbort{Code: "no-account", Message: "unknown subaddress"}}
		p := newProcessor(t, WithBusiness(b))

		v1 := f.newPayment(t)
		next, err := p.NextVersion(context.Background(), f.vasp2, v1)
		require.NoError(t, err)
		require.Equal(t, StatusAbort, next.Receiver.Status.Status)
		require.Equal(t, "no-account", next.Receiver.Status.AbortCode)
		require.NoError(t, Validate(f.byVASP2(), v1, next))
	})

	t.Run("business failure", func(t *testing.T) {
		b := &mockBusiness{readyErr: errors.New("db down")}
		p := newProcessor(t, WithBusiness(b))

		_, err := p.NextVersion(context.Background(), f.vasp2, f.newPayment(t))
		require.EqualError(t, err, "db down")
	})

	t.Run("follows counterparty abort", func(t *testing.T) {
		p := newProcessor(t, WithBusiness(&mockBusiness{}))

		v1 := f.newPayment(t)
		v2 := v1.Clone()
		v2.Receiver.Status = StatusObject{Status: StatusAbort, AbortCode: "no"}

		next, err := p.NextVersion(context.Background(), f.vasp1, v2)
		require.NoError(t, err)
		require.Equal(t, AbortFollow, next.Sender.Status.AbortCode)
		require.NoError(t, Validate(f.byVASP1(), v2, next))

		done, err := p.NextVersion(context.Background(), f.vasp1, next)
		require.NoError(t, err)
		require.Nil(t, done)
	})

	t.Run("answers soft match without changing status", func(t *testing.T) {
		p := newProcessor(t, WithBusiness(&mockBusiness{additional: "passport", ready: true}))

		v1 := f.newPayment(t)
		v2 := v1.Clone()
		v2.Receiver.Status.Status = StatusSoftMatch

		next, err := p.NextVersion(context.Background(), f.vasp1, v2)
		require.NoError(t, err)
		require.True(t, next.Sender.AdditionalKYCProvided)
		require.Equal(t, StatusNeedsKYCData, next.Sender.Status.Status)
		require.NoError(t, Validate(f.byVASP1(), v2, next))
	})

	t.Run("settles after mutual ready", func(t *testing.T) {
		p := newProcessor(t, WithBusiness(&mockBusiness{settled: true}))

		v1 := f.newPayment(t)
		v1.Sender.Status.Status = StatusReadyForSettlement
		v1.Receiver.Status.Status = StatusReadyForSettlement

		next, err := p.NextVersion(context.Background(), f.vasp1, v1)
		require.NoError(t, err)
		require.Equal(t, StatusSettled, next.Sender.Status.Status)
		require.NoError(t, Validate(f.byVASP1(), v1, next))
	})

	t.Run("not a party", func(t *testing.T) {
		p := newProcessor(t, WithBusiness(&mockBusiness{}))

		stranger, err := address.FromHex(address.TestnetHRP, "dddddddddddddddddddddddddddddddd")
		require.NoError(t, err)

		_, err = p.NextVersion(context.Background(), stranger, f.newPayment(t))
		require.Error(t, err)
	})
}
