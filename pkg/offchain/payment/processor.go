/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

var logger = log.New("offchain-framework/payment")

const (
	// StoreName is the name of the payment snapshot store.
	StoreName = "payments"

	paymentKeyPrefix = "payment_"
	latestKeyPrefix  = "latest_"
	referenceTag     = "reference"
)

// ErrPaymentNotFound is returned when no version of a payment is known.
var ErrPaymentNotFound = errors.New("payment not found")

// RecipientVerifier checks the recipient signature set by the receiving VASP.
type RecipientVerifier interface {
	VerifyRecipient(receiverVASP *address.Address, p *Object) error
}

// Event is published after each sequenced payment command.
type Event struct {
	ReferenceID string
	Version     string
	JointSeq    uint64
	Own         bool
	Payment     *Object
	Error       *protocol.OffChainError
}

type latestRecord struct {
	Version  string `json:"version"`
	JointSeq uint64 `json:"joint_seq"`
}

// Processor validates payment commands and keeps the committed payment snapshots.
type Processor struct {
	store    storage.Store
	business Business
	verifier RecipientVerifier

	mu      sync.Mutex
	events  []chan<- Event
	waiters map[string][]chan *Object
	// references whose events were not delivered to every subscriber
	backlog map[string]struct{}
}

// Option configures a Processor.
type Option func(p *Processor)

// WithBusiness sets the business logic driving the local actor.
func WithBusiness(b Business) Option {
	return func(p *Processor) {
		p.business = b
	}
}

// WithRecipientVerifier sets the verifier of recipient signatures.
func WithRecipientVerifier(v RecipientVerifier) Option {
	return func(p *Processor) {
		p.verifier = v
	}
}

// New creates a payment processor over the payments store of provider.
func New(provider storage.Provider, opts ...Option) (*Processor, error) {
	store, err := provider.OpenStore(StoreName)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open payment store")
	}

	p := &Processor{
		store:   store,
		waiters: make(map[string][]chan *Object),
		backlog: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Check validates a command authored by my (own) or by other.
func (p *Processor) Check(my, other *address.Address, cmd protocol.Command, own bool) error {
	pc, ok := cmd.(*Command)
	if !ok {
		return protocol.NewCommandError(protocol.CodeWrongCommandStructure, "command_type",
			"unexpected command %T", cmd)
	}

	parties := Parties{Author: other, Counterparty: my}
	if own {
		parties = Parties{Author: my, Counterparty: other}
	}

	var prev *Object

	if dep := pc.Previous(); dep != "" {
		var err error

		prev, err = p.PaymentByVersion(dep)
		if errors.Is(err, ErrPaymentNotFound) {
			return protocol.NewCommandError(protocol.CodeMissingDependency, "_dependencies",
				"unknown payment version %s", dep)
		}

		if err != nil {
			return err
		}
	} else if pc.Payment != nil {
		_, _, err := p.Payment(pc.Payment.ReferenceID)

		switch {
		case err == nil:
			return protocol.NewCommandError(protocol.CodeWrongStructure, "reference_id",
				"reference id %s already used", pc.Payment.ReferenceID)
		case !errors.Is(err, ErrPaymentNotFound):
			return err
		}
	}

	if err := Validate(parties, prev, pc.Payment); err != nil {
		return err
	}

	return p.checkRecipientSignature(parties, prev, pc.Payment, own)
}

func (p *Processor) checkRecipientSignature(parties Parties, prev, next *Object, own bool) error {
	if own || p.verifier == nil || next.RecipientSignature == "" {
		return nil
	}

	if prev != nil && prev.RecipientSignature == next.RecipientSignature {
		return nil
	}

	if err := p.verifier.VerifyRecipient(parties.Author, next); err != nil {
		return protocol.NewCommandError(protocol.CodeWrongRecipientSignature, "recipient_signature",
			"%s", err.Error())
	}

	return nil
}

// Committed reports whether the snapshot of version is stored.
func (p *Processor) Committed(version string) bool {
	_, err := p.store.Get(paymentKeyPrefix + version)

	return err == nil
}

// Process records the outcome of a sequenced command. Commands are processed in joint order.
func (p *Processor) Process(cmd protocol.Command, jointSeq uint64, own bool, cmdErr *protocol.OffChainError) error {
	pc, ok := cmd.(*Command)
	if !ok || pc.Payment == nil {
		return fmt.Errorf("unexpected command %T", cmd)
	}

	event := Event{
		ReferenceID: pc.Payment.ReferenceID,
		Version:     pc.Version(),
		JointSeq:    jointSeq,
		Own:         own,
		Payment:     pc.Payment,
		Error:       cmdErr,
	}

	if cmdErr != nil {
		logger.Infof("payment %s version %s rejected: %s", event.ReferenceID, event.Version, cmdErr.Error())
		p.publish(event)

		return nil
	}

	if err := p.store.Batch(p.snapshotOperations(pc, jointSeq)); err != nil {
		return pkgerrors.Wrapf(err, "store payment %s", event.ReferenceID)
	}

	logger.Debugf("payment %s committed version %s at %d", event.ReferenceID, event.Version, jointSeq)

	p.publish(event)

	if pc.Payment.Outcome() != OutcomePending {
		p.resolveWaiters(pc.Payment)
	}

	return nil
}

func (p *Processor) snapshotOperations(pc *Command, jointSeq uint64) []storage.Operation {
	// marshalling plain structs cannot fail
	snapshot, _ := json.Marshal(pc.Payment)                                             //nolint:errchkjson
	latest, _ := json.Marshal(&latestRecord{Version: pc.Version(), JointSeq: jointSeq}) //nolint:errchkjson

	return []storage.Operation{
		{
			Key:   paymentKeyPrefix + pc.Version(),
			Value: snapshot,
			Tags:  []storage.Tag{{Name: referenceTag, Value: pc.Payment.ReferenceID}},
		},
		{Key: latestKeyPrefix + pc.Payment.ReferenceID, Value: latest},
	}
}

// PaymentByVersion returns the snapshot created by version.
func (p *Processor) PaymentByVersion(version string) (*Object, error) {
	raw, err := p.store.Get(paymentKeyPrefix + version)
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, pkgerrors.Wrapf(ErrPaymentNotFound, "version %s", version)
	}

	if err != nil {
		return nil, pkgerrors.Wrap(err, "get payment version")
	}

	obj := &Object{}
	if err := json.Unmarshal(raw, obj); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshal payment")
	}

	return obj, nil
}

// Payment returns the latest committed snapshot of a payment and its version.
func (p *Processor) Payment(referenceID string) (*Object, string, error) {
	raw, err := p.store.Get(latestKeyPrefix + referenceID)
	if errors.Is(err, storage.ErrDataNotFound) {
		return nil, "", pkgerrors.Wrapf(ErrPaymentNotFound, "reference %s", referenceID)
	}

	if err != nil {
		return nil, "", pkgerrors.Wrap(err, "get latest payment")
	}

	rec := &latestRecord{}
	if err := json.Unmarshal(raw, rec); err != nil {
		return nil, "", pkgerrors.Wrap(err, "unmarshal latest payment")
	}

	obj, err := p.PaymentByVersion(rec.Version)
	if err != nil {
		return nil, "", err
	}

	return obj, rec.Version, nil
}

// RegisterEvent registers a channel receiving payment events.
func (p *Processor) RegisterEvent(ch chan<- Event) error {
	if ch == nil {
		return errors.New("nil event channel")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, ch)

	return nil
}

// UnregisterEvent removes a channel registered with RegisterEvent.
func (p *Processor) UnregisterEvent(ch chan<- Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.events {
		if p.events[i] == ch {
			p.events = append(p.events[:i], p.events[i+1:]...)

			return
		}
	}
}

func (p *Processor) publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ch := range p.events {
		select {
		case ch <- e:
		default:
			logger.Warnf("dropping payment event %s@%s: subscriber is not receiving", e.ReferenceID, e.Version)

			p.backlog[e.ReferenceID] = struct{}{}
		}
	}
}

// AddBacklog marks a payment as needing another look by the subscribers.
func (p *Processor) AddBacklog(referenceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.backlog[referenceID] = struct{}{}
}

// TakeBacklog returns and clears the payments whose events were dropped or that were marked with AddBacklog.
func (p *Processor) TakeBacklog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	refs := make([]string, 0, len(p.backlog))
	for ref := range p.backlog {
		refs = append(refs, ref)
	}

	p.backlog = make(map[string]struct{})

	slices.Sort(refs)

	return refs
}

// WaitForOutcome blocks until the payment is ready for settlement on both sides, settled, or aborted.
func (p *Processor) WaitForOutcome(ctx context.Context, referenceID string) (*Object, error) {
	p.mu.Lock()

	obj, _, err := p.Payment(referenceID)
	if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		p.mu.Unlock()

		return nil, err
	}

	if obj != nil && obj.Outcome() != OutcomePending {
		p.mu.Unlock()

		return obj, nil
	}

	ch := make(chan *Object, 1)
	p.waiters[referenceID] = append(p.waiters[referenceID], ch)
	p.mu.Unlock()

	select {
	case obj := <-ch:
		return obj, nil
	case <-ctx.Done():
		p.removeWaiter(referenceID, ch)

		return nil, ctx.Err()
	}
}

func (p *Processor) resolveWaiters(obj *Object) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ch := range p.waiters[obj.ReferenceID] {
		ch <- obj
	}

	delete(p.waiters, obj.ReferenceID)
}

func (p *Processor) removeWaiter(referenceID string, ch chan *Object) {
	p.mu.Lock()
	defer p.mu.Unlock()

	waiters := p.waiters[referenceID]
	for i := range waiters {
		if waiters[i] == ch {
			p.waiters[referenceID] = append(waiters[:i], waiters[i+1:]...)

			break
		}
	}

	if len(p.waiters[referenceID]) == 0 {
		delete(p.waiters, referenceID)
	}
}

// NextVersion asks the business logic how the local actor of my moves the payment forward.
// It returns nil when there is nothing to do.
func (p *Processor) NextVersion(ctx context.Context, my *address.Address, latest *Object) (*Object, error) {
	if p.business == nil {
		return nil, nil
	}

	role, err := latest.RoleOf(my)
	if err != nil {
		return nil, err
	}

	next := latest.Clone()
	own, other := next.Actor(role), next.Actor(role.Other())

	switch {
	case other.Status.Status == StatusAbort:
		if resolved(own.Status.Status) {
			return nil, nil
		}

		own.Status = StatusObject{
			Status:       StatusAbort,
			AbortCode:    AbortFollow,
			AbortMessage: "following the abort of the " + string(role.Other()),
		}
	case own.Status.Status == StatusReadyForSettlement && resolvedReady(other.Status.Status):
		done, err := p.business.HasSettled(ctx, latest)
		if err != nil {
			return nil, err
		}

		if done {
			own.Status = StatusObject{Status: StatusSettled}
		}
	case resolved(own.Status.Status):
		return nil, nil
	default:
		err := p.advance(ctx, role, latest, next)

		var fa *ForceAbort
		if errors.As(err, &fa) {
			own.Status = StatusObject{Status: StatusAbort, AbortCode: fa.Code, AbortMessage: fa.Message}
		} else if err != nil {
			return nil, err
		}
	}

	if next.Equal(latest) {
		return nil, nil
	}

	return next, nil
}

func (p *Processor) advance(ctx context.Context, role Role, latest, next *Object) error {
	own, other := next.Actor(role), next.Actor(role.Other())

	if own.Status.Status == StatusNone && role == Receiver {
		if err := p.business.CheckAccountExistence(ctx, latest); err != nil {
			return err
		}
	}

	if other.Status.Status == StatusSoftMatch && !own.AdditionalKYCProvided {
		data, err := p.business.GetAdditionalKYC(ctx, latest)
		if err != nil {
			return err
		}

		own.AdditionalKYCData, own.AdditionalKYCProvided = data, data != ""

		return nil
	}

	if err := p.provide(ctx, role, latest, next); err != nil {
		return err
	}

	ready, err := p.business.ReadyForSettlement(ctx, latest)
	if err != nil {
		return err
	}

	if ready && (own.Status.Status != StatusSoftMatch || other.AdditionalKYCProvided) &&
		CanTransition(own.Status.Status, StatusReadyForSettlement) {
		own.Status = StatusObject{Status: StatusReadyForSettlement}

		return nil
	}

	level, err := p.business.NextKYCLevelToRequest(ctx, latest)
	if err != nil {
		return err
	}

	if level != own.Status.Status && level != StatusAbort && level != StatusSettled &&
		CanTransition(own.Status.Status, level) {
		own.Status = StatusObject{Status: level}
	}

	return nil
}

func (p *Processor) provide(ctx context.Context, role Role, latest, next *Object) error {
	own, other := next.Actor(role), next.Actor(role.Other())

	if own.KYCData == nil && other.Status.Status == StatusNeedsKYCData {
		kyc, err := p.business.GetExtendedKYC(ctx, latest)
		if err != nil {
			return err
		}

		own.KYCData = kyc
	}

	if role == Receiver && next.RecipientSignature == "" && other.Status.Status == StatusNeedsRecipientSignature {
		sig, err := p.business.GetRecipientSignature(ctx, latest)
		if err != nil {
			return err
		}

		next.RecipientSignature = sig
	}

	return nil
}
