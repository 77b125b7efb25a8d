/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package vasp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/pkg/errors"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/channel"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/envelope"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/metrics"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/payment"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/retry"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/transport"
)

var logger = log.New("offchain-framework/vasp")

const (
	defaultRetryInterval = 2 * time.Second
	eventBufferSize      = 256
	verifierCacheSize    = 128
)

var (
	// ErrUnknownReceiver is returned for an inbound message addressed to another VASP.
	ErrUnknownReceiver = errors.New("message is not addressed to this VASP")
	// ErrNoTransport is returned when no outbound transport accepts the peer URL.
	ErrNoTransport = errors.New("no outbound transport for peer")
)

// VASP runs the off-chain channels of one VASP with all its peers.
type VASP struct {
	my        *address.Address
	key       *envelope.ComplianceKey
	signer    envelope.Signer
	directory *Directory
	provider  storage.Provider
	outbound  []transport.OutboundTransport
	codec     *protocol.Codec
	processor *payment.Processor
	business  payment.Business
	metrics   metrics.Metrics
	retry     *retry.Manager
	verifiers gcache.Cache

	retryInterval time.Duration

	mu        sync.Mutex
	channels  map[string]*channel.Channel
	submitted map[string]time.Time

	events chan payment.Event
	stop   chan struct{}
	wg     sync.WaitGroup
}

// Option configures a VASP.
type Option func(v *VASP)

// WithStorageProvider sets the storage of the channels and payments. Defaults to memory.
func WithStorageProvider(p storage.Provider) Option {
	return func(v *VASP) {
		v.provider = p
	}
}

// WithOutboundTransport adds outbound transports, tried in order.
func WithOutboundTransport(t ...transport.OutboundTransport) Option {
	return func(v *VASP) {
		v.outbound = append(v.outbound, t...)
	}
}

// WithRetryInterval sets the first retransmission delay.
func WithRetryInterval(d time.Duration) Option {
	return func(v *VASP) {
		v.retryInterval = d
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(v *VASP) {
		v.metrics = m
	}
}

// WithBusiness sets the business logic driving local payment actors.
func WithBusiness(b payment.Business) Option {
	return func(v *VASP) {
		v.business = b
	}
}

// New creates the VASP owning the on-chain account my.
func New(my *address.Address, key *envelope.ComplianceKey, directory *Directory, opts ...Option) (*VASP, error) {
	if my == nil || key == nil || directory == nil {
		return nil, errors.New("address, key and directory are mandatory")
	}

	v := &VASP{
		my:            my.OnChainAddress(),
		key:           key,
		directory:     directory,
		codec:         protocol.NewCodec(),
		metrics:       metrics.Noop{},
		retryInterval: defaultRetryInterval,
		channels:      make(map[string]*channel.Channel),
		submitted:     make(map[string]time.Time),
		events:        make(chan payment.Event, eventBufferSize),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.provider == nil {
		v.provider = mem.NewProvider()
	}

	var err error

	if v.signer, err = envelope.NewSigner(key); err != nil {
		return nil, err
	}

	payment.Register(v.codec)

	v.processor, err = payment.New(v.provider, payment.WithBusiness(v.business), payment.WithRecipientVerifier(v))
	if err != nil {
		return nil, err
	}

	if err := v.processor.RegisterEvent(v.events); err != nil {
		return nil, err
	}

	v.verifiers = gcache.New(verifierCacheSize).LRU().LoaderFunc(func(key interface{}) (interface{}, error) {
		peer, err := v.directory.Lookup(key.(string))
		if err != nil {
			return nil, err
		}

		return envelope.NewVerifier(peer.Key), nil
	}).Build()

	v.retry = retry.New(v.retransmit, retry.WithInterval(v.retryInterval))

	return v, nil
}

// Address returns the on-chain address of the VASP.
func (v *VASP) Address() *address.Address {
	return v.my
}

// Processor returns the payment processor.
func (v *VASP) Processor() *payment.Processor {
	return v.processor
}

// Start runs retransmissions and the follow-up of payment events until Close.
// Channels with every directory peer are opened first so that requests persisted by a
// previous run are retransmitted.
func (v *VASP) Start(ctx context.Context) {
	for _, peer := range v.directory.Hexes() {
		if _, err := v.Channel(peer); err != nil {
			logger.Errorf("open channel with %s: %v", peer, err)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.stop != nil {
		return
	}

	v.stop = make(chan struct{})
	v.retry.Start(ctx)

	v.wg.Add(1)

	go v.eventLoop(ctx, v.stop)

	// resume channels with requests left unacknowledged by a previous run
	for peer, ch := range v.channels {
		if len(ch.PendingRequests()) > 0 {
			v.retry.Kick(peer)
		}
	}
}

// Close stops the background work started by Start.
func (v *VASP) Close() error {
	v.mu.Lock()
	stop := v.stop
	v.stop = nil
	v.mu.Unlock()

	if stop == nil {
		return nil
	}

	close(stop)
	v.retry.Stop()
	v.wg.Wait()

	return nil
}

// Channel returns the channel with the peer whose on-chain address is peerHex, opening it on first use.
func (v *VASP) Channel(peerHex string) (*channel.Channel, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if ch, ok := v.channels[peerHex]; ok {
		return ch, nil
	}

	peer, err := v.directory.Lookup(peerHex)
	if err != nil {
		return nil, err
	}

	store, err := v.provider.OpenStore(channel.StoreName(v.my.Hex(), peerHex))
	if err != nil {
		return nil, errors.Wrap(err, "open channel store")
	}

	ch, err := channel.Open(store, v.my, peer.Address, v.codec, v.processor)
	if err != nil {
		return nil, err
	}

	v.channels[peerHex] = ch

	if pending := len(ch.PendingRequests()); pending > 0 {
		v.metrics.SetPending(peerHex, pending)
		v.retry.Track(peerHex)
	}

	return ch, nil
}

// ChannelStatus returns a snapshot of the channel with a peer.
func (v *VASP) ChannelStatus(peerHex string) (*channel.Status, error) {
	ch, err := v.Channel(peerHex)
	if err != nil {
		return nil, err
	}

	status := ch.Status()

	return &status, nil
}

// Payment returns the latest committed version of a payment.
func (v *VASP) Payment(referenceID string) (*payment.Object, string, error) {
	return v.processor.Payment(referenceID)
}

// WaitForOutcome blocks until the payment is ready for settlement on both sides, settled or aborted.
func (v *VASP) WaitForOutcome(ctx context.Context, referenceID string) (*payment.Object, error) {
	return v.processor.WaitForOutcome(ctx, referenceID)
}

// NewPayment creates the first version of a payment sent by this VASP.
func (v *VASP) NewPayment(sender, receiver string, amount uint64, currency string) *payment.Object {
	return payment.NewObject(v.my, sender, receiver, payment.Action{
		Amount:    amount,
		Currency:  currency,
		Action:    payment.ActionCharge,
		Timestamp: uint64(time.Now().Unix()),
	})
}

// SubmitPayment sequences the creation of p and sends it to the counterparty. It returns the created version.
func (v *VASP) SubmitPayment(ctx context.Context, p *payment.Object) (string, error) {
	return v.submit(ctx, p, "")
}

// UpdatePayment sequences a new version of p that replaces previous.
func (v *VASP) UpdatePayment(ctx context.Context, p *payment.Object, previous string) (string, error) {
	if previous == "" {
		return "", errors.New("previous version is mandatory")
	}

	return v.submit(ctx, p, previous)
}

func (v *VASP) submit(ctx context.Context, p *payment.Object, previous string) (string, error) {
	peer, err := v.counterparty(p)
	if err != nil {
		return "", protocol.NewCommandError(protocol.CodeInvalidAddress, "address", "%s", err.Error())
	}

	cmd := payment.NewCommand(p, previous)

	if err := v.sequence(ctx, peer, cmd); err != nil {
		return "", err
	}

	return cmd.Version(), nil
}

func (v *VASP) counterparty(p *payment.Object) (string, error) {
	role, err := p.RoleOf(v.my)
	if err != nil {
		return "", err
	}

	other, err := address.Parse(p.Actor(role.Other()).Address)
	if err != nil {
		return "", err
	}

	return other.Hex(), nil
}

// sequence adds a local command to the channel with peerHex and sends it.
// Delivery failures are left to retransmission.
func (v *VASP) sequence(ctx context.Context, peerHex string, cmd *payment.Command) error {
	ch, err := v.Channel(peerHex)
	if err != nil {
		return err
	}

	req, err := ch.SequenceCommand(cmd)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.submitted[cmd.Version()] = time.Now()
	v.mu.Unlock()

	v.metrics.IncRequests(peerHex, true)
	v.metrics.SetPending(peerHex, len(ch.PendingRequests()))
	v.retry.Track(peerHex)

	if err := v.send(ctx, peerHex, ch, req); err != nil {
		logger.Debugf("request %d to %s not delivered: %v", req.Seq, peerHex, err)
	}

	return nil
}

func (v *VASP) send(_ context.Context, peerHex string, ch *channel.Channel, req *protocol.CommandRequestObject) error {
	peer, err := v.directory.Lookup(peerHex)
	if err != nil {
		return err
	}

	var outbound transport.OutboundTransport

	for _, t := range v.outbound {
		if t.Accept(peer.URL) {
			outbound = t

			break
		}
	}

	if outbound == nil {
		return errors.Wrap(ErrNoTransport, peer.URL)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	signed, err := v.signer.Sign(payload)
	if err != nil {
		return err
	}

	reply, err := outbound.Send(signed, transport.CommandURL(peer.URL, v.my.Hex(), peerHex))
	if err != nil {
		return err
	}

	if len(reply) == 0 {
		return nil
	}

	payload, err = v.verify(peerHex, reply)
	if err != nil {
		return err
	}

	msg, err := v.codec.Decode(payload)
	if err != nil {
		return err
	}

	resp, ok := msg.(*protocol.CommandResponseObject)
	if !ok {
		return errors.Errorf("peer %s replied with %s", peerHex, msg.ObjectType())
	}

	return v.handleResponse(peerHex, ch, resp)
}

func (v *VASP) handleResponse(peerHex string, ch *channel.Channel, resp *protocol.CommandResponseObject) error {
	v.metrics.IncResponses(peerHex, string(resp.Status))

	if resp.IsProtocolFailure() {
		v.metrics.IncProtocolErrors(peerHex, string(resp.Error.Code))
	}

	err := ch.HandleResponse(resp)

	v.metrics.SetPending(peerHex, len(ch.PendingRequests()))

	return err
}

// verify checks an envelope of peerHex and returns its payload.
func (v *VASP) verify(peerHex string, signed []byte) ([]byte, error) {
	cached, err := v.verifiers.Get(peerHex)
	if err != nil {
		return nil, err
	}

	payload, err := cached.(envelope.Verifier).Verify(signed)
	if err != nil {
		v.metrics.IncRejectedEnvelopes(peerHex)
		logger.Warnf("dropping envelope from %s: %v", peerHex, err)

		return nil, err
	}

	return payload, nil
}

func (v *VASP) seal(msg protocol.Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "marshal message")
	}

	return v.signer.Sign(payload)
}

// HandleInbound processes an envelope sent by sender to receiver and returns the signed reply, if any.
// An envelope that fails verification is dropped with an error and no reply.
func (v *VASP) HandleInbound(_ context.Context, sender, receiver string, signed []byte) ([]byte, error) {
	if receiver != v.my.Hex() {
		return nil, errors.Wrap(ErrUnknownReceiver, receiver)
	}

	payload, err := v.verify(sender, signed)
	if err != nil {
		return nil, err
	}

	ch, err := v.Channel(sender)
	if err != nil {
		return nil, err
	}

	// the peer is reachable again
	if len(ch.PendingRequests()) > 0 {
		v.retry.Kick(sender)
	}

	msg, err := v.codec.Decode(payload)
	if err != nil {
		logger.Infof("unparseable message from %s: %v", sender, err)

		return v.seal(protocol.NewProtocolErrorResponse(protocol.RequestSeq(payload),
			protocol.NewProtocolError(protocol.CodeParsing, "%s", err.Error())))
	}

	switch m := msg.(type) {
	case *protocol.CommandRequestObject:
		v.metrics.IncRequests(sender, false)

		resp, err := ch.HandleRequest(m)
		if err != nil {
			return nil, err
		}

		if resp.IsProtocolFailure() {
			logger.Debugf("request %d from %s: %s", m.Seq, sender, resp.Error.Code)
		}

		return v.seal(resp)
	case *protocol.CommandResponseObject:
		return nil, v.handleResponse(sender, ch, m)
	default:
		return nil, errors.Errorf("unexpected message %T", msg)
	}
}

// retransmit resends the unacknowledged requests of the channel with peerHex, in order.
func (v *VASP) retransmit(ctx context.Context, peerHex string) (bool, error) {
	ch, err := v.Channel(peerHex)
	if err != nil {
		return false, err
	}

	for _, req := range ch.PendingRequests() {
		v.metrics.IncRetransmissions(peerHex)

		if err := v.send(ctx, peerHex, ch, req); err != nil {
			return true, err
		}
	}

	return len(ch.PendingRequests()) > 0, nil
}

func (v *VASP) eventLoop(ctx context.Context, stop chan struct{}) {
	defer v.wg.Done()

	ticker := time.NewTicker(v.retryInterval)
	defer ticker.Stop()

	// events of commands replayed while opening channels may have been dropped before Start
	v.drainBacklog(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case e := <-v.events:
			v.handleEvent(ctx, e)
		case <-ticker.C:
			v.drainBacklog(ctx)
		}
	}
}

// drainBacklog follows up payments whose events were dropped or whose follow-up failed.
func (v *VASP) drainBacklog(ctx context.Context) {
	for _, ref := range v.processor.TakeBacklog() {
		v.followUpOrDefer(ctx, ref)
	}
}

func (v *VASP) handleEvent(ctx context.Context, e payment.Event) {
	peerHex, err := v.counterparty(e.Payment)
	if err != nil {
		logger.Warnf("payment %s: %v", e.ReferenceID, err)

		return
	}

	if e.Error != nil {
		v.metrics.IncCommandErrors(peerHex, string(e.Error.Code))
	}

	if e.Own {
		v.mu.Lock()
		start, ok := v.submitted[e.Version]
		delete(v.submitted, e.Version)
		v.mu.Unlock()

		if ok {
			v.metrics.ObserveSequencing(peerHex, time.Since(start))
		}
	}

	v.followUpOrDefer(ctx, e.ReferenceID)
}

// followUpOrDefer runs followUp and puts the payment back in the backlog when it failed for a reason
// other than a rejected command.
func (v *VASP) followUpOrDefer(ctx context.Context, referenceID string) {
	err := v.followUp(ctx, referenceID)
	if err == nil {
		return
	}

	logger.Warnf("payment %s: follow up failed: %v", referenceID, err)

	var cmdErr *protocol.OffChainError
	if !errors.As(err, &cmdErr) {
		v.processor.AddBacklog(referenceID)
	}
}

// followUp lets the business logic move the local actor of a payment forward from its latest version.
func (v *VASP) followUp(ctx context.Context, referenceID string) error {
	latest, version, err := v.processor.Payment(referenceID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		return nil
	}

	if err != nil {
		return err
	}

	next, err := v.processor.NextVersion(ctx, v.my, latest)
	if err != nil || next == nil {
		return err
	}

	_, err = v.UpdatePayment(ctx, next, version)

	var cmdErr *protocol.OffChainError
	if errors.As(err, &cmdErr) && cmdErr.Code == protocol.CodeMissingDependency {
		// a newer version is already in flight
		return nil
	}

	return err
}

// VerifyRecipient checks the recipient signature that receiverVASP set on p.
func (v *VASP) VerifyRecipient(receiverVASP *address.Address, p *payment.Object) error {
	peer, err := v.directory.Lookup(receiverVASP.Hex())
	if err != nil {
		return err
	}

	sender, err := address.Parse(p.Sender.Address)
	if err != nil {
		return err
	}

	return envelope.VerifyRecipient(peer.Key, p.RecipientSignature, p.ReferenceID, sender, p.Action.Amount)
}

// RecipientSignature signs the recipient attestation of p with the key of this VASP.
func (v *VASP) RecipientSignature(p *payment.Object) (string, error) {
	sender, err := address.Parse(p.Sender.Address)
	if err != nil {
		return "", err
	}

	return envelope.SignRecipient(v.key, p.ReferenceID, sender, p.Action.Amount), nil
}
