/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package channel

import (
	"errors"
	"sync"

	"github.com/bluele/gcache"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	pkgerrors "github.com/pkg/errors"

	"github.com/offchainapi/offchain-framework-go/pkg/common/address"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/ledger"
	"github.com/offchainapi/offchain-framework-go/pkg/offchain/protocol"
)

var logger = log.New("offchain-framework/channel")

const defaultEarlyResponses = 256

var (
	// ErrUnknownRequest is returned for a response that matches no local request.
	ErrUnknownRequest = errors.New("response to unknown request")
	// ErrResponseConflict is returned when a request gets two different final responses.
	ErrResponseConflict = errors.New("conflicting responses")
	// ErrInvalidResponse is returned for a final response that does not fit the joint sequence.
	ErrInvalidResponse = errors.New("invalid response")
)

// State of the command sequencer.
type State string

// sequencer states.
const (
	StateIdle             State = "idle"
	StateAwaitingLocalAck State = "awaiting-local-ack"
	StateDrainingRemote   State = "draining-remote"
)

// CommandProcessor validates commands and observes their outcome.
type CommandProcessor interface {
	// Check validates a command against committed state. own is true for local commands.
	Check(my, other *address.Address, cmd protocol.Command, own bool) error
	// Process is called once for every sequenced command, in joint order.
	Process(cmd protocol.Command, jointSeq uint64, own bool, cmdErr *protocol.OffChainError) error
	// Committed reports whether the effects of a successful command creating version are stored.
	Committed(version string) bool
}

// Channel sequences the commands exchanged by two VASPs into one joint order.
// All methods are safe for concurrent use and serialized per channel.
type Channel struct {
	mu sync.Mutex

	my, other *address.Address
	role      Role
	store     storage.Store
	codec     *protocol.Codec
	ledger    *ledger.Ledger
	processor CommandProcessor

	local         []*logEntry
	remote        []*logEntry
	joint         []*jointEntry
	lastConfirmed uint64
	pendingLocal  int

	early gcache.Cache
}

// Option configures a Channel.
type Option func(c *Channel)

// WithEarlyResponseCacheSize bounds the number of responses kept for positions not yet reached.
func WithEarlyResponseCacheSize(size int) Option {
	return func(c *Channel) {
		c.early = gcache.New(size).LRU().Build()
	}
}

// Open loads or creates the channel between my and other persisted in store.
func Open(store storage.Store, my, other *address.Address, codec *protocol.Codec, processor CommandProcessor,
	opts ...Option) (*Channel, error) {
	l, err := ledger.New(store)
	if err != nil {
		return nil, err
	}

	c := &Channel{
		my:        my.OnChainAddress(),
		other:     other.OnChainAddress(),
		role:      ResolveRole(my.OnChain(), other.OnChain()),
		store:     store,
		codec:     codec,
		ledger:    l,
		processor: processor,
		early:     gcache.New(defaultEarlyResponses).LRU().Build(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.recover(); err != nil {
		return nil, err
	}

	logger.Debugf("opened channel %s -> %s as %s at joint position %d", c.my, c.other, c.role, len(c.joint))

	return c, nil
}

func (c *Channel) recover() error {
	var err error

	if c.local, err = loadLog(c.store, localKeyPrefix, c.codec); err != nil {
		return err
	}

	if c.remote, err = loadLog(c.store, remoteKeyPrefix, c.codec); err != nil {
		return err
	}

	if c.joint, err = loadJoint(c.store); err != nil {
		return err
	}

	meta, err := loadMeta(c.store)
	if err != nil {
		return err
	}

	c.lastConfirmed = meta.LastConfirmed

	for _, e := range c.local {
		if e.response != nil {
			continue
		}

		c.pendingLocal++

		if err := c.ledger.Reserve(e.request.Command.Dependencies(), e.request.Seq); err != nil {
			logger.Warnf("pending request %d lost its dependencies: %v", e.request.Seq, err)
		}
	}

	// re-offer committed commands whose effects were lost by the processor
	for pos := uint64(0); pos < c.lastConfirmed && pos < uint64(len(c.joint)); pos++ {
		je := c.joint[pos]
		if je.Outcome != outcomeSuccess {
			continue
		}

		cmd := c.entryRequest(je).Command
		if created := cmd.CreatesVersions(); len(created) == 1 && !c.processor.Committed(created[0]) {
			if err := c.processor.Process(cmd, pos, je.Own, nil); err != nil {
				return pkgerrors.Wrapf(err, "replay joint position %d", pos)
			}
		}
	}

	return c.confirmReady()
}

// Role returns the role of the local VASP.
func (c *Channel) Role() Role {
	return c.role
}

// My returns the local on-chain address.
func (c *Channel) My() *address.Address {
	return c.my
}

// Other returns the on-chain address of the counterparty.
func (c *Channel) Other() *address.Address {
	return c.other
}

// State returns the current sequencer state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state()
}

func (c *Channel) state() State {
	switch {
	case c.early.Len(false) > 0:
		return StateDrainingRemote
	case c.pendingLocal > 0:
		return StateAwaitingLocalAck
	default:
		return StateIdle
	}
}

// Available reports whether version can be used as a dependency.
func (c *Channel) Available(version string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ledger.Available(version)
}

// SequenceCommand appends a local command and returns the request to send.
// A command error means the command is rejected locally and never sent.
func (c *Channel) SequenceCommand(cmd protocol.Command) (*protocol.CommandRequestObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkArity(cmd); err != nil {
		return nil, err
	}

	seq := uint64(len(c.local))
	deps := cmd.Dependencies()

	if err := c.ledger.Reserve(deps, seq); err != nil {
		return nil, err
	}

	if err := c.processor.Check(c.my, c.other, cmd, true); err != nil {
		c.ledger.Release(deps, seq)

		return nil, err
	}

	req := protocol.NewRequest(seq, cmd)
	entry := &logEntry{request: req}

	var (
		ops   []storage.Operation
		joint *jointEntry
	)

	if c.role == Server {
		req.CommandSeq = protocol.Uint64(uint64(len(c.joint)))
		joint = &jointEntry{Own: true, Seq: seq, Outcome: outcomePending}

		op, err := jointOperation(*req.CommandSeq, joint)
		if err != nil {
			c.ledger.Release(deps, seq)

			return nil, err
		}

		ops = append(ops, op)
	}

	op, err := logOperation(localKeyPrefix, entry)
	if err == nil {
		err = c.store.Batch(append(ops, op))
	}

	if err != nil {
		c.ledger.Release(deps, seq)

		return nil, pkgerrors.Wrap(err, "persist local request")
	}

	c.local = append(c.local, entry)
	c.pendingLocal++

	if joint != nil {
		c.joint = append(c.joint, joint)
	}

	logger.Debugf("sequenced local request %d on channel %s -> %s", seq, c.my, c.other)

	return req, nil
}

// PendingRequests returns the local requests still waiting for a final response, in order.
func (c *Channel) PendingRequests() []*protocol.CommandRequestObject {
	c.mu.Lock()
	defer c.mu.Unlock()

	var pending []*protocol.CommandRequestObject

	for _, e := range c.local {
		if e.response == nil {
			pending = append(pending, e.request)
		}
	}

	return pending
}

// HandleRequest processes a request of the counterparty and returns the response to send back.
func (c *Channel) HandleRequest(req *protocol.CommandRequestObject) (*protocol.CommandResponseObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq := protocol.Uint64(req.Seq)
	next := uint64(len(c.remote))

	if req.Seq < next {
		prev := c.remote[req.Seq]
		if prev.request.SameCommand(req) && sameSeq(prev.request.CommandSeq, req.CommandSeq) {
			return prev.response, nil
		}

		return protocol.NewProtocolErrorResponse(seq, protocol.NewProtocolError(protocol.CodeConflict,
			"request %d was already answered for a different command", req.Seq)), nil
	}

	if c.role == Server && req.CommandSeq != nil {
		return protocol.NewProtocolErrorResponse(seq, protocol.NewProtocolError(protocol.CodeParsing,
			"the client may not set command_seq")), nil
	}

	if c.role == Server && c.pendingLocal > 0 {
		return protocol.NewProtocolErrorResponse(seq, protocol.NewProtocolError(protocol.CodeWait,
			"%d server requests are not acknowledged yet", c.pendingLocal)), nil
	}

	if req.Seq > next {
		return protocol.NewProtocolErrorResponse(seq, protocol.NewProtocolError(protocol.CodeMissing,
			"expected request %d, got %d", next, req.Seq)), nil
	}

	pos := uint64(len(c.joint))

	if c.role == Client {
		if req.CommandSeq == nil {
			return protocol.NewProtocolErrorResponse(seq, protocol.NewProtocolError(protocol.CodeParsing,
				"the server must set command_seq")), nil
		}

		switch {
		case *req.CommandSeq > pos:
			return protocol.NewProtocolErrorResponse(seq, protocol.NewProtocolError(protocol.CodeWait,
				"joint position %d is not reached yet, at %d", *req.CommandSeq, pos)), nil
		case *req.CommandSeq < pos:
			return protocol.NewProtocolErrorResponse(seq, protocol.NewProtocolError(protocol.CodeConflict,
				"joint position %d is already taken", *req.CommandSeq)), nil
		}
	}

	resp, err := c.evaluateRemote(req, pos)
	if err != nil {
		return nil, err
	}

	if err := c.drainEarly(); err != nil {
		logger.Errorf("failed to apply cached responses: %v", err)
	}

	return resp, nil
}

func (c *Channel) evaluateRemote(req *protocol.CommandRequestObject, pos uint64) (*protocol.CommandResponseObject, error) {
	cmd := req.Command

	cmdErr, err := c.checkRemote(cmd)
	if err != nil {
		// not sequenced, the counterparty retransmits
		return nil, pkgerrors.Wrapf(err, "check request %d", req.Seq)
	}

	var change *ledger.Change

	if cmdErr == nil {
		change, err = c.ledger.Commit(cmd.Dependencies(), cmd.CreatesVersions(), cmd.Type(), pos)
		if cmdErr, err = commandError(err); err != nil {
			return nil, pkgerrors.Wrapf(err, "commit request %d", req.Seq)
		}
	}

	entry := &logEntry{request: req}
	joint := &jointEntry{Seq: req.Seq, Outcome: outcomeSuccess}

	if cmdErr != nil {
		entry.response = protocol.NewCommandErrorResponse(req.Seq, pos, cmdErr)
		joint.Outcome, joint.Error = outcomeFailure, cmdErr
		change = nil
	} else {
		entry.response = protocol.NewSuccessResponse(req.Seq, pos)
	}

	if err := c.persist(remoteKeyPrefix, entry, pos, joint, change, pos+1); err != nil {
		return nil, err
	}

	c.remote = append(c.remote, entry)
	c.joint = append(c.joint, joint)
	c.lastConfirmed = pos + 1

	if change != nil {
		c.ledger.Apply(change)
	}

	c.notify(cmd, pos, false, cmdErr)

	return entry.response, nil
}

// checkRemote returns the command error a remote command is sequenced with, or an error when it
// could not be evaluated at all.
func (c *Channel) checkRemote(cmd protocol.Command) (*protocol.OffChainError, error) {
	if err := checkArity(cmd); err != nil {
		return commandError(err)
	}

	if err := c.ledger.Check(cmd.Dependencies()); err != nil {
		return commandError(err)
	}

	return commandError(c.processor.Check(c.my, c.other, cmd, false))
}

// commandError splits err into a command error, which is part of the joint order, and any other failure.
func commandError(err error) (*protocol.OffChainError, error) {
	if err == nil {
		return nil, nil
	}

	var oce *protocol.OffChainError
	if errors.As(err, &oce) && !oce.ProtocolError {
		return oce, nil
	}

	return nil, err
}

// HandleResponse processes the counterparty response to a local request.
// Protocol errors leave the request pending so that it is retransmitted.
func (c *Channel) HandleResponse(resp *protocol.CommandResponseObject) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if resp.Seq == nil {
		logger.Warnf("counterparty %s could not parse a request: %v", c.other, resp.Error)

		return nil
	}

	seq := *resp.Seq
	if seq >= uint64(len(c.local)) {
		return pkgerrors.Wrapf(ErrUnknownRequest, "seq %d", seq)
	}

	entry := c.local[seq]

	if resp.IsProtocolFailure() {
		logger.Debugf("request %d not sequenced by %s: %s", seq, c.other, resp.Error.Code)

		return nil
	}

	if !resp.Sequenced() {
		return pkgerrors.Wrapf(ErrInvalidResponse, "response %d has no command_seq", seq)
	}

	if entry.response != nil {
		if entry.response.Equal(resp) {
			return nil
		}

		return pkgerrors.Wrapf(ErrResponseConflict, "request %d", seq)
	}

	if c.role == Server {
		return c.recordServerOutcome(entry, resp)
	}

	pos := uint64(len(c.joint))

	switch {
	case *resp.CommandSeq < pos:
		return pkgerrors.Wrapf(ErrInvalidResponse, "joint position %d is already taken", *resp.CommandSeq)
	case *resp.CommandSeq > pos:
		logger.Debugf("caching response %d for joint position %d, at %d", seq, *resp.CommandSeq, pos)

		return c.early.Set(*resp.CommandSeq, resp)
	}

	if err := c.applyClientOutcome(entry, resp); err != nil {
		return err
	}

	return c.drainEarly()
}

func (c *Channel) recordServerOutcome(entry *logEntry, resp *protocol.CommandResponseObject) error {
	pos := *resp.CommandSeq
	if entry.request.CommandSeq == nil || *entry.request.CommandSeq != pos || pos >= uint64(len(c.joint)) {
		return pkgerrors.Wrapf(ErrInvalidResponse, "request %d was not sequenced at %d", entry.request.Seq, pos)
	}

	updated := &logEntry{request: entry.request, response: resp}
	joint := &jointEntry{Own: true, Seq: entry.request.Seq, Outcome: outcomeSuccess}

	if resp.Status == protocol.StatusFailure {
		joint.Outcome, joint.Error = outcomeFailure, resp.Error
	}

	if err := c.persist(localKeyPrefix, updated, pos, joint, nil, c.lastConfirmed); err != nil {
		return err
	}

	entry.response = resp
	c.joint[pos] = joint
	c.pendingLocal--

	return c.confirmReady()
}

// confirmReady applies, in joint order, the outcomes that became known.
func (c *Channel) confirmReady() error {
	for c.lastConfirmed < uint64(len(c.joint)) {
		pos := c.lastConfirmed
		je := c.joint[pos]

		if je.Outcome == outcomePending {
			return nil
		}

		cmd := c.entryRequest(je).Command

		change, err := c.outcomeChange(je, cmd, pos)
		if err != nil {
			return err
		}

		var ops []storage.Operation

		if change != nil {
			if ops, err = change.Operations(); err != nil {
				return err
			}
		}

		op, err := metaOperation(pos + 1)
		if err != nil {
			return err
		}

		if err := c.store.Batch(append(ops, op)); err != nil {
			return pkgerrors.Wrapf(err, "persist joint position %d", pos)
		}

		if change != nil {
			c.ledger.Apply(change)
		}

		c.lastConfirmed = pos + 1

		if je.Own {
			c.ledger.Release(cmd.Dependencies(), je.Seq)
		}

		c.notify(cmd, pos, je.Own, je.Error)
	}

	return nil
}

func (c *Channel) applyClientOutcome(entry *logEntry, resp *protocol.CommandResponseObject) error {
	pos := *resp.CommandSeq
	cmd := entry.request.Command
	joint := &jointEntry{Own: true, Seq: entry.request.Seq, Outcome: outcomeSuccess}

	if resp.Status == protocol.StatusFailure {
		joint.Outcome, joint.Error = outcomeFailure, resp.Error
	}

	change, err := c.outcomeChange(joint, cmd, pos)
	if err != nil {
		return err
	}

	updated := &logEntry{request: entry.request, response: resp}
	if err := c.persist(localKeyPrefix, updated, pos, joint, change, pos+1); err != nil {
		return err
	}

	entry.response = resp
	c.joint = append(c.joint, joint)
	c.lastConfirmed = pos + 1
	c.pendingLocal--

	if change != nil {
		c.ledger.Apply(change)
	}

	c.ledger.Release(cmd.Dependencies(), entry.request.Seq)
	c.notify(cmd, pos, true, joint.Error)

	return nil
}

func (c *Channel) outcomeChange(je *jointEntry, cmd protocol.Command, pos uint64) (*ledger.Change, error) {
	if je.Outcome != outcomeSuccess {
		return nil, nil
	}

	change, err := c.ledger.Commit(cmd.Dependencies(), cmd.CreatesVersions(), cmd.Type(), pos)
	if err != nil {
		// the counterparty accepted a command this ledger cannot apply
		return nil, pkgerrors.Wrapf(err, "channel %s -> %s diverged at joint position %d", c.my, c.other, pos)
	}

	return change, nil
}

// drainEarly applies cached responses that became next in joint order.
func (c *Channel) drainEarly() error {
	for {
		pos := uint64(len(c.joint))

		v, err := c.early.Get(pos)
		if errors.Is(err, gcache.KeyNotFoundError) {
			return nil
		}

		if err != nil {
			return err
		}

		c.early.Remove(pos)

		resp, ok := v.(*protocol.CommandResponseObject)
		if !ok || resp.Seq == nil || *resp.Seq >= uint64(len(c.local)) {
			continue
		}

		entry := c.local[*resp.Seq]
		if entry.response != nil {
			continue
		}

		if err := c.applyClientOutcome(entry, resp); err != nil {
			return err
		}
	}
}

func (c *Channel) persist(prefix string, entry *logEntry, pos uint64, joint *jointEntry, change *ledger.Change,
	lastConfirmed uint64) error {
	logOp, err := logOperation(prefix, entry)
	if err != nil {
		return err
	}

	jointOp, err := jointOperation(pos, joint)
	if err != nil {
		return err
	}

	metaOp, err := metaOperation(lastConfirmed)
	if err != nil {
		return err
	}

	ops := []storage.Operation{logOp, jointOp, metaOp}

	if change != nil {
		changeOps, err := change.Operations()
		if err != nil {
			return err
		}

		ops = append(ops, changeOps...)
	}

	if err := c.store.Batch(ops); err != nil {
		return pkgerrors.Wrapf(err, "persist joint position %d", pos)
	}

	return nil
}

func (c *Channel) notify(cmd protocol.Command, pos uint64, own bool, cmdErr *protocol.OffChainError) {
	if err := c.processor.Process(cmd, pos, own, cmdErr); err != nil {
		logger.Errorf("failed to process command at joint position %d: %v", pos, err)
	}
}

func (c *Channel) entryRequest(je *jointEntry) *protocol.CommandRequestObject {
	if je.Own {
		return c.local[je.Seq].request
	}

	return c.remote[je.Seq].request
}

// Status is a snapshot of the channel counters.
type Status struct {
	My            string `json:"my"`
	Other         string `json:"other"`
	Role          string `json:"role"`
	State         State  `json:"state"`
	LocalSeq      uint64 `json:"local_seq"`
	RemoteSeq     uint64 `json:"remote_seq"`
	JointSeq      uint64 `json:"joint_seq"`
	LastConfirmed uint64 `json:"last_confirmed"`
	Pending       int    `json:"pending"`
	Versions      int    `json:"versions"`
}

// Status returns a snapshot of the channel.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		My:            c.my.String(),
		Other:         c.other.String(),
		Role:          c.role.String(),
		State:         c.state(),
		LocalSeq:      uint64(len(c.local)),
		RemoteSeq:     uint64(len(c.remote)),
		JointSeq:      uint64(len(c.joint)),
		LastConfirmed: c.lastConfirmed,
		Pending:       c.pendingLocal,
		Versions:      c.ledger.Len(),
	}
}

func checkArity(cmd protocol.Command) error {
	if cmd == nil {
		return protocol.NewCommandError(protocol.CodeWrongCommandStructure, "command", "missing command")
	}

	if n := len(cmd.CreatesVersions()); n != 1 {
		return protocol.NewCommandError(protocol.CodeWrongCommandStructure, "_creates_versions",
			"a command creates exactly one version, got %d", n)
	}

	if n := len(cmd.Dependencies()); n > 1 {
		return protocol.NewCommandError(protocol.CodeWrongCommandStructure, "_dependencies",
			"a command depends on at most one version, got %d", n)
	}

	return nil
}

func sameSeq(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}
