/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package retry

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hyperledger/aries-framework-go/component/log"
)

var logger = log.New("offchain-framework/retry")

const (
	defaultInterval    = 2 * time.Second
	defaultMaxInterval = time.Minute
)

// RetransmitFunc resends the unacknowledged requests of a channel.
// It reports whether requests are still pending after the attempt.
type RetransmitFunc func(ctx context.Context, channel string) (pending bool, err error)

type entry struct {
	backOff *backoff.ExponentialBackOff
	next    time.Time
	// gen changes on every Track or Kick, so a pass does not drop a channel that got new requests meanwhile.
	gen uint64
}

type dueEntry struct {
	channel string
	gen     uint64
}

// Manager retransmits unacknowledged requests per channel, backing off exponentially while the peer
// does not acknowledge them.
type Manager struct {
	retransmit  RetransmitFunc
	interval    time.Duration
	maxInterval time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	kick    chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// Option configures the Manager.
type Option func(m *Manager)

// WithInterval sets the tick interval and the first retransmission delay.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.interval = d
	}
}

// WithMaxInterval caps the delay between two retransmissions of one channel.
func WithMaxInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.maxInterval = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a retry manager. Start runs its loop.
func New(retransmit RetransmitFunc, opts ...Option) *Manager {
	m := &Manager{
		retransmit:  retransmit,
		interval:    defaultInterval,
		maxInterval: defaultMaxInterval,
		now:         time.Now,
		entries:     make(map[string]*entry),
		kick:        make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.maxInterval < m.interval {
		m.maxInterval = m.interval
	}

	return m
}

func (m *Manager) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.interval
	b.MaxInterval = m.maxInterval
	// retransmit until acknowledged
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// Track schedules channel for retransmission one interval from now. A channel that is already
// scheduled keeps its schedule.
func (m *Manager) Track(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[channel]; ok {
		e.gen++

		return
	}

	m.entries[channel] = &entry{backOff: m.newBackOff(), next: m.now().Add(m.interval)}
}

// Forget stops retransmitting for channel.
func (m *Manager) Forget(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, channel)
}

// Tracked reports whether channel has a retransmission scheduled.
func (m *Manager) Tracked(channel string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[channel]

	return ok
}

// Kick resets the backoff of channel and retransmits on the next pass, e.g. after a reconnection.
func (m *Manager) Kick(channel string) {
	m.mu.Lock()

	e, ok := m.entries[channel]
	if !ok {
		e = &entry{backOff: m.newBackOff()}
		m.entries[channel] = e
	}

	e.backOff.Reset()
	e.next = m.now()
	e.gen++
	m.mu.Unlock()

	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Start runs the retransmission loop until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()

		return
	}

	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
			case <-m.kick:
			}

			m.RunOnce(ctx)
		}
	}()
}

// Stop ends the loop started by Start and waits for it.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-done
}

// RunOnce retransmits every channel that is due.
func (m *Manager) RunOnce(ctx context.Context) {
	now := m.now()

	for _, d := range m.due(now) {
		channel := d.channel
		pending, err := m.retransmit(ctx, channel)

		m.mu.Lock()

		e, ok := m.entries[channel]
		if !ok {
			m.mu.Unlock()

			continue
		}

		switch {
		case err != nil:
			logger.Debugf("retransmit to %s failed: %v", channel, err)

			e.next = m.now().Add(e.backOff.NextBackOff())
		case !pending && e.gen == d.gen:
			delete(m.entries, channel)
		case !pending:
			// tracked again during the attempt
			e.backOff.Reset()
			e.next = m.now().Add(m.interval)
		default:
			e.next = m.now().Add(e.backOff.NextBackOff())
		}

		m.mu.Unlock()
	}
}

func (m *Manager) due(now time.Time) []dueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []dueEntry

	for channel, e := range m.entries {
		if !e.next.After(now) {
			due = append(due, dueEntry{channel: channel, gen: e.gen})
		}
	}

	return due
}
