// Package poll implements passive mode's adaptive polling loop: after an
// injection batch completes, the store is polled for new callbacks against
// the batch's tokens on an interval that resets to its base whenever fresh
// evidence arrives and backs off while everything stays quiet. The loop is
// an explicit state machine driven by discrete poll() calls between sleeps,
// so each transition is observable and testable without real timers.
package poll

import (
	"context"
	"time"

	"ricochet.dev/ricochet/internal/store"
)

// State names a stage in a polling batch's lifecycle.
type State int

const (
	// StateInjected is the instant after the batch was sent; no poll has
	// happened yet.
	StateInjected State = iota
	// StatePollActive means a recent poll found new callbacks, or no more
	// than QuietRounds consecutive empty polls have elapsed since one did.
	StatePollActive
	// StatePollQuiet means more than QuietRounds consecutive empty polls
	// have elapsed; the interval keeps growing toward MaxInterval.
	StatePollQuiet
	// StateTerminated means MaxTotalWait elapsed or the context was
	// cancelled; the batch is done and a final summary can be printed.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInjected:
		return "injected"
	case StatePollActive:
		return "poll_active"
	case StatePollQuiet:
		return "poll_quiet"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Params configures interval growth. See config.PollConfig for the CLI-facing
// equivalent; this type exists so poll has no dependency on the config
// package (it is driven by whatever values the caller already resolved).
type Params struct {
	BaseInterval time.Duration
	MaxInterval  time.Duration
	QuietRounds  int
	GrowthFactor float64
	MaxTotalWait time.Duration
}

// Observation reports what one completed poll saw: the callbacks that were
// new since the previous poll, keyed nowhere — callers correlate via each
// callback's Token field.
type Observation struct {
	NewCallbacks []store.Callback
	State        State
	NextInterval time.Duration
}

// Batch polls the store for callbacks belonging to a fixed set of tokens.
// Polling never stops early on success: a token that already produced one
// callback may produce more (each arrival is new evidence), so the loop
// runs until MaxTotalWait or cancellation.
type Batch struct {
	Store  *store.Store
	Tokens []string
	Params Params

	// OnObservation, if set, is invoked after every poll with what it saw.
	// passive uses this to stream per-callback progress lines.
	OnObservation func(Observation)

	state       State
	interval    time.Duration
	quietStreak int
	startedAt   time.Time
	seen        map[string]bool // callback IDs already reported
}

// NewBatch starts a poll batch for tokens in StateInjected.
func NewBatch(s *store.Store, tokens []string, params Params) *Batch {
	return &Batch{
		Store:     s,
		Tokens:    tokens,
		Params:    params,
		state:     StateInjected,
		interval:  params.BaseInterval,
		startedAt: time.Now(),
		seen:      make(map[string]bool),
	}
}

// State returns the batch's current state.
func (b *Batch) State() State { return b.state }

// Interval returns the delay before the next poll.
func (b *Batch) Interval() time.Duration { return b.interval }

// Run blocks, polling the store on an adaptively growing interval, until
// MaxTotalWait elapses or ctx is done. It returns every callback observed
// across the whole run, in observation order.
func (b *Batch) Run(ctx context.Context) ([]store.Callback, State) {
	var all []store.Callback
	for {
		if time.Since(b.startedAt) > b.Params.MaxTotalWait {
			b.state = StateTerminated
			return all, b.state
		}

		select {
		case <-ctx.Done():
			b.state = StateTerminated
			return all, b.state
		case <-time.After(b.interval):
		}

		fresh := b.poll(ctx)
		all = append(all, fresh...)
		b.advance(len(fresh))

		if b.OnObservation != nil {
			b.OnObservation(Observation{NewCallbacks: fresh, State: b.state, NextInterval: b.interval})
		}
	}
}

// poll queries the store once for each token and returns the callbacks not
// seen by any previous poll. A store read error on one token skips that
// token for this round rather than aborting the batch; the row is still
// durably stored and the next round retries.
func (b *Batch) poll(ctx context.Context) []store.Callback {
	var fresh []store.Callback
	for _, tok := range b.Tokens {
		cbs, err := b.Store.ListCallbacksByToken(ctx, tok)
		if err != nil {
			continue
		}
		for _, cb := range cbs {
			if b.seen[cb.ID] {
				continue
			}
			b.seen[cb.ID] = true
			fresh = append(fresh, cb)
		}
	}
	return fresh
}

// advance transitions state and adjusts the interval after a poll that
// found newCount fresh callbacks. New evidence snaps the interval back to
// its base and restarts the quiet count; silence grows the interval only
// once the quiet streak passes QuietRounds, capped at MaxInterval.
func (b *Batch) advance(newCount int) {
	if newCount > 0 {
		b.state = StatePollActive
		b.interval = b.Params.BaseInterval
		b.quietStreak = 0
		return
	}
	b.quietStreak++
	if b.quietStreak > b.Params.QuietRounds {
		b.state = StatePollQuiet
		b.interval = time.Duration(float64(b.interval) * b.Params.GrowthFactor)
		if b.interval > b.Params.MaxInterval {
			b.interval = b.Params.MaxInterval
		}
	} else {
		b.state = StatePollActive
	}
}
