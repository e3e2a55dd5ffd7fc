/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package round implements the lifecycle of a single raffle round:
// Created -> RequestSent -> Fulfilled.
//
// A Round expects its operations to be invoked one at a time.
// The state check of every operation, not a lock, is what prevents a second
// request or a second selection, including under duplicate callback delivery.
package round

import (
	"context"
	"fmt"

	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
)

type Round struct {
	Select    raffle.Selector
	Logger    raffle.Logger
	Provider  raffle.RandomnessProvider
	Events    raffle.EventSink
	persister raffle.Persister
	// Configuration
	config       raffle.Config
	configDigest string
	// State
	state *State
}

// New creates a round in the Created state.
func New(config raffle.Config, provider raffle.RandomnessProvider, selector raffle.Selector, logger raffle.Logger) (*Round, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: no randomness provider", raffle.ErrInvalidConfig)
	}
	if selector == nil {
		return nil, fmt.Errorf("%w: no selector", raffle.ErrInvalidConfig)
	}

	r := &Round{
		Select:       selector,
		Logger:       logger,
		Provider:     provider,
		config:       config,
		configDigest: config.Digest(),
	}
	r.state = newState(Body{ConfigDigest: r.configDigest, State: int(raffle.Created)})

	r.Logger.Infof("Created round drawing %d winners out of %d participants, trigger: %s, provider: %s",
		config.WinnerCount, len(config.Roster), config.Trigger, config.Provider)

	return r, nil
}

// Restore binds the round to the given persister.
// If the persister holds a state of this round, the round continues from it.
func (r *Round) Restore(p raffle.Persister) error {
	rawState, err := p.Load()
	if err != nil {
		return fmt.Errorf("failed loading round state: %w", err)
	}

	if len(rawState) == 0 {
		r.Logger.Debugf("No persisted state, persisting a fresh round")
		if err := p.Save(r.state.ToBytes()); err != nil {
			return fmt.Errorf("failed persisting round state: %w", err)
		}
		r.persister = p
		return nil
	}

	s := &State{}
	if err := s.Initialize(rawState); err != nil {
		return err
	}
	if err := s.verify(r.config, r.configDigest); err != nil {
		return fmt.Errorf("persisted round state is invalid: %w", err)
	}

	r.Logger.Infof("Restored round state %s --> %s", r.state.header.BodyDigest, s.header.BodyDigest)
	r.Logger.Debugf("State we restored: %s", s)

	r.state = s
	r.persister = p
	return nil
}

func (r *Round) Start(ctx context.Context, caller raffle.Principal) error {
	if current := r.state.RoundState(); current != raffle.Created {
		r.Logger.Warnf("Rejecting start from %s since the round is %s", caller, current)
		return fmt.Errorf("%w: round is %s", raffle.ErrAlreadyStarted, current)
	}

	if caller != r.config.Trigger {
		r.Logger.Warnf("Rejecting start from %s, only %s may start the round", caller, r.config.Trigger)
		return fmt.Errorf("%w: %s may not start the round", raffle.ErrUnauthorized, caller)
	}

	id, err := r.Provider.RequestRandomness(ctx, raffle.RandomnessRequest{
		NumWords: r.config.WinnerCount,
		Params:   r.config.ProviderParams,
	})
	if err != nil {
		return fmt.Errorf("failed requesting randomness: %w", err)
	}
	if id == "" {
		return fmt.Errorf("provider returned an empty request ID")
	}

	next := r.state.body
	next.State = int(raffle.RequestSent)
	next.RequestID = string(id)
	if err := r.commit(next); err != nil {
		r.Logger.Errorf("Request %s was issued but the round could not record it: %v", id, err)
		return err
	}

	r.Logger.Infof("Round started, requested %d random words with request %s", r.config.WinnerCount, id)
	r.emit(raffle.Event{Kind: raffle.RoundStarted, RequestID: id})

	return nil
}

func (r *Round) Fulfill(_ context.Context, caller raffle.Principal, id raffle.RequestID, words []*raffle.Word) error {
	if caller != r.config.Provider {
		r.Logger.Warnf("Rejecting fulfillment of %s from %s, only %s may fulfill", id, caller, r.config.Provider)
		return fmt.Errorf("%w: %s is not the randomness provider", raffle.ErrUnauthorizedCallback, caller)
	}

	current := r.state.RoundState()
	if current != raffle.RequestSent || string(id) != r.state.body.RequestID {
		r.Logger.Warnf("Rejecting fulfillment of %s, round is %s with request %q", id, current, r.state.body.RequestID)
		return fmt.Errorf("%w: %s", raffle.ErrUnknownOrStaleRequest, id)
	}

	if len(words) < r.config.WinnerCount {
		r.Logger.Errorf("Request %s was fulfilled with %d random words but %d are needed",
			id, len(words), r.config.WinnerCount)
		return fmt.Errorf("%w: got %d words, need %d", raffle.ErrInsufficientRandomness, len(words), r.config.WinnerCount)
	}
	for i, w := range words[:r.config.WinnerCount] {
		if w == nil {
			return fmt.Errorf("%w: word %d is missing", raffle.ErrInsufficientRandomness, i)
		}
	}

	winners, err := r.Select(words, len(r.config.Roster), r.config.WinnerCount)
	if err != nil {
		r.Logger.Errorf("Selection for request %s failed: %v", id, err)
		return fmt.Errorf("failed selecting winners: %w", err)
	}
	if err := verifyWinners(winners, len(r.config.Roster), r.config.WinnerCount); err != nil {
		r.Logger.Errorf("Selection for request %s violated its contract: %v", id, err)
		return fmt.Errorf("selector returned invalid winners: %v", err)
	}

	next := r.state.body
	next.State = int(raffle.Fulfilled)
	next.Winners = winners
	if err := r.commit(next); err != nil {
		return err
	}

	r.Logger.Infof("Request %s fulfilled, winners are %v", id, winners)
	r.emit(raffle.Event{Kind: raffle.WinnersSelected, RequestID: id, Winners: r.Winners()})

	return nil
}

// Winners returns the selected participants in draw order.
// Before the round is fulfilled it returns nothing.
func (r *Round) Winners() []raffle.Participant {
	if r.state.RoundState() != raffle.Fulfilled {
		return nil
	}

	res := make([]raffle.Participant, 0, len(r.state.body.Winners))
	for _, idx := range r.state.body.Winners {
		p := make(raffle.Participant, len(r.config.Roster[idx]))
		copy(p, r.config.Roster[idx])
		res = append(res, p)
	}
	return res
}

func (r *Round) Status() raffle.Status {
	return r.state.Status()
}

// commit persists the next body and only then makes it the current state,
// so a failure leaves the round exactly as it was.
func (r *Round) commit(body Body) error {
	next := newState(body)

	if r.persister != nil {
		if err := r.persister.Save(next.ToBytes()); err != nil {
			return fmt.Errorf("failed persisting round state: %w", err)
		}
	}

	r.Logger.Debugf("State changed from %s to %s", r.state.header.BodyDigest, next.header.BodyDigest)
	r.state = next
	return nil
}

func (r *Round) emit(e raffle.Event) {
	if r.Events == nil {
		return
	}
	r.Events.Emit(e)
}
