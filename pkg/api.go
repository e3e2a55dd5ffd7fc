// Copyright IBM Corp. All Rights Reserved.
//
// SPDX-License-Identifier: Apache-2.0
//

package raffle

import "context"

// Round is an interface that describes the API of a single raffle round
type Round interface {
	// Start issues the randomness request. Only the trigger may call it, and only once.
	Start(ctx context.Context, caller Principal) error
	// Fulfill consumes the randomness of the pending request and selects the winners.
	// Only the provider may call it, with the request identifier returned to Start.
	Fulfill(ctx context.Context, caller Principal, id RequestID, words []*Word) error
	// Winners returns the winners in draw order, or nothing if the round isn't fulfilled yet
	Winners() []Participant
	// Status returns a read-only view of the round
	Status() Status
}

// RandomnessProvider requests random words on behalf of a round.
// The words are delivered later through a FulfillmentHandler.
type RandomnessProvider interface {
	RequestRandomness(ctx context.Context, req RandomnessRequest) (RequestID, error)
}

// FulfillmentHandler is the callback a RandomnessProvider delivers random words to
type FulfillmentHandler interface {
	Fulfill(ctx context.Context, caller Principal, id RequestID, words []*Word) error
}

// EventSink receives notifications for off-process observers
type EventSink interface {
	Emit(Event)
}

// Persister stores the serialized round state. Save must be atomic.
type Persister interface {
	Save(state []byte) error
	Load() ([]byte, error)
}

// Selector maps random words to distinct roster indices in draw order
type Selector func(words []*Word, rosterSize, winnerCount int) ([]int, error)

type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Panicf(template string, args ...interface{})
}
