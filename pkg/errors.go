// Copyright IBM Corp. All Rights Reserved.
//
// SPDX-License-Identifier: Apache-2.0
//

package raffle

import "errors"

var (
	// ErrUnauthorized is returned when someone other than the trigger starts the round
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnauthorizedCallback is returned when someone other than the provider fulfills the round
	ErrUnauthorizedCallback = errors.New("unauthorized callback")
	// ErrAlreadyStarted is returned on every start after the first successful one
	ErrAlreadyStarted = errors.New("round already started")
	// ErrUnknownOrStaleRequest is returned for fulfillments that do not match the pending request
	ErrUnknownOrStaleRequest = errors.New("unknown or stale request")
	// ErrInsufficientRandomness is returned when fewer random words than winners arrive
	ErrInsufficientRandomness = errors.New("insufficient randomness")
	// ErrSelectionExhausted denotes the selection ran out of candidates, which is a logic error
	ErrSelectionExhausted = errors.New("selection exhausted candidates")
	// ErrInvalidSelection is returned when selection preconditions do not hold
	ErrInvalidSelection = errors.New("invalid selection arguments")
	// ErrInvalidConfig is returned when the construction parameters are inconsistent
	ErrInvalidConfig = errors.New("invalid config")
	// ErrSnapshotMismatch is returned when persisted state belongs to a different configuration
	ErrSnapshotMismatch = errors.New("snapshot does not match config")
)
