// Copyright IBM Corp. All Rights Reserved.
//
// SPDX-License-Identifier: Apache-2.0
//

package staticraffle

import (
	"fmt"

	"github.com/SmartBFT-Go/staticraffle/internal/executor"
	"github.com/SmartBFT-Go/staticraffle/internal/round"
	"github.com/SmartBFT-Go/staticraffle/internal/selection"
	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
)

// NewRound creates a round that selects winners with the given strategy, "swap" or "rehash".
// The round is not persisted unless Restore is called on it.
func NewRound(config raffle.Config, provider raffle.RandomnessProvider, logger raffle.Logger, strategy string) (*round.Round, error) {
	selector, err := selection.ForStrategy(selection.Strategy(strategy))
	if err != nil {
		return nil, err
	}
	return round.New(config, provider, selector, logger)
}

// Serialize returns a round that may be invoked concurrently,
// for instance by API handlers and by an asynchronous provider.
func Serialize(r raffle.Round, logger raffle.Logger) *executor.Executor {
	return executor.New(r, logger)
}

// StatusFromBytes decodes a persisted round state.
// Winners are only checked to be distinct, as the roster is unknown here.
func StatusFromBytes(rawState []byte) (raffle.Status, error) {
	s := &round.State{}
	if err := s.Initialize(rawState); err != nil {
		return raffle.Status{}, err
	}
	if err := s.Check(); err != nil {
		return raffle.Status{}, fmt.Errorf("invalid round state: %w", err)
	}
	return s.Status(), nil
}
