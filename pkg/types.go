// Copyright IBM Corp. All Rights Reserved.
//
// SPDX-License-Identifier: Apache-2.0
//

package raffle

import (
	"bytes"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// Participant is an opaque identifier of a roster entry
type Participant []byte

func (p Participant) String() string {
	return "0x" + hex.EncodeToString(p)
}

// Roster is the ordered population the winners are drawn from
type Roster []Participant

// Principal identifies a caller of the round
type Principal string

// RequestID correlates a randomness request with its fulfillment
type RequestID string

// Word is a single 256 bit random value
type Word = uint256.Int

// RoundState is the lifecycle position of a round.
type RoundState int

const (
	Created RoundState = iota
	RequestSent
	Fulfilled
)

func (s RoundState) String() string {
	switch s {
	case Created:
		return "created"
	case RequestSent:
		return "request-sent"
	case Fulfilled:
		return "fulfilled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ProviderParams are passed verbatim to the randomness provider
type ProviderParams struct {
	KeyHash              []byte
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
}

// RandomnessRequest is what the round asks the provider for
type RandomnessRequest struct {
	NumWords int
	Params   ProviderParams
}

// Config is the construction time configuration of a round.
// It is immutable for the lifetime of the round.
type Config struct {
	// Roster denotes the participants winners are selected from
	Roster Roster
	// WinnerCount is how many distinct winners are selected
	WinnerCount int
	// Trigger is the only principal allowed to start the round
	Trigger Principal
	// Provider is the only principal allowed to fulfill the round
	Provider Principal
	// ProviderParams are forwarded to the randomness provider
	ProviderParams ProviderParams
}

// Validate checks the construction invariants of the configuration.
func (c Config) Validate() error {
	if c.WinnerCount <= 0 {
		return fmt.Errorf("%w: winner count must be positive, got %d", ErrInvalidConfig, c.WinnerCount)
	}
	if len(c.Roster) < c.WinnerCount {
		return fmt.Errorf("%w: roster of %d participants cannot yield %d winners",
			ErrInvalidConfig, len(c.Roster), c.WinnerCount)
	}
	if c.Trigger == "" {
		return fmt.Errorf("%w: trigger principal is empty", ErrInvalidConfig)
	}
	if c.Provider == "" {
		return fmt.Errorf("%w: provider principal is empty", ErrInvalidConfig)
	}

	seen := make(map[string]int, len(c.Roster))
	for i, p := range c.Roster {
		if len(p) == 0 {
			return fmt.Errorf("%w: participant %d is empty", ErrInvalidConfig, i)
		}
		if j, exists := seen[string(p)]; exists {
			return fmt.Errorf("%w: participant %s appears at %d and %d", ErrInvalidConfig, p, j, i)
		}
		seen[string(p)] = i
	}

	return nil
}

// Marshal serializes the configuration
func (c Config) Marshal() []byte {
	raw := rawConfig{
		WinnerCount:          c.WinnerCount,
		Trigger:              string(c.Trigger),
		Provider:             string(c.Provider),
		KeyHash:              c.ProviderParams.KeyHash,
		SubscriptionID:       int64(c.ProviderParams.SubscriptionID),
		RequestConfirmations: int(c.ProviderParams.RequestConfirmations),
		CallbackGasLimit:     int64(c.ProviderParams.CallbackGasLimit),
	}
	for _, p := range c.Roster {
		raw.Roster = append(raw.Roster, p)
	}

	bytes, err := asn1.Marshal(raw)
	if err != nil {
		panic(err)
	}
	return bytes
}

// Unmarshal loads the configuration from its serialized form
func (c *Config) Unmarshal(bytes []byte) error {
	raw := rawConfig{}
	if _, err := asn1.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("failed unmarshaling config: %v", err)
	}

	*c = Config{
		WinnerCount: raw.WinnerCount,
		Trigger:     Principal(raw.Trigger),
		Provider:    Principal(raw.Provider),
		ProviderParams: ProviderParams{
			KeyHash:              raw.KeyHash,
			SubscriptionID:       uint64(raw.SubscriptionID),
			RequestConfirmations: uint16(raw.RequestConfirmations),
			CallbackGasLimit:     uint32(raw.CallbackGasLimit),
		},
	}
	for _, p := range raw.Roster {
		c.Roster = append(c.Roster, Participant(p))
	}

	return nil
}

// Digest returns a fingerprint binding persisted round state to this configuration
func (c Config) Digest() string {
	h := sha256.New()
	h.Write(c.Marshal())
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

type rawConfig struct {
	Roster               [][]byte
	WinnerCount          int
	Trigger              string `asn1:"utf8"`
	Provider             string `asn1:"utf8"`
	KeyHash              []byte
	SubscriptionID       int64
	RequestConfirmations int
	CallbackGasLimit     int64
}

// Contains returns whether the participant is in the roster
func (r Roster) Contains(p Participant) bool {
	for _, e := range r {
		if bytes.Equal(e, p) {
			return true
		}
	}
	return false
}

// Status is a read-only view of a round
type Status struct {
	State     RoundState
	RequestID RequestID
	Winners   []int
}

// EventKind denotes what happened to a round
type EventKind string

const (
	RoundStarted    EventKind = "round-started"
	WinnersSelected EventKind = "winners-selected"
)

// Event is an observable notification about a round
type Event struct {
	Kind      EventKind
	RequestID RequestID
	Winners   []Participant // Winners in draw order, only for WinnersSelected
}
