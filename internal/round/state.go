/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package round

import (
	"bytes"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
)

// State is the persisted form of a round.
// It is laid out as a length prefixed header carrying the digest of the body, followed by the body.
type State struct {
	header    Header
	body      Body
	bodyBytes []byte
}

type Header struct {
	BodyDigest string
}

func (h Header) Bytes() []byte {
	headerBytes, err := asn1.Marshal(h)
	if err != nil {
		panic(err)
	}
	return headerBytes
}

// Body holds the mutable attributes of a round
type Body struct {
	ConfigDigest string
	State        int
	RequestID    string `asn1:"utf8"`
	Winners      []int
}

func (b Body) Bytes() []byte {
	bodyBytes, err := asn1.Marshal(b)
	if err != nil {
		panic(err)
	}
	return bodyBytes
}

func newState(body Body) *State {
	s := &State{body: body}
	s.bodyBytes = body.Bytes()
	s.header.BodyDigest = digest(s.bodyBytes)
	return s
}

func (s *State) RoundState() raffle.RoundState {
	return raffle.RoundState(s.body.State)
}

// Status returns a copy of what the state records
func (s *State) Status() raffle.Status {
	var winners []int
	if len(s.body.Winners) > 0 {
		winners = append(winners, s.body.Winners...)
	}
	return raffle.Status{
		State:     s.RoundState(),
		RequestID: raffle.RequestID(s.body.RequestID),
		Winners:   winners,
	}
}

func (s *State) String() string {
	m := make(map[string]interface{})
	m["header"] = fmt.Sprintf("BodyDigest: %s", s.header.BodyDigest)
	m["state"] = s.RoundState().String()
	m["requestID"] = s.body.RequestID
	m["winners"] = s.body.Winners

	str, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}

	return string(str)
}

func (s *State) Initialize(rawState []byte) error {
	// Reset all state first
	*s = State{}

	if len(rawState) == 0 {
		return nil
	}

	// Read header size
	if len(rawState) < 4 {
		stateAsString := base64.StdEncoding.EncodeToString(rawState)
		return fmt.Errorf("failed reading header size from raw state (%s)", stateAsString)
	}
	headerSize := int(binary.BigEndian.Uint32(rawState[:4]))
	if headerSize+4 > len(rawState) {
		return fmt.Errorf("header size %d exceeds raw state of %d bytes", headerSize, len(rawState))
	}
	headerBuff := rawState[4 : headerSize+4]

	header := &Header{}
	if _, err := asn1.Unmarshal(headerBuff, header); err != nil {
		stateAsString := base64.StdEncoding.EncodeToString(rawState)
		return fmt.Errorf("failed reading header from raw state (%s): %v", stateAsString, err)
	}

	// The rest of the bytes are for the body
	bodyBuff := rawState[headerSize+4:]
	if d := digest(bodyBuff); d != header.BodyDigest {
		return fmt.Errorf("body digest is %s but header states %s", d, header.BodyDigest)
	}

	body := &Body{}
	if _, err := asn1.Unmarshal(bodyBuff, body); err != nil {
		stateAsString := base64.StdEncoding.EncodeToString(rawState)
		return fmt.Errorf("failed unmarshaling state bytes(%s): %v", stateAsString, err)
	}

	if len(body.Winners) == 0 {
		body.Winners = nil
	}

	s.header = *header
	s.body = *body
	s.bodyBytes = bodyBuff

	return nil
}

func (s *State) ToBytes() []byte {
	if len(s.bodyBytes) == 0 {
		return nil
	}
	bb := bytes.Buffer{}
	headerBytes := s.header.Bytes()
	headerLength := len(headerBytes)
	headerLengthBuff := make([]byte, 4)
	binary.BigEndian.PutUint32(headerLengthBuff, uint32(headerLength))
	bb.Write(headerLengthBuff)
	bb.Write(headerBytes)
	bb.Write(s.bodyBytes)
	return bb.Bytes()
}

// verify checks that a restored state respects the round invariants
func (s *State) verify(config raffle.Config, configDigest string) error {
	if s.body.ConfigDigest != configDigest {
		return fmt.Errorf("%w: persisted digest %s, config digest %s",
			raffle.ErrSnapshotMismatch, s.body.ConfigDigest, configDigest)
	}
	if err := s.Check(); err != nil {
		return err
	}
	if s.RoundState() == raffle.Fulfilled {
		return verifyWinners(s.body.Winners, len(config.Roster), config.WinnerCount)
	}
	return nil
}

// Check verifies the invariants that hold without knowing the configuration
func (s *State) Check() error {
	switch s.RoundState() {
	case raffle.Created:
		if s.body.RequestID != "" || len(s.body.Winners) > 0 {
			return fmt.Errorf("created round carries request %q and winners %v", s.body.RequestID, s.body.Winners)
		}
	case raffle.RequestSent:
		if s.body.RequestID == "" || len(s.body.Winners) > 0 {
			return fmt.Errorf("pending round carries request %q and winners %v", s.body.RequestID, s.body.Winners)
		}
	case raffle.Fulfilled:
		if s.body.RequestID == "" {
			return fmt.Errorf("fulfilled round has no request")
		}
		if len(s.body.Winners) == 0 {
			return fmt.Errorf("fulfilled round has no winners")
		}
		if err := verifyWinners(s.body.Winners, math.MaxInt, len(s.body.Winners)); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown round state %d", s.body.State)
	}
	return nil
}

func verifyWinners(winners []int, rosterSize, winnerCount int) error {
	if len(winners) != winnerCount {
		return fmt.Errorf("expected %d winners but got %d", winnerCount, len(winners))
	}
	seen := make(map[int]struct{}, len(winners))
	for _, idx := range winners {
		if idx < 0 || idx >= rosterSize {
			return fmt.Errorf("winner index %d is not within [0, %d)", idx, rosterSize)
		}
		if _, exists := seen[idx]; exists {
			return fmt.Errorf("winner index %d appears twice in %v", idx, winners)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

func digest(bytes []byte) string {
	h := sha256.New()
	h.Write(bytes)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
