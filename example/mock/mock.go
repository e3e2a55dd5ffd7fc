// Copyright IBM Corp. All Rights Reserved.
//
// SPDX-License-Identifier: Apache-2.0
//

package mock

import (
	"context"
	"fmt"

	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
)

// Provider is a deterministic RandomnessProvider that records requests
// and leaves their fulfillment to the test.
type Provider struct {
	Requests []raffle.RandomnessRequest
	IDs      []raffle.RequestID
	// Err, if set, fails every request
	Err error
	// ID, if set, is returned instead of a sequential request ID
	ID raffle.RequestID
}

func (p *Provider) RequestRandomness(_ context.Context, req raffle.RandomnessRequest) (raffle.RequestID, error) {
	if p.Err != nil {
		return "", p.Err
	}
	p.Requests = append(p.Requests, req)
	id := p.ID
	if id == "" {
		id = raffle.RequestID(fmt.Sprintf("request-%d", len(p.Requests)))
	}
	p.IDs = append(p.IDs, id)
	return id, nil
}

// LastID returns the request ID of the latest request
func (p *Provider) LastID() raffle.RequestID {
	if len(p.IDs) == 0 {
		return ""
	}
	return p.IDs[len(p.IDs)-1]
}

// Events records emitted events
type Events struct {
	Events []raffle.Event
}

func (e *Events) Emit(event raffle.Event) {
	e.Events = append(e.Events, event)
}

// Persister keeps the state in memory
type Persister struct {
	State   []byte
	SaveErr error
	LoadErr error
	Saves   int
}

func (p *Persister) Save(state []byte) error {
	if p.SaveErr != nil {
		return p.SaveErr
	}
	p.Saves++
	p.State = append([]byte(nil), state...)
	return nil
}

func (p *Persister) Load() ([]byte, error) {
	if p.LoadErr != nil {
		return nil, p.LoadErr
	}
	return p.State, nil
}
