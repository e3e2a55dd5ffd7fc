/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package executor serializes every operation on a round through a single goroutine,
// so operations coming from API handlers and from asynchronous oracle deliveries
// never overlap.
package executor

import (
	"context"
	"errors"

	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
)

// ErrClosed is returned for operations submitted after Close
var ErrClosed = errors.New("executor closed")

type op struct {
	run  func()
	done chan struct{}
}

// Executor owns a round and runs its operations one at a time.
// It implements raffle.Round and raffle.FulfillmentHandler.
type Executor struct {
	Logger raffle.Logger
	Hooks  Hooks

	round  raffle.Round
	ops    chan op
	closed chan struct{}
	exited chan struct{}
}

// Hooks observe the outcome of operations
type Hooks struct {
	OnStart   func(caller raffle.Principal, err error)
	OnFulfill func(caller raffle.Principal, id raffle.RequestID, err error)
}

// New starts an executor for the given round
func New(round raffle.Round, logger raffle.Logger) *Executor {
	e := &Executor{
		Logger: logger,
		round:  round,
		ops:    make(chan op),
		closed: make(chan struct{}),
		exited: make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Executor) run() {
	defer close(e.exited)
	for {
		select {
		case o := <-e.ops:
			o.run()
			close(o.done)
		case <-e.closed:
			return
		}
	}
}

// Close stops accepting operations and waits for the running one to complete
func (e *Executor) Close() {
	select {
	case <-e.closed:
	default:
		close(e.closed)
	}
	<-e.exited
}

func (e *Executor) do(ctx context.Context, f func()) error {
	o := op{run: f, done: make(chan struct{})}
	select {
	case e.ops <- o:
	case <-e.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once accepted, an operation always runs to completion
	<-o.done
	return nil
}

func (e *Executor) Start(ctx context.Context, caller raffle.Principal) error {
	var err error
	if submitErr := e.do(ctx, func() {
		err = e.round.Start(ctx, caller)
	}); submitErr != nil {
		return submitErr
	}
	if e.Hooks.OnStart != nil {
		e.Hooks.OnStart(caller, err)
	}
	return err
}

func (e *Executor) Fulfill(ctx context.Context, caller raffle.Principal, id raffle.RequestID, words []*raffle.Word) error {
	var err error
	if submitErr := e.do(ctx, func() {
		err = e.round.Fulfill(ctx, caller, id, words)
	}); submitErr != nil {
		return submitErr
	}
	if e.Hooks.OnFulfill != nil {
		e.Hooks.OnFulfill(caller, id, err)
	}
	return err
}

func (e *Executor) Winners() []raffle.Participant {
	var winners []raffle.Participant
	if err := e.do(context.Background(), func() {
		winners = e.round.Winners()
	}); err != nil {
		e.Logger.Debugf("Winners unavailable: %v", err)
	}
	return winners
}

func (e *Executor) Status() raffle.Status {
	var status raffle.Status
	if err := e.do(context.Background(), func() {
		status = e.round.Status()
	}); err != nil {
		e.Logger.Debugf("Status unavailable: %v", err)
	}
	return status
}
