/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package oracle implements a local randomness coordinator.
//
// The coordinator signs keyHash||requestID with a BLS key. BLS signatures are unique,
// so the signature is a verifiable random output, from which the i-th random word
// is derived as sha256(signature||i).
package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
)

var suite = pairing.NewSuiteBn256()

// ErrUnknownRequest is returned when fulfilling a request the coordinator never issued
var ErrUnknownRequest = errors.New("unknown request")

// Proof allows anyone holding the coordinator's public key to check the random words of a request
type Proof struct {
	RequestID raffle.RequestID
	Seed      []byte
	Signature []byte
	NumWords  int
}

type request struct {
	seed     []byte
	numWords int
	delay    time.Duration
}

// Coordinator is a RandomnessProvider that fulfills its own requests
// by calling back into a FulfillmentHandler under its Principal.
type Coordinator struct {
	Logger    raffle.Logger
	Principal raffle.Principal
	// BlockInterval multiplied by the requested confirmations is the fulfillment delay
	BlockInterval time.Duration
	// AutoFulfill delivers randomness without waiting for FulfillRandomWords
	AutoFulfill bool
	// Redeliver is how many times a fulfillment is delivered again, emulating at-least-once delivery
	Redeliver int

	sk kyber.Scalar
	pk kyber.Point

	lock      sync.Mutex
	handler   raffle.FulfillmentHandler
	pending   map[raffle.RequestID]request
	fulfilled map[raffle.RequestID]Proof

	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}
}

// NewCoordinator creates a coordinator with a fresh key pair drawn from rand.
func NewCoordinator(principal raffle.Principal, logger raffle.Logger, rand io.Reader) *Coordinator {
	sk, pk := bls.NewKeyPair(suite, random.New(rand))
	c := &Coordinator{
		Logger:    logger,
		Principal: principal,
		sk:        sk,
		pk:        pk,
		pending:   make(map[raffle.RequestID]request),
		fulfilled: make(map[raffle.RequestID]Proof),
		stop:      make(chan struct{}),
	}

	if pkRaw, err := pk.MarshalBinary(); err == nil {
		c.Logger.Infof("Coordinator %s generated public key: %s", principal, base64.StdEncoding.EncodeToString(pkRaw))
	}

	return c
}

// Bind sets the handler fulfillments are delivered to
func (c *Coordinator) Bind(h raffle.FulfillmentHandler) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.handler = h
}

// PublicKey returns the marshaled BLS public key of the coordinator
func (c *Coordinator) PublicKey() ([]byte, error) {
	return c.pk.MarshalBinary()
}

func (c *Coordinator) RequestRandomness(_ context.Context, req raffle.RandomnessRequest) (raffle.RequestID, error) {
	if req.NumWords <= 0 {
		return "", fmt.Errorf("requested %d random words", req.NumWords)
	}

	id := raffle.RequestID(uuid.New().String())
	pending := request{
		seed:     seedOf(req.Params.KeyHash, id),
		numWords: req.NumWords,
		delay:    time.Duration(req.Params.RequestConfirmations) * c.BlockInterval,
	}

	c.lock.Lock()
	c.pending[id] = pending
	c.lock.Unlock()

	c.Logger.Infof("Accepted request %s for %d words, subscription %d, %d confirmations",
		id, req.NumWords, req.Params.SubscriptionID, req.Params.RequestConfirmations)

	if c.AutoFulfill {
		c.wg.Add(1)
		go c.fulfillLater(id, pending.delay)
	}

	return id, nil
}

func (c *Coordinator) fulfillLater(id raffle.RequestID, delay time.Duration) {
	defer c.wg.Done()

	select {
	case <-time.After(delay):
	case <-c.stop:
		c.Logger.Debugf("Abandoning request %s, coordinator is closing", id)
		return
	}

	if err := c.FulfillRandomWords(context.Background(), id); err != nil {
		c.Logger.Errorf("Failed fulfilling request %s: %v", id, err)
	}
}

// FulfillRandomWords computes the random words of a pending request and delivers them to the bound handler.
// The error returned is the one of the first delivery.
func (c *Coordinator) FulfillRandomWords(ctx context.Context, id raffle.RequestID) error {
	c.lock.Lock()
	req, exists := c.pending[id]
	handler := c.handler
	c.lock.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownRequest, id)
	}
	if handler == nil {
		return fmt.Errorf("no handler bound to deliver request %s", id)
	}

	sig, err := bls.Sign(suite, c.sk, req.seed)
	if err != nil {
		return fmt.Errorf("failed signing seed of %s: %v", id, err)
	}

	proof := Proof{RequestID: id, Seed: req.seed, Signature: sig, NumWords: req.numWords}

	c.lock.Lock()
	delete(c.pending, id)
	c.fulfilled[id] = proof
	c.lock.Unlock()

	words := Words(sig, req.numWords)
	err = handler.Fulfill(ctx, c.Principal, id, words)
	if err != nil {
		c.Logger.Warnf("Delivery of request %s was rejected: %v", id, err)
	} else {
		c.Logger.Infof("Delivered %d random words for request %s", len(words), id)
	}

	for i := 0; i < c.Redeliver; i++ {
		if dupErr := handler.Fulfill(ctx, c.Principal, id, Words(sig, req.numWords)); dupErr != nil {
			c.Logger.Debugf("Redelivery %d of request %s was rejected: %v", i+1, id, dupErr)
		}
	}

	return err
}

// Proof returns the proof of a fulfilled request
func (c *Coordinator) Proof(id raffle.RequestID) (Proof, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	p, exists := c.fulfilled[id]
	return p, exists
}

// Pending returns whether the request was issued and not yet fulfilled
func (c *Coordinator) Pending(id raffle.RequestID) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	_, exists := c.pending[id]
	return exists
}

// Close abandons undelivered requests and waits for in-flight deliveries
func (c *Coordinator) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.wg.Wait()
}

// Verify checks the proof against the given public key and returns the random words it yields.
func Verify(publicKey []byte, proof Proof) ([]*raffle.Word, error) {
	pk := suite.G2().Point()
	if err := pk.UnmarshalBinary(publicKey); err != nil {
		return nil, fmt.Errorf("invalid public key %s: %v", base64.StdEncoding.EncodeToString(publicKey), err)
	}
	if err := bls.Verify(suite, pk, proof.Seed, proof.Signature); err != nil {
		return nil, fmt.Errorf("signature of request %s isn't sound: %v", proof.RequestID, err)
	}
	return Words(proof.Signature, proof.NumWords), nil
}

// Words derives n random words from a random output
func Words(output []byte, n int) []*raffle.Word {
	res := make([]*raffle.Word, 0, n)
	indexBuff := make([]byte, 8)
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint64(indexBuff, uint64(i))
		h := sha256.New()
		h.Write(output)
		h.Write(indexBuff)
		res = append(res, new(uint256.Int).SetBytes(h.Sum(nil)))
	}
	return res
}

func seedOf(keyHash []byte, id raffle.RequestID) []byte {
	h := sha256.New()
	h.Write(keyHash)
	h.Write([]byte(id))
	return h.Sum(nil)
}
