/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"crypto/rand"
	"fmt"

	"github.com/SmartBFT-Go/staticraffle/internal/config"
	"github.com/SmartBFT-Go/staticraffle/internal/events"
	"github.com/SmartBFT-Go/staticraffle/internal/executor"
	"github.com/SmartBFT-Go/staticraffle/internal/metrics"
	"github.com/SmartBFT-Go/staticraffle/internal/oracle"
	"github.com/SmartBFT-Go/staticraffle/internal/round"
	"github.com/SmartBFT-Go/staticraffle/internal/selection"
	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// node is a round wired to the local coordinator, its executor and metrics
type node struct {
	logger      *zap.SugaredLogger
	config      raffle.Config
	selector    raffle.Selector
	coordinator *oracle.Coordinator
	round       *round.Round
	executor    *executor.Executor
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
}

func newLogger(c config.Log) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// assemble builds a node from the configuration file.
// If persister is not nil the round continues from the state it holds.
func assemble(file *config.File, logger *zap.SugaredLogger, persister raffle.Persister, sinks ...raffle.EventSink) (*node, error) {
	raffleConfig, err := file.Raffle()
	if err != nil {
		return nil, err
	}

	selector, err := selection.ForStrategy(selection.Strategy(file.Selection.Strategy))
	if err != nil {
		return nil, err
	}

	coordinator := oracle.NewCoordinator(raffleConfig.Provider, logger.Named("oracle"), rand.Reader)
	coordinator.BlockInterval = file.Provider.BlockInterval
	coordinator.AutoFulfill = *file.Provider.AutoFulfill
	coordinator.Redeliver = file.Provider.Redeliver

	r, err := round.New(raffleConfig, coordinator, selector, logger.Named("round"))
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	r.Events = append(events.Fanout{events.Log{Logger: logger.Named("events")}, m}, sinks...)

	if persister != nil {
		if err := r.Restore(persister); err != nil {
			return nil, err
		}
	}

	status := r.Status()
	m.State.Set(float64(status.State))
	if status.State == raffle.RequestSent {
		logger.Warnf("Round awaits request %s issued by a previous run, only its provider can fulfill it", status.RequestID)
	}

	e := executor.New(r, logger.Named("executor"))
	e.Hooks = executor.Hooks{OnStart: m.ObserveStart, OnFulfill: m.ObserveFulfill}
	coordinator.Bind(e)

	return &node{
		logger:      logger,
		config:      raffleConfig,
		selector:    selector,
		coordinator: coordinator,
		round:       r,
		executor:    e,
		registry:    registry,
		metrics:     m,
	}, nil
}

// close stops deliveries first, as in-flight deliveries still need the executor
func (n *node) close() {
	n.coordinator.Close()
	n.executor.Close()
}

// verify recomputes the winners from the coordinator's proof of the fulfilled request
func (n *node) verify(status raffle.Status) (RoundView, error) {
	view := viewOf(status, n.executor.Winners())

	proof, exists := n.coordinator.Proof(status.RequestID)
	if !exists {
		return view, fmt.Errorf("no proof for request %s", status.RequestID)
	}
	publicKey, err := n.coordinator.PublicKey()
	if err != nil {
		return view, err
	}

	words, err := oracle.Verify(publicKey, proof)
	if err != nil {
		return view, err
	}
	winners, err := n.selector(words, len(n.config.Roster), n.config.WinnerCount)
	if err != nil {
		return view, err
	}

	verified := joinInts(winners) == joinInts(status.Winners)
	view.Verified = &verified
	view.PublicKey = fmt.Sprintf("%x", publicKey)
	view.ProofSignature = fmt.Sprintf("%x", proof.Signature)
	return view, nil
}
