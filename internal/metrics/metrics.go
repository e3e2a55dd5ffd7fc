/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"errors"

	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "raffle"

// Metrics exports the progress of a round and the calls rejected by it
type Metrics struct {
	State    prometheus.Gauge
	Events   *prometheus.CounterVec
	Calls    *prometheus.CounterVec
	Winners  prometheus.Gauge
	Requests prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "round_state",
			Help:      "Lifecycle state of the round: 0 created, 1 request sent, 2 fulfilled.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events emitted by the round.",
		}, []string{"kind"}),
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Operations invoked on the round by outcome.",
		}, []string{"operation", "outcome"}),
		Winners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "winners",
			Help:      "Number of winners selected.",
		}),
		Requests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "randomness_requests",
			Help:      "Number of randomness requests issued by the round.",
		}),
	}
	reg.MustRegister(m.State, m.Events, m.Calls, m.Winners, m.Requests)
	return m
}

func (m *Metrics) Emit(e raffle.Event) {
	m.Events.WithLabelValues(string(e.Kind)).Inc()
	switch e.Kind {
	case raffle.RoundStarted:
		m.State.Set(float64(raffle.RequestSent))
		m.Requests.Inc()
	case raffle.WinnersSelected:
		m.State.Set(float64(raffle.Fulfilled))
		m.Winners.Set(float64(len(e.Winners)))
	}
}

// ObserveStart counts a start call by its outcome
func (m *Metrics) ObserveStart(_ raffle.Principal, err error) {
	m.Calls.WithLabelValues("start", Outcome(err)).Inc()
}

// ObserveFulfill counts a fulfill call by its outcome
func (m *Metrics) ObserveFulfill(_ raffle.Principal, _ raffle.RequestID, err error) {
	m.Calls.WithLabelValues("fulfill", Outcome(err)).Inc()
}

// Outcome maps the result of an operation to a bounded label value
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, raffle.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, raffle.ErrUnauthorizedCallback):
		return "unauthorized_callback"
	case errors.Is(err, raffle.ErrAlreadyStarted):
		return "already_started"
	case errors.Is(err, raffle.ErrUnknownOrStaleRequest):
		return "unknown_or_stale_request"
	case errors.Is(err, raffle.ErrInsufficientRandomness):
		return "insufficient_randomness"
	case errors.Is(err, raffle.ErrSelectionExhausted):
		return "selection_exhausted"
	default:
		return "error"
	}
}
