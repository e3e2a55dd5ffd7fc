/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package httpapi exposes a round to operators, oracles and observers over HTTP.
//
// Callers authenticate with a bearer token which is mapped to a principal.
// Requests without a known token are served as the anonymous principal,
// which may only read.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type principalKey struct{}

type API struct {
	Logger raffle.Logger
	Round  raffle.Round
	// Tokens maps bearer tokens to principals
	Tokens map[string]raffle.Principal
	// Gatherer, if set, is served on /metrics
	Gatherer prometheus.Gatherer
}

type StatusResponse struct {
	State     string   `json:"state"`
	RequestID string   `json:"request_id,omitempty"`
	Winners   []string `json:"winners"`
}

type FulfillRequest struct {
	RequestID   string   `json:"request_id"`
	RandomWords []string `json:"random_words"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(a.authenticate)

	r.Route("/v1/round", func(r chi.Router) {
		r.Get("/", a.status)
		r.Get("/winners", a.winners)
		r.Post("/start", a.start)
		r.Post("/fulfill", a.fulfill)
	})

	if a.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var principal raffle.Principal
		if token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "); token != "" {
			principal = a.Tokens[token]
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, principal)))
	})
}

func principalOf(r *http.Request) raffle.Principal {
	p, _ := r.Context().Value(principalKey{}).(raffle.Principal)
	return p
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.statusResponse())
}

func (a *API) winners(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string][]string{"winners": hexParticipants(a.Round.Winners())})
}

func (a *API) start(w http.ResponseWriter, r *http.Request) {
	if err := a.Round.Start(r.Context(), principalOf(r)); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusAccepted, a.statusResponse())
}

func (a *API) fulfill(w http.ResponseWriter, r *http.Request) {
	req := FulfillRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("malformed body: %v", err)})
		return
	}

	words, err := ParseWords(req.RandomWords)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if err := a.Round.Fulfill(r.Context(), principalOf(r), raffle.RequestID(req.RequestID), words); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, a.statusResponse())
}

func (a *API) statusResponse() StatusResponse {
	status := a.Round.Status()
	return StatusResponse{
		State:     status.State.String(),
		RequestID: string(status.RequestID),
		Winners:   hexParticipants(a.Round.Winners()),
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, raffle.ErrUnauthorized), errors.Is(err, raffle.ErrUnauthorizedCallback):
		code = http.StatusForbidden
	case errors.Is(err, raffle.ErrAlreadyStarted), errors.Is(err, raffle.ErrUnknownOrStaleRequest):
		code = http.StatusConflict
	case errors.Is(err, raffle.ErrInsufficientRandomness):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		a.Logger.Errorf("Request failed: %v", err)
	}
	a.writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (a *API) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Logger.Warnf("Failed writing response: %v", err)
	}
}

// ParseWords parses decimal or 0x prefixed hexadecimal 256 bit words
func ParseWords(raw []string) ([]*raffle.Word, error) {
	words := make([]*raffle.Word, 0, len(raw))
	for i, s := range raw {
		n, ok := new(big.Int).SetString(s, 0)
		if !ok || n.Sign() < 0 {
			return nil, fmt.Errorf("random word %d (%q) is not a non negative integer", i, s)
		}
		w, overflow := uint256.FromBig(n)
		if overflow {
			return nil, fmt.Errorf("random word %d exceeds 256 bits", i)
		}
		words = append(words, w)
	}
	return words, nil
}

func hexParticipants(participants []raffle.Participant) []string {
	res := make([]string, 0, len(participants))
	for _, p := range participants {
		res = append(res, p.String())
	}
	return res
}
