/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SmartBFT-Go/staticraffle/example/mock"
	"github.com/SmartBFT-Go/staticraffle/internal/executor"
	"github.com/SmartBFT-Go/staticraffle/internal/metrics"
	"github.com/SmartBFT-Go/staticraffle/internal/round"
	"github.com/SmartBFT-Go/staticraffle/internal/selection"
	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	server   *httptest.Server
	provider *mock.Provider
}

func newFixture(t *testing.T) *fixture {
	logger := zap.NewExample().Sugar()

	config := raffle.Config{
		Roster:      raffle.Roster{{0xaa}, {0xbb}, {0xcc}, {0xdd}},
		WinnerCount: 2,
		Trigger:     "deployer",
		Provider:    "vrf-coordinator",
		ProviderParams: raffle.ProviderParams{
			KeyHash:              []byte{1, 2, 3},
			RequestConfirmations: 3,
		},
	}

	p := &mock.Provider{}
	r, err := round.New(config, p, selection.Select, logger)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r.Events = m

	e := executor.New(r, logger)
	e.Hooks = executor.Hooks{OnStart: m.ObserveStart, OnFulfill: m.ObserveFulfill}
	t.Cleanup(e.Close)

	api := &API{
		Logger: logger,
		Round:  e,
		Tokens: map[string]raffle.Principal{
			"deployer-token": "deployer",
			"oracle-token":   "vrf-coordinator",
		},
		Gatherer: reg,
	}
	s := httptest.NewServer(api.Routes())
	t.Cleanup(s.Close)

	return &fixture{server: s, provider: p}
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	res := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return resp.StatusCode, res
}

func TestStartAndFulfill(t *testing.T) {
	f := newFixture(t)

	code, res := f.do(t, http.MethodGet, "/v1/round", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "created", res["state"])

	code, res = f.do(t, http.MethodPost, "/v1/round/start", "deployer-token", nil)
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "request-sent", res["state"])
	assert.Equal(t, "request-1", res["request_id"])
	require.Len(t, f.provider.Requests, 1)
	assert.Equal(t, 2, f.provider.Requests[0].NumWords)

	// 5 mod 4 = 1, then 0x101 mod 3 = 2 lands on the last participant
	code, res = f.do(t, http.MethodPost, "/v1/round/fulfill", "oracle-token", FulfillRequest{
		RequestID:   "request-1",
		RandomWords: []string{"5", "0x101"},
	})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "fulfilled", res["state"])
	assert.Equal(t, []interface{}{"0xbb", "0xdd"}, res["winners"])

	code, res = f.do(t, http.MethodGet, "/v1/round/winners", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{"0xbb", "0xdd"}, res["winners"])
}

func TestRejections(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/v1/round/start", "", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(t, http.MethodPost, "/v1/round/start", "oracle-token", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(t, http.MethodPost, "/v1/round/start", "deployer-token", nil)
	assert.Equal(t, http.StatusAccepted, code)

	code, _ = f.do(t, http.MethodPost, "/v1/round/start", "deployer-token", nil)
	assert.Equal(t, http.StatusConflict, code)

	fulfill := FulfillRequest{RequestID: "request-1", RandomWords: []string{"1", "2"}}

	code, _ = f.do(t, http.MethodPost, "/v1/round/fulfill", "deployer-token", fulfill)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(t, http.MethodPost, "/v1/round/fulfill", "oracle-token", FulfillRequest{RequestID: "request-2", RandomWords: []string{"1", "2"}})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = f.do(t, http.MethodPost, "/v1/round/fulfill", "oracle-token", FulfillRequest{RequestID: "request-1", RandomWords: []string{"1"}})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, res := f.do(t, http.MethodPost, "/v1/round/fulfill", "oracle-token", FulfillRequest{RequestID: "request-1", RandomWords: []string{"-1", "2"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, res["error"], "random word 0")

	code, res = f.do(t, http.MethodGet, "/v1/round", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "request-sent", res["state"])
	assert.Empty(t, res["winners"])

	code, _ = f.do(t, http.MethodPost, "/v1/round/fulfill", "oracle-token", fulfill)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodPost, "/v1/round/fulfill", "oracle-token", fulfill)
	assert.Equal(t, http.StatusConflict, code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/v1/round/start", "", nil)
	assert.Equal(t, http.StatusForbidden, code)

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	buff := &bytes.Buffer{}
	_, err = buff.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buff.String(), `raffle_calls_total{operation="start",outcome="unauthorized"} 1`)
	assert.Contains(t, buff.String(), "raffle_round_state 0")
}

func TestParseWords(t *testing.T) {
	words, err := ParseWords([]string{"0", "42", "0x2a", "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"})
	require.NoError(t, err)
	require.Len(t, words, 4)
	assert.True(t, words[0].IsZero())
	assert.Equal(t, uint64(42), words[1].Uint64())
	assert.Equal(t, uint64(42), words[2].Uint64())
	assert.Equal(t, 256, words[3].BitLen())

	_, err = ParseWords([]string{"0x1" + strings.Repeat("0", 64)})
	assert.EqualError(t, err, "random word 0 exceeds 256 bits")

	_, err = ParseWords([]string{"1", "nope"})
	assert.EqualError(t, err, `random word 1 ("nope") is not a non negative integer`)
}
