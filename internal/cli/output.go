/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
)

// RoundView is what the commands report about a round
type RoundView struct {
	State          string   `json:"state"`
	RequestID      string   `json:"request_id,omitempty"`
	Winners        []string `json:"winners"`
	WinnerIndices  []int    `json:"winner_indices"`
	PublicKey      string   `json:"public_key,omitempty"`
	ProofSignature string   `json:"proof_signature,omitempty"`
	Verified       *bool    `json:"verified,omitempty"`
}

func viewOf(status raffle.Status, winners []raffle.Participant) RoundView {
	v := RoundView{
		State:         status.State.String(),
		RequestID:     string(status.RequestID),
		Winners:       make([]string, 0, len(winners)),
		WinnerIndices: status.Winners,
	}
	if v.WinnerIndices == nil {
		v.WinnerIndices = []int{}
	}
	for _, w := range winners {
		v.Winners = append(v.Winners, w.String())
	}
	return v
}

func (v RoundView) text(w io.Writer) {
	fmt.Fprintf(w, "state:   %s\n", v.State)
	if v.RequestID != "" {
		fmt.Fprintf(w, "request: %s\n", v.RequestID)
	}
	for i, winner := range v.Winners {
		fmt.Fprintf(w, "winner %d: %s (participant %d)\n", i+1, winner, v.WinnerIndices[i])
	}
	if v.Verified != nil {
		fmt.Fprintf(w, "verified: %t\n", *v.Verified)
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

func (f *OutputFormatter) Print(v interface{}, text func(io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(f.Writer)
	return nil
}

func joinInts(ints []int) string {
	s := make([]string, 0, len(ints))
	for _, n := range ints {
		s = append(s, fmt.Sprint(n))
	}
	return strings.Join(s, " ")
}
