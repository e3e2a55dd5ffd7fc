/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"context"
	"errors"

	"github.com/SmartBFT-Go/staticraffle/internal/config"
	"github.com/SmartBFT-Go/staticraffle/internal/round"
	"github.com/SmartBFT-Go/staticraffle/internal/selection"
	"github.com/SmartBFT-Go/staticraffle/internal/store"
	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/spf13/cobra"
)

var errReadOnly = errors.New("status is read-only")

// offline is the provider of a round that is only inspected
type offline struct{}

func (offline) RequestRandomness(context.Context, raffle.RandomnessRequest) (raffle.RequestID, error) {
	return "", errReadOnly
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the persisted state of the round",
		Long: `Print the persisted state of the round.

The snapshot is checked against the configuration before it is printed.
The store can't be read while a server holds it open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := runStatus(rootOpts)
			if err != nil {
				return err
			}
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Print(view, view.text)
		},
	}
}

func runStatus(opts *RootOptions) (RoundView, error) {
	file, err := config.Load(opts.Config)
	if err != nil {
		return RoundView{}, err
	}
	raffleConfig, err := file.Raffle()
	if err != nil {
		return RoundView{}, err
	}

	zl, err := newLogger(file.Log)
	if err != nil {
		return RoundView{}, err
	}
	defer zl.Sync()

	st, err := store.Open(file.Store.Path)
	if err != nil {
		return RoundView{}, err
	}
	defer st.Close()

	r, err := round.New(raffleConfig, offline{}, selection.Select, zl.Sugar())
	if err != nil {
		return RoundView{}, err
	}

	rawState, err := st.Load()
	if err != nil {
		return RoundView{}, err
	}
	// Restoring from an empty store would persist a fresh round
	if len(rawState) > 0 {
		if err := r.Restore(st); err != nil {
			return RoundView{}, err
		}
	}

	return viewOf(r.Status(), r.Winners()), nil
}
