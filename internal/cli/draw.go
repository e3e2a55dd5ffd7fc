/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/SmartBFT-Go/staticraffle/internal/config"
	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/spf13/cobra"
)

// NewDrawCommand creates the draw command.
func NewDrawCommand(rootOpts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Run a whole round in process and print the verified winners",
		Long: `Run a whole round in process.

The round is started by its trigger and fulfilled by a local coordinator.
Nothing is persisted. The winners are recomputed from the coordinator's
proof before they are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			view, err := runDraw(ctx, rootOpts)
			if err != nil {
				return err
			}
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Print(view, view.text)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "how long to wait for the randomness")

	return cmd
}

// fulfillments signals the selection of winners without ever blocking the round
type fulfillments chan raffle.Event

func (f fulfillments) Emit(e raffle.Event) {
	if e.Kind != raffle.WinnersSelected {
		return
	}
	select {
	case f <- e:
	default:
	}
}

func runDraw(ctx context.Context, opts *RootOptions) (RoundView, error) {
	file, err := config.Load(opts.Config)
	if err != nil {
		return RoundView{}, err
	}
	autoFulfill := true
	file.Provider.AutoFulfill = &autoFulfill

	zl, err := newLogger(file.Log)
	if err != nil {
		return RoundView{}, err
	}
	defer zl.Sync()

	done := make(fulfillments, 1)
	n, err := assemble(file, zl.Sugar(), nil, done)
	if err != nil {
		return RoundView{}, err
	}
	defer n.close()

	if err := n.executor.Start(ctx, n.config.Trigger); err != nil {
		return RoundView{}, err
	}

	select {
	case <-done:
	case <-ctx.Done():
		return RoundView{}, fmt.Errorf("randomness did not arrive: %w", ctx.Err())
	}

	return n.verify(n.executor.Status())
}
