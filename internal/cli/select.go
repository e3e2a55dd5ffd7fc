/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"fmt"
	"io"

	"github.com/SmartBFT-Go/staticraffle/internal/httpapi"
	"github.com/SmartBFT-Go/staticraffle/internal/selection"
	"github.com/spf13/cobra"
)

// SelectResult is the outcome of running the selection engine on given words
type SelectResult struct {
	Strategy string `json:"strategy"`
	Indices  []int  `json:"indices"`
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		rosterSize  int
		winnerCount int
		strategy    string
	)

	cmd := &cobra.Command{
		Use:   "select <word>...",
		Short: "Map random words to roster indices",
		Long: `Map random words to distinct roster indices in draw order.

Words are decimal or 0x prefixed hexadecimal 256 bit integers.
No configuration file is read.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			selector, err := selection.ForStrategy(selection.Strategy(strategy))
			if err != nil {
				return err
			}
			words, err := httpapi.ParseWords(args)
			if err != nil {
				return err
			}
			indices, err := selector(words, rosterSize, winnerCount)
			if err != nil {
				return err
			}

			res := SelectResult{Strategy: strategy, Indices: indices}
			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Print(res, func(w io.Writer) {
				fmt.Fprintln(w, joinInts(indices))
			})
		},
	}

	cmd.Flags().IntVarP(&rosterSize, "roster-size", "n", 0, "number of participants")
	cmd.Flags().IntVarP(&winnerCount, "winners", "k", 0, "number of winners, defaults to the number of words")
	cmd.Flags().StringVar(&strategy, "strategy", string(selection.Swap), "selection strategy (swap|rehash)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if winnerCount == 0 {
			winnerCount = len(args)
		}
		return nil
	}

	return cmd
}
