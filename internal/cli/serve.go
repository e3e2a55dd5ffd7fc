/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SmartBFT-Go/staticraffle/internal/config"
	"github.com/SmartBFT-Go/staticraffle/internal/httpapi"
	"github.com/SmartBFT-Go/staticraffle/internal/store"
	raffle "github.com/SmartBFT-Go/staticraffle/pkg"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the round over HTTP with a local randomness coordinator",
		Long: `Serve the round over HTTP.

The round state is kept in the configured store, so a restarted server
continues the round where it was left. The local coordinator fulfills
requests after request_confirmations block intervals.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, rootOpts, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides api.listen")

	return cmd
}

func runServe(ctx context.Context, opts *RootOptions, listen string) error {
	file, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if listen != "" {
		file.API.Listen = listen
	}

	zl, err := newLogger(file.Log)
	if err != nil {
		return err
	}
	defer zl.Sync()
	logger := zl.Sugar()

	st, err := store.Open(file.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := assemble(file, logger, st)
	if err != nil {
		return err
	}
	defer n.close()

	tokens := make(map[string]raffle.Principal, len(file.API.Tokens))
	for token, principal := range file.API.Tokens {
		tokens[token] = raffle.Principal(principal)
	}
	api := &httpapi.API{
		Logger:   logger.Named("api"),
		Round:    n.executor,
		Tokens:   tokens,
		Gatherer: n.registry,
	}

	server := &http.Server{
		Addr:              file.API.Listen,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", file.API.Listen)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
