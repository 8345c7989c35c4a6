// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/phuslu/log"
)

// shutdownContext returns a context that is canceled on the first SIGINT
// or SIGTERM. In-flight files finish or fail as canceled and the partial
// summary is still printed. A second signal exits immediately.
func shutdownContext(parent context.Context, logger *log.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("interrupt received, finishing up (send again to force exit)")
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Error().Str("signal", sig.String()).Msg("second interrupt, exiting")
			os.Exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}
