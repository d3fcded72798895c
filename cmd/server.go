package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// serve runs srv on ln until ctx ends, then drains in-flight requests for up
// to grace. Request contexts derive from ctx, so a recording still waiting
// for speech ends as Cancelled when shutdown starts.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration) error {
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	// Shutdown returns only once active handlers have finished or grace expires
	err := srv.Shutdown(shutdownCtx)
	<-serveErr
	return err
}
