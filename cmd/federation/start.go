package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/acme/autocert"

	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/federatedforum/fedcore/internal/log"
	"github.com/federatedforum/fedcore/internal/stats"
	"github.com/federatedforum/fedcore/internal/webfinger"
	"github.com/federatedforum/fedcore/internal/webserver"
)

var listenAddr string

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the shared inbox, dispatcher, send manager, and stats collector together",
		RunE:  runStart,
	}
	cmd.Flags().StringVar(&listenAddr, "listen", ":8080", "address the external HTTP surface listens on")
	return cmd
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.inbox.Start(); err != nil {
		return fmt.Errorf("start inbox manager: %w", err)
	}
	defer a.inbox.Stop()

	if err := a.sender.Start(ctx); err != nil {
		return fmt.Errorf("start send manager: %w", err)
	}
	defer a.sender.Stop()

	collector := stats.New(a.store, a.cfg.InstanceRecheckInterval, a.cfg.DeadInstanceThreshold)
	go collector.Start(ctx)
	defer collector.Stop()

	mux := webserver.Mux(webserver.Deps{
		Store:  a.store,
		Inbox:  a.inbox,
		Host:   a.cfg.Host,
		Lookup: localActorLookup(a.store, a.cfg.Host),
	})

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      mux,
		ReadTimeout:  a.cfg.InboxRequestTimeout,
		WriteTimeout: a.cfg.InboxRequestTimeout,
	}

	serve := srv.ListenAndServe
	if a.cfg.AutocertEnabled {
		mgr := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(a.cfg.Host),
			Cache:      autocert.DirCache(a.cfg.AutocertCacheDir),
		}
		srv.TLSConfig = mgr.TLSConfig()
		serve = func() error { return srv.ListenAndServeTLS("", "") }
		log.Infof("federation: autocert enabled for %s, caching to %s", a.cfg.Host, a.cfg.AutocertCacheDir)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("federation: listening on %s", listenAddr)
		if err := serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// localActorLookup implements webfinger.ActorLookup by username/host
// equality against the actor table (§4.2's webfinger_resolve mirror,
// but answering rather than issuing the query).
func localActorLookup(store db.DB, host string) webfinger.ActorLookup {
	return func(ctx context.Context, username string, isCommunity bool) (string, error) {
		actor, err := store.GetActorByUsernameDomain(ctx, username, host)
		if err != nil {
			return "", err
		}
		wantCommunity := actor.Type == gtsmodel.ActorCommunity
		if wantCommunity != isCommunity || !actor.Local {
			return "", db.ErrNoEntries
		}
		return actor.URI, nil
	}
}
