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
	"golang.org/x/sync/errgroup"

	"github.com/sancovp/metasync/internal/config"
	"github.com/sancovp/metasync/internal/eventbus"
	"github.com/sancovp/metasync/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Starts the HTTP server that receives GitHub webhook deliveries and
dispatches them through the event bus: source issue events propagate to
wrappers, wrapper archive labels close sources, and status transitions
receive advisory validation comments.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, closeMapping, err := buildEngine()
		if err != nil {
			return err
		}
		defer func() { _ = closeMapping() }()

		metaRepo, err := config.MetaRepo()
		if err != nil {
			return err
		}

		bus := eventbus.New()
		bus.Register(&eventbus.ValidatorHandler{Store: engine.Store})
		bus.Register(&eventbus.SyncHandler{Engine: engine})
		bus.Register(&eventbus.ArchiveHandler{Engine: engine})

		var secret []byte
		if s := config.GetString(config.KeyWebhookSecret); s != "" {
			secret = []byte(s)
		} else {
			fmt.Fprintln(os.Stderr, "warning: webhook.secret is not set, signature validation is disabled")
		}

		server := webhook.NewServer(webhook.ServerConfig{
			Bus:      bus,
			MetaRepo: metaRepo,
			Secret:   secret,
		})

		addr := config.GetString(config.KeyWebhookAddr)
		fmt.Fprintf(os.Stderr, "metasync serving on %s (meta repo %s)\n", addr, metaRepo)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}
