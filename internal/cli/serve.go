package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fortuna/scorebook/internal/api/rest"
	"github.com/fortuna/scorebook/internal/api/websocket"
	"github.com/fortuna/scorebook/internal/backfill"
	"github.com/fortuna/scorebook/internal/publisher"
	"github.com/fortuna/scorebook/internal/store"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var restPort, wsPort string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored records over HTTP and run batches submitted to the API",
		Long: `Serve the read API over PostgreSQL and accept scorecard batches on
POST /api/v1/runs. When Redis is configured, batch progress is also
streamed to websocket clients on /ws/progress.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if restPort != "" {
				a.cfg.API.RESTPort = restPort
			}
			if wsPort != "" {
				a.cfg.API.WSPort = wsPort
			}
			return serve(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVar(&restPort, "rest-port", "", "REST API port (overrides config)")
	cmd.Flags().StringVar(&wsPort, "ws-port", "", "WebSocket port (overrides config)")

	return cmd
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	if !cfg.UsesPostgres() {
		return errors.New("serve reads from PostgreSQL: set output.sink to postgres or both")
	}

	log.WithField("version", serviceVersion).Infof("starting %s", serviceName)

	var done cleanup
	defer done.run()

	sink, db, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()
	log.Info("connected to postgres, migrations applied")

	rc := openCache(ctx, cfg, &done)
	ingester, err := newIngester(cfg, rc, &done)
	if err != nil {
		return err
	}

	reporters := []backfill.Reporter{newConsoleReporter(nil)}
	if rc != nil {
		reporters = append(reporters, publisher.NewRedisPublisher(rc.Client(), cfg.Redis.Stream))
	}

	runService := backfill.NewService(
		backfill.NewRepository(db),
		backfill.NewRunner(ingester, sink),
		cfg.Batch.MaxRetries,
		reporters...,
	)
	runService.Start()
	log.Info("batch service started")

	restServer := rest.NewServer(cfg.API.RESTPort, store.NewPostgresSink(db), runService)
	go func() {
		log.WithField("port", cfg.API.RESTPort).Info("REST API listening")
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("REST server error")
		}
	}()

	var wsServer *websocket.Server
	tailCtx, stopTail := context.WithCancel(ctx)
	defer stopTail()

	if rc != nil {
		wsServer = websocket.NewServer(rc.Client(), cfg.Redis.Stream)
		go func() {
			if err := wsServer.Start(cfg.API.WSPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("WebSocket server error")
			}
		}()
		go func() {
			if err := wsServer.TailStream(tailCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("stream tail stopped")
			}
		}()
	} else {
		log.Info("redis not configured, progress feed disabled")
	}

	<-ctx.Done()
	log.Info("shutting down")
	stopTail()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("REST server shutdown error")
	}
	if wsServer != nil {
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("WebSocket server shutdown error")
		}
	}
	if err := runService.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("batch service shutdown error")
	}

	log.Infof("%s stopped", serviceName)
	return nil
}
