package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/colisdesk/colisdesk/internal/api/colis_api"
	"github.com/colisdesk/colisdesk/internal/broker/messages"
	"github.com/colisdesk/colisdesk/internal/services/parcels"
	"github.com/colisdesk/colisdesk/internal/services/statsrefresh"
)

type colisAPIOpts struct {
	httpAddr string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runColisAPI(ctx context.Context, opts colisAPIOpts, svc *parcels.Service, api *colis_api.ColisAPI, refresher *statsrefresh.Refresher, consumer kafkaConsumer) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: api.Routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	httpErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", lis.Addr().String())
		httpErr <- srv.Serve(lis)
	}()

	if refresher != nil {
		go func() {
			_ = refresher.Run(ctx)
		}()
	}

	if consumer != nil {
		go func() {
			slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
			_ = consumer.Consume(ctx, func(_key, value []byte) error {
				var m messages.ParcelChanged
				if err := json.Unmarshal(value, &m); err != nil {
					return err
				}
				// Чужая мутация: локальный снапшот статистики устарел.
				svc.InvalidateStats(ctx)
				if refresher != nil {
					refresher.Trigger()
				}
				return nil
			})
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}
