package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/colisdesk/colisdesk/config"
	"github.com/colisdesk/colisdesk/internal/api/colis_api"
	"github.com/colisdesk/colisdesk/internal/broker/kafka"
	"github.com/colisdesk/colisdesk/internal/cache/rediscache"
	"github.com/colisdesk/colisdesk/internal/integrations/colissimo"
	"github.com/colisdesk/colisdesk/internal/integrations/colissimo/fake"
	"github.com/colisdesk/colisdesk/internal/integrations/colissimo/restv2"
	"github.com/colisdesk/colisdesk/internal/integrations/colissimo/soapv1"
	"github.com/colisdesk/colisdesk/internal/services/parcels"
	"github.com/colisdesk/colisdesk/internal/services/statsrefresh"
	"github.com/colisdesk/colisdesk/internal/storage/pgaudit"
)

type colisAPIApp struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      colisAPIOpts
	svc       *parcels.Service
	api       *colis_api.ColisAPI
	refresher *statsrefresh.Refresher
	consumer  *kafka.Consumer
	closeDB   func()
}

func mustBootstrapColisAPI() *colisAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.ColisDesk.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.ColisDesk.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "colis-api"
	}
	topic := cfg.Kafka.ParcelChangedTopicName
	if topic == "" {
		topic = "parcel.changed"
	}

	soap, rest := mustProviderClients(cfg.Provider)

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	svc := parcels.New(soap, rest).
		WithCache(rc,
			time.Duration(cfg.ColisDesk.StatsTTLSeconds)*time.Second,
			time.Duration(cfg.ColisDesk.ProvincesTTLSeconds)*time.Second).
		WithBroker(producer, topic).
		WithAudit(st).
		WithRateLimiter(rl, int64(cfg.ColisDesk.BulkRateLimitPerMinute)).
		WithPaging(cfg.ColisDesk.ListMaxPages, cfg.ColisDesk.PageFetchConcurrency)

	refreshInterval := time.Duration(cfg.ColisDesk.StatsRefreshIntervalSeconds) * time.Second
	refresher := statsrefresh.New(svc, refreshInterval)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &colisAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: colisAPIOpts{
			httpAddr:      httpAddr,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		svc:       svc,
		api:       colis_api.New(svc).WithAudit(st),
		refresher: refresher,
		consumer:  consumer,
		closeDB:   st.Close,
	}
}

// mustProviderClients wires the real SOAP/REST clients or the in-memory fake.
// Real mode fails closed: no credentials, no start.
func mustProviderClients(cfg config.ProviderConfig) (colissimo.SoapClient, colissimo.RestClient) {
	if cfg.Mode == "fake" {
		p := fake.New()
		return p, p
	}

	if cfg.Username == "" || cfg.Password == "" {
		panic("provider credentials are required (provider.username / provider.password)")
	}
	soap, err := soapv1.New(cfg.SoapURL, cfg.Username, cfg.Password)
	if err != nil {
		panic(fmt.Sprintf("soap client: %v", err))
	}
	rest, err := restv2.New(cfg.RestBaseURL, cfg.Username, cfg.Password)
	if err != nil {
		panic(fmt.Sprintf("rest client: %v", err))
	}
	return soap, rest
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgaudit.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgaudit.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *colisAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *colisAPIApp) Run() error {
	return runColisAPI(a.ctx, a.opts, a.svc, a.api, a.refresher, a.consumer)
}
