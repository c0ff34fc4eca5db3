package di

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	domrepo "TrendSentry/internal/domain/repository"
	domsvc "TrendSentry/internal/domain/service"
	"TrendSentry/internal/engine"
	"TrendSentry/internal/handler/api"
	mid "TrendSentry/internal/middleware"
	internalrepo "TrendSentry/internal/repository"
	"TrendSentry/internal/service/binance"
	"TrendSentry/internal/service/ratelimit"
	"TrendSentry/internal/service/telegram"
	"TrendSentry/internal/services/scoring"
	"TrendSentry/internal/usecase"
	pkgcache "TrendSentry/pkg/cache"
	pkgch "TrendSentry/pkg/clickhouse"
	"TrendSentry/pkg/config"
	xhttp "TrendSentry/pkg/http"
	pkgkafka "TrendSentry/pkg/kafka"
	applogger "TrendSentry/pkg/logger"
	"TrendSentry/pkg/metrics"
	"TrendSentry/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideSignalStore creates the ClickHouse signal repository.
func ProvideSignalStore(chClient *pkgch.Client, cfg *config.Config, log *applogger.Logger) domrepo.SignalStore {
	store := internalrepo.NewCHSignalStore(chClient, cfg.ClickHouse.Table)
	store.SetLogger(log)
	return store
}

// ProvideEventPublisher creates the Kafka lifecycle-event publisher, or a
// noop when no broker is configured.
func ProvideEventPublisher(cfg *config.Config) (domrepo.EventPublisher, error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NewNoopEventPublisher(), nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic), nil
}

// ProvideRegimeCache creates the regime classification cache, Redis when
// configured and in-process otherwise.
func ProvideRegimeCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}
	host, port := splitAddr(cfg.Redis.Addr)
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideMarketData creates the Binance REST client.
func ProvideMarketData(cfg *config.Config) domrepo.MarketData {
	return binance.NewClient(
		xhttp.NewClient(),
		ratelimit.New(),
		binance.WithBaseURL(cfg.Binance.BaseURL),
		binance.WithRequestsPerSecond(cfg.Binance.RequestsPerSecond),
	)
}

// ProvidePriceStream creates the Binance WebSocket stream.
func ProvidePriceStream(cfg *config.Config) domrepo.PriceStream {
	return binance.NewStream(cfg.Binance.StreamURL, cfg.Binance.ReconnectDelay, cfg.Binance.PingInterval)
}

// ProvidePriceTable creates the shared live-price table.
func ProvidePriceTable(cfg *config.Config) *engine.PriceTable {
	return engine.NewPriceTable(cfg.Engine.PriceMaxAge)
}

// ProvidePriceCollector wires the stream through the tick pipeline into
// the price table.
func ProvidePriceCollector(
	stream domrepo.PriceStream,
	table *engine.PriceTable,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.PriceCollector {
	pipe := mid.NewTickPipeline(table, m, mid.WithMaxRPS(10))
	return usecase.NewPriceCollector(stream, cfg.Engine.Symbols, m, pipe)
}

// ProvideScorer creates the external scoring client.
func ProvideScorer(cfg *config.Config) domsvc.Scorer {
	return scoring.NewHTTPScorer(cfg.Scorer.URL, cfg.Scorer.Timeout, cfg.Scorer.CacheTTL)
}

// ProvideNotifier creates the Telegram notifier.
func ProvideNotifier(cfg *config.Config, log *applogger.Logger) (*telegram.Notifier, error) {
	return telegram.NewNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
}

// ProvideSignalGate creates the coordinator-side acceptance gate.
func ProvideSignalGate(
	store domrepo.SignalStore,
	scorer domsvc.Scorer,
	notifier *telegram.Notifier,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.SignalGate {
	gateCfg := usecase.DefaultSignalGateConfig()
	if cfg.Engine.Cooldown > 0 {
		gateCfg.Cooldown = cfg.Engine.Cooldown
	}
	if cfg.Engine.ScoreThreshold > 0 {
		gateCfg.ScoreThreshold = cfg.Engine.ScoreThreshold
	}
	return usecase.NewSignalGate(store, scorer, notifier, events, m, gateCfg, log)
}

// ProvidePipeline creates the tiered evaluation pipeline.
func ProvidePipeline(market domrepo.MarketData, c pkgcache.Service, cfg *config.Config, log *applogger.Logger) *engine.Pipeline {
	pipeCfg := engine.DefaultPipelineConfig()
	if cfg.Engine.RegimeCacheTTL > 0 {
		pipeCfg.RegimeCacheTTL = cfg.Engine.RegimeCacheTTL
	}
	return engine.NewPipeline(market, c, pipeCfg, log)
}

// ProvideManager creates the worker pool coordinator.
func ProvideManager(
	cfg *config.Config,
	gate *usecase.SignalGate,
	notifier *telegram.Notifier,
	events domrepo.EventPublisher,
	m domrepo.Metrics,
	log *applogger.Logger,
	pipeline *engine.Pipeline,
	table *engine.PriceTable,
	market domrepo.MarketData,
	store domrepo.SignalStore,
) *engine.Manager {
	mgrCfg := engine.DefaultManagerConfig(cfg.Engine.Symbols)
	if cfg.Engine.GroupSize > 0 {
		mgrCfg.GroupSize = cfg.Engine.GroupSize
	}
	if cfg.Engine.StaggerDelay > 0 {
		mgrCfg.StaggerDelay = cfg.Engine.StaggerDelay
	}
	if cfg.Engine.AnalysisInterval > 0 {
		mgrCfg.AnalysisInterval = cfg.Engine.AnalysisInterval
	}
	if cfg.Engine.MonitorInterval > 0 {
		mgrCfg.MonitorInterval = cfg.Engine.MonitorInterval
	}
	if cfg.Engine.HealthInterval > 0 {
		mgrCfg.HealthInterval = cfg.Engine.HealthInterval
	}
	if cfg.Engine.RestartBudget > 0 {
		mgrCfg.RestartBudget = cfg.Engine.RestartBudget
	}
	if cfg.Engine.RestartBackoff > 0 {
		mgrCfg.RestartBackoff = cfg.Engine.RestartBackoff
	}

	monCfg := engine.DefaultMonitorConfig()
	if cfg.Engine.WarnRiskFraction > 0 {
		monCfg.WarnRiskFraction = cfg.Engine.WarnRiskFraction
	}
	if cfg.Engine.WarnLossPct > 0 {
		monCfg.WarnLossPct = cfg.Engine.WarnLossPct
	}
	if cfg.Engine.ExitLossPct > 0 {
		monCfg.ExitLossPct = cfg.Engine.ExitLossPct
	}
	if cfg.Engine.WarnCooldown > 0 {
		monCfg.WarnCooldown = cfg.Engine.WarnCooldown
	}
	monCfg.EODHour = cfg.Engine.EODHour

	newAnalyzer := func(symbols []string) engine.Task {
		return engine.NewAnalyzer(symbols, pipeline, log)
	}
	newMonitor := func() engine.Task {
		return engine.NewMonitor(store, table, market, events, m, monCfg, log)
	}
	return engine.NewManager(mgrCfg, gate, notifier, events, m, log, newAnalyzer, newMonitor)
}

// ProvideCommandBot creates the Telegram command listener.
func ProvideCommandBot(notifier *telegram.Notifier, manager *engine.Manager, store domrepo.SignalStore, log *applogger.Logger) *telegram.CommandBot {
	return telegram.NewCommandBot(notifier, manager, store, log)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(log *applogger.Logger, store domrepo.SignalStore, manager *engine.Manager, collector *usecase.PriceCollector) *api.SignalsEchoHandler {
	return api.NewSignalsEchoHandler(log, store, manager, collector)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	manager *engine.Manager,
	collector *usecase.PriceCollector,
	bot *telegram.CommandBot,
	store domrepo.SignalStore,
	events domrepo.EventPublisher,
	chClient *pkgch.Client,
	handler *api.SignalsEchoHandler,
) *server.App {
	if kep, ok := events.(*internalrepo.KafkaEventPublisher); ok {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topic + ".logs",
			Publisher:      kep,
		})
	}
	app := server.New(cfg, log, manager, collector, bot, store, events, chClient)
	app.SetHTTPHandler(handler)
	return app
}

func splitAddr(addr string) (string, int) {
	host, portStr, found := strings.Cut(addr, ":")
	if !found {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = 6379
	}
	return host, port
}
