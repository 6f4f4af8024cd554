package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"SuperAlgo/internal/domain/repository"
	domsvc "SuperAlgo/internal/domain/service"
	"SuperAlgo/internal/handler/api"
	mid "SuperAlgo/internal/middleware"
	internalrepo "SuperAlgo/internal/repository"
	"SuperAlgo/internal/service/alpaca"
	"SuperAlgo/internal/service/finnhub"
	svcmetrics "SuperAlgo/internal/service/metrics"
	"SuperAlgo/internal/service/notify"
	"SuperAlgo/internal/service/ratelimit"
	"SuperAlgo/internal/service/sim"
	"SuperAlgo/internal/service/yahoo"
	"SuperAlgo/internal/services/analytics"
	"SuperAlgo/internal/services/features"
	"SuperAlgo/internal/services/model"
	"SuperAlgo/internal/services/sentiment"
	"SuperAlgo/internal/usecase"
	"SuperAlgo/pkg/cache"
	pkgch "SuperAlgo/pkg/clickhouse"
	"SuperAlgo/pkg/config"
	xhttp "SuperAlgo/pkg/http"
	pkgkafka "SuperAlgo/pkg/kafka"
	applogger "SuperAlgo/pkg/logger"
	"SuperAlgo/pkg/metrics"
	"SuperAlgo/pkg/queue"
	"SuperAlgo/pkg/server"
	"SuperAlgo/pkg/util"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("mode", cfg.Mode), applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the registry served on the metrics route.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	svcmetrics.Register(reg)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

func ProvideSession(cfg *config.Config) (*util.Session, error) {
	return cfg.Session()
}

// ProvideCache creates the state backend.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.State.Backend != "redis" {
		return cache.NewMemoryCache(), nil
	}
	r := cfg.State.Redis
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(r.Host),
		cache.WithRedisPort(r.Port),
		cache.WithRedisPassword(r.Password),
		cache.WithRedisDB(r.DB),
		cache.WithRedisPrefix(r.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis state backend: %w", err)
	}
	return c, nil
}

func ProvideStateStore(c cache.Service, cfg *config.Config) repository.StateStore {
	return internalrepo.NewCacheStateStore(c, cfg.State.TTL)
}

// ProvideAlpacaClient builds the alpaca REST client. Construction does no I/O.
func ProvideAlpacaClient(cfg *config.Config, log *applogger.Logger) *alpaca.Client {
	rate := cfg.Broker.RatePerSec
	return alpaca.New(cfg.BrokerURL(), cfg.Broker.DataURL, cfg.Broker.APIKey, cfg.Broker.SecretKey,
		alpaca.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Broker.Timeout))),
		alpaca.WithRateLimiter(ratelimit.New(rate, rate)),
		alpaca.WithFillPolling(cfg.Broker.PollInterval, cfg.Broker.FillTimeout),
		alpaca.WithTimeframe(repository.Timeframe(cfg.Trading.Timeframe)),
		alpaca.WithLogger(log.With(applogger.String("component", "alpaca"))),
	)
}

func ProvideBroker(cfg *config.Config, client *alpaca.Client) repository.Broker {
	if cfg.Broker.Type == "sim" {
		return sim.NewBroker(cfg.Broker.SimStartingCash)
	}
	return client
}

func ProvideMarketData(cfg *config.Config, client *alpaca.Client) repository.MarketData {
	if cfg.MarketData.Type == "yahoo" {
		return yahoo.NewSource(repository.Timeframe(cfg.Trading.Timeframe), 0)
	}
	return client
}

func ProvideModelFactory(cfg *config.Config) domsvc.ModelFactory {
	m := cfg.Model
	if m.Type == "remote" {
		return analytics.HTTPModelFactory(m.ServiceURL, m.Timeout, m.MinConfidence)
	}
	return model.Factory(
		model.WithLearningRate(m.LearningRate),
		model.WithEpochs(m.Epochs),
		model.WithL2(m.L2),
		model.WithMinConfidence(m.MinConfidence),
	)
}

func ProvideSentiment(cfg *config.Config, log *applogger.Logger) domsvc.SentimentScorer {
	if !cfg.Sentiment.Enabled {
		return sentiment.Neutral{}
	}
	sources := make([]sentiment.Source, 0, len(cfg.Sentiment.Sources))
	for _, s := range cfg.Sentiment.Sources {
		sources = append(sources, sentiment.Source{Name: s.Name, URL: s.URL, Params: s.Query})
	}
	return sentiment.NewCombined(sources, cfg.Sentiment.Timeout,
		sentiment.WithCacheTTL(cfg.Sentiment.CacheTTL),
		sentiment.WithLogger(log.With(applogger.String("component", "sentiment"))),
	)
}

// ProvideAlertQueue returns nil unless the redis alert outbox is enabled.
func ProvideAlertQueue(cfg *config.Config, c cache.Service, log *applogger.Logger) (*queue.RedisQueue, error) {
	if !cfg.Alert.Queue.Enabled || cfg.Alert.WebhookURL == "" {
		return nil, nil
	}
	rc, ok := c.(*cache.RedisCache)
	if !ok {
		return nil, fmt.Errorf("alert queue requires the redis state backend")
	}
	q := cfg.Alert.Queue
	return queue.NewRedisQueue(log.With(applogger.String("component", "alert-queue")), queue.Config{
		Workers:    q.Workers,
		RetryLimit: q.RetryLimit,
		RetryDelay: q.RetryDelay,
	}, rc.Client(), queue.WithKeyPrefix(cfg.State.Redis.Prefix+":alerts")), nil
}

// ProvideAlerter picks webhook delivery, optionally through the outbox, or
// log-only alerts when no webhook is configured.
func ProvideAlerter(cfg *config.Config, q *queue.RedisQueue, log *applogger.Logger) domsvc.Alerter {
	if cfg.Alert.WebhookURL == "" {
		return notify.NewLogAlerter(log)
	}
	hook := notify.NewWebhook(cfg.Alert.WebhookURL, cfg.Alert.Timeout)
	if q == nil {
		return hook
	}
	q.RegisterJob(notify.NewAlertJob(hook))
	return notify.NewQueued(q, hook, log)
}

// ProvideClickHouseClient creates a ClickHouse client when the trade sink is enabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.TradeLog.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	table := cfg.ClickHouse.Database + "." + cfg.TradeLog.ClickHouse.Table
	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}, internalrepo.ClickHouseTradeSchema(table)...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when the trade topic is enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.TradeLog.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePostgresPool connects to Postgres when the trade table is enabled.
func ProvidePostgresPool(cfg *config.Config) (*pgxpool.Pool, error) {
	if !cfg.TradeLog.Postgres.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return internalrepo.NewPostgresPool(ctx, cfg.TradeLog.Postgres.DSN, 4)
}

// ProvideTradeLog builds the CSV primary and fans out to every enabled
// secondary sink.
func ProvideTradeLog(
	cfg *config.Config,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	pool *pgxpool.Pool,
	m repository.Metrics,
	log *applogger.Logger,
) (repository.TradeLog, error) {
	primary, err := internalrepo.NewCSVTradeLog(cfg.TradeLog.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("csv trade log: %w", err)
	}

	var secondaries []internalrepo.NamedTradeLog
	if chClient != nil {
		table := cfg.ClickHouse.Database + "." + cfg.TradeLog.ClickHouse.Table
		secondaries = append(secondaries, internalrepo.NamedTradeLog{Name: "clickhouse", Log: internalrepo.NewClickHouseTradeLog(chClient.DB(), table)})
	}
	if pool != nil {
		pg := internalrepo.NewPostgresTradeLog(pool, cfg.TradeLog.Postgres.Table)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := pg.EnsureSchema(ctx)
		cancel()
		if err != nil {
			_ = primary.Close()
			return nil, fmt.Errorf("postgres trade schema: %w", err)
		}
		secondaries = append(secondaries, internalrepo.NamedTradeLog{Name: "postgres", Log: pg})
	}
	if producer != nil {
		secondaries = append(secondaries, internalrepo.NamedTradeLog{Name: "kafka", Log: internalrepo.NewKafkaTradeLog(producer, cfg.TradeLog.Kafka.Topic)})
	}
	if len(secondaries) == 0 {
		return primary, nil
	}
	return internalrepo.NewFanoutTradeLog(primary, m, log.With(applogger.String("component", "trade-log")), secondaries...), nil
}

func ProvidePriceBook() *usecase.PriceBook {
	return usecase.NewPriceBook()
}

// ProvidePriceCollector returns nil unless the finnhub stream is enabled.
func ProvidePriceCollector(cfg *config.Config, book *usecase.PriceBook, m repository.Metrics, log *applogger.Logger) *usecase.PriceCollector {
	if !cfg.PriceStream.Enabled {
		return nil
	}
	ps := cfg.PriceStream
	l := log.With(applogger.String("component", "price-stream"))
	stream := finnhub.New(ps.APIKey, ps.WebSocketURL, cfg.Trading.Symbols, ps.ReconnectDelay, ps.PingInterval, l)
	filter := mid.NewTickFilter(m, mid.WithMaxRPS(20), mid.WithTracked(cfg.Trading.Symbols))
	return usecase.NewPriceCollector(stream, book, filter, m, l)
}

func ProvideDailyLossGuard(cfg *config.Config, m repository.Metrics, store repository.StateStore, alerter domsvc.Alerter, log *applogger.Logger) *usecase.DailyLossGuard {
	return usecase.NewDailyLossGuard(cfg.MaxDailyLoss(), m,
		usecase.WithGuardStore(store),
		usecase.WithGuardAlerter(alerter),
		usecase.WithGuardLogger(log.With(applogger.String("component", "daily-loss-guard"))),
	)
}

func ProvideExecutionGateway(broker repository.Broker, tradeLog repository.TradeLog, m repository.Metrics, log *applogger.Logger) *usecase.ExecutionGateway {
	return usecase.NewExecutionGateway(broker, tradeLog, m, log.With(applogger.String("component", "gateway")))
}

// ProvideScheduler builds one controller, evaluator and model per symbol.
func ProvideScheduler(
	cfg *config.Config,
	session *util.Session,
	broker repository.Broker,
	data repository.MarketData,
	factory domsvc.ModelFactory,
	scorer domsvc.SentimentScorer,
	book *usecase.PriceBook,
	gateway *usecase.ExecutionGateway,
	guard *usecase.DailyLossGuard,
	store repository.StateStore,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.Scheduler {
	params := usecase.RiskParams{
		CashBuffer:      cfg.Risk.CashBuffer,
		StopLossPct:     cfg.Risk.StopLossPct,
		TakeProfitPct:   cfg.Risk.TakeProfitPct,
		Cooldown:        cfg.Risk.Cooldown,
		MaxTradesPerDay: cfg.Risk.MaxTradesPerDay,
		TrackedSymbols:  len(cfg.Trading.Symbols),
	}
	pipeline := features.NewPipeline(features.WithWindow(cfg.Trading.FeatureWindow))

	evalOpts := []usecase.EvaluatorOption{usecase.WithSentiment(scorer)}
	if cfg.PriceStream.Enabled {
		evalOpts = append(evalOpts, usecase.WithPriceSource(book, cfg.PriceStream.MaxAge))
	}

	tasks := make([]usecase.SymbolTask, 0, len(cfg.Trading.Symbols))
	for _, raw := range cfg.Trading.Symbols {
		symbol := strings.ToUpper(raw)
		ctrl := usecase.NewRiskController(symbol, params, session, broker, gateway, guard, m,
			usecase.WithStateStore(store),
			usecase.WithControllerLogger(log.With(applogger.String("component", "risk"))),
		)
		view := usecase.NewEvaluator(symbol, cfg.Trading.MarketSymbol, data, pipeline, factory(symbol), m, evalOpts...)
		tasks = append(tasks, usecase.SymbolTask{Controller: ctrl, View: view})
	}
	return usecase.NewScheduler(tasks, cfg.Trading.Interval, session, guard, m,
		usecase.WithTickTimeout(cfg.TickTimeout()),
		usecase.WithSchedulerLogger(log.With(applogger.String("component", "scheduler"))),
	)
}

// ProvideHTTPServer serves the status routes and, when enabled, metrics.
func ProvideHTTPServer(cfg *config.Config, scheduler *usecase.Scheduler, collector *usecase.PriceCollector, reg *prometheus.Registry, log *applogger.Logger) *xhttp.Server {
	var stream api.StreamStatus
	if collector != nil {
		stream = collector
	}
	l := log.With(applogger.String("component", "http"))
	h := api.NewStatusHandler(cfg.Mode, scheduler, scheduler.Guard(), stream, l)

	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg))
	}
	return xhttp.NewServer(h, l, opts...)
}

// ProvideApp creates the application server. Resources close in the order
// listed after the scheduler and listeners stop; the trade log owns its
// postgres pool and kafka producer.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	scheduler *usecase.Scheduler,
	store repository.StateStore,
	collector *usecase.PriceCollector,
	alerts *queue.RedisQueue,
	httpServer *xhttp.Server,
	tradeLog repository.TradeLog,
	chClient *pkgch.Client,
	c cache.Service,
) *server.App {
	opts := []server.Option{
		server.WithHTTPServer(httpServer),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithClosers(server.Closer{Name: "trade log", Close: tradeLog.Close}),
	}
	if collector != nil {
		opts = append(opts, server.WithPriceCollector(collector))
	}
	if alerts != nil {
		opts = append(opts, server.WithAlertQueue(alerts))
	}
	if chClient != nil {
		opts = append(opts, server.WithClosers(server.Closer{Name: "clickhouse", Close: chClient.Close}))
	}
	opts = append(opts, server.WithClosers(server.Closer{Name: "cache", Close: c.Close}))
	return server.New(log, scheduler, store, opts...)
}
