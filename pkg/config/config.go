package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SuperAlgo/pkg/util"
)

const (
	ModePaper = "paper"
	ModeLive  = "live"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Mode        string `yaml:"mode" default:"paper" validate:"oneof=paper live"`

	Trading struct {
		Symbols       []string      `yaml:"symbols" default:"[\"TSLA\",\"AAPL\",\"AMD\"]" validate:"required,min=1,dive,required"`
		MarketSymbol  string        `yaml:"market_symbol" default:"SPY" validate:"required"`
		Timeframe     string        `yaml:"timeframe" default:"1Min" validate:"oneof=1Min 5Min 15Min"`
		Interval      time.Duration `yaml:"interval" default:"1m" validate:"gt=0"`
		TickTimeout   time.Duration `yaml:"tick_timeout"`
		FeatureWindow int           `yaml:"feature_window" default:"30" validate:"gte=2"`
		Window        struct {
			Timezone string   `yaml:"timezone" default:"America/New_York"`
			Open     string   `yaml:"open" default:"09:30"`
			Close    string   `yaml:"close" default:"16:00"`
			Weekdays []string `yaml:"weekdays"`
		} `yaml:"window"`
	} `yaml:"trading"`

	Risk struct {
		CashBuffer      float64       `yaml:"cash_buffer" default:"0.1" validate:"gte=0,lt=1"`
		StopLossPct     float64       `yaml:"stop_loss_pct" default:"0.02" validate:"gt=0,lt=1"`
		TakeProfitPct   float64       `yaml:"take_profit_pct" default:"0.04" validate:"gt=0"`
		Cooldown        time.Duration `yaml:"cooldown" default:"5m" validate:"gte=0"`
		MaxTradesPerDay int           `yaml:"max_trades_per_day" default:"10" validate:"gte=1"`
		MaxDailyLoss    struct {
			Paper float64 `yaml:"paper" default:"-100" validate:"lt=0"`
			Live  float64 `yaml:"live" default:"-50" validate:"lt=0"`
		} `yaml:"max_daily_loss"`
	} `yaml:"risk"`

	Model struct {
		Type          string        `yaml:"type" default:"local" validate:"oneof=local remote"`
		MinConfidence float64       `yaml:"min_confidence" default:"0.5" validate:"gte=0,lte=1"`
		LearningRate  float64       `yaml:"learning_rate" default:"0.1" validate:"gt=0"`
		Epochs        int           `yaml:"epochs" default:"300" validate:"gte=1"`
		L2            float64       `yaml:"l2" default:"0.01" validate:"gte=0"`
		ServiceURL    string        `yaml:"service_url"`
		Timeout       time.Duration `yaml:"timeout" default:"3s"`
	} `yaml:"model"`

	Broker struct {
		Type            string        `yaml:"type" default:"alpaca" validate:"oneof=alpaca sim"`
		APIKey          string        `yaml:"api_key"`
		SecretKey       string        `yaml:"secret_key"`
		PaperURL        string        `yaml:"paper_url" default:"https://paper-api.alpaca.markets"`
		LiveURL         string        `yaml:"live_url" default:"https://api.alpaca.markets"`
		DataURL         string        `yaml:"data_url" default:"https://data.alpaca.markets"`
		Timeout         time.Duration `yaml:"timeout" default:"10s"`
		FillTimeout     time.Duration `yaml:"fill_timeout" default:"20s"`
		PollInterval    time.Duration `yaml:"poll_interval" default:"500ms"`
		RatePerSec      float64       `yaml:"rate_per_sec" default:"3"`
		SimStartingCash float64       `yaml:"sim_starting_cash" default:"100000"`
	} `yaml:"broker"`

	MarketData struct {
		Type string `yaml:"type" default:"alpaca" validate:"oneof=alpaca yahoo"`
	} `yaml:"market_data"`

	Sentiment struct {
		Enabled  bool              `yaml:"enabled"`
		Sources  []SentimentSource `yaml:"sources" validate:"dive"`
		CacheTTL time.Duration     `yaml:"cache_ttl" default:"5m"`
		Timeout  time.Duration     `yaml:"timeout" default:"5s"`
	} `yaml:"sentiment"`

	PriceStream struct {
		Enabled        bool          `yaml:"enabled"`
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
		MaxAge         time.Duration `yaml:"max_age" default:"30s"`
	} `yaml:"price_stream"`

	TradeLog struct {
		CSVPath    string `yaml:"csv_path" default:"trade_log.csv" validate:"required"`
		ClickHouse struct {
			Enabled bool   `yaml:"enabled"`
			Table   string `yaml:"table" default:"trades"`
		} `yaml:"clickhouse"`
		Postgres struct {
			Enabled bool   `yaml:"enabled"`
			DSN     string `yaml:"dsn"`
			Table   string `yaml:"table" default:"trades"`
		} `yaml:"postgres"`
		Kafka struct {
			Enabled bool   `yaml:"enabled"`
			Topic   string `yaml:"topic" default:"superalgo.trades"`
		} `yaml:"kafka"`
	} `yaml:"trade_log"`

	State struct {
		Backend string        `yaml:"backend" default:"memory" validate:"oneof=memory redis"`
		TTL     time.Duration `yaml:"ttl" default:"48h"`
		Redis   struct {
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"superalgo"`
		} `yaml:"redis"`
	} `yaml:"state"`

	Alert struct {
		WebhookURL string        `yaml:"webhook_url"`
		Timeout    time.Duration `yaml:"timeout" default:"5s"`
		// Queue routes webhook alerts through a redis outbox with retries.
		// Requires the redis state backend.
		Queue struct {
			Enabled    bool          `yaml:"enabled"`
			Workers    int           `yaml:"workers" default:"1" validate:"gte=1"`
			RetryLimit int           `yaml:"retry_limit" default:"5" validate:"gte=0"`
			RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		} `yaml:"queue"`
	} `yaml:"alert"`

	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`

	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`

	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"superalgo"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// SentimentSource is one external scoring endpoint returning {"score": x}.
type SentimentSource struct {
	Name  string            `yaml:"name" validate:"required"`
	URL   string            `yaml:"url" validate:"required,url"`
	Query map[string]string `yaml:"query"`
}

var validate = validator.New()

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file, filling unset fields with defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (when present), then the YAML file, then overrides
// secrets and lists from environment variables.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func decode(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		c.Broker.APIKey = v
	}
	if v := os.Getenv("ALPACA_SECRET_KEY"); v != "" {
		c.Broker.SecretKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.PriceStream.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Trading.Symbols = splitList(v)
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		c.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("ALERT_WEBHOOK_URL"); v != "" {
		c.Alert.WebhookURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.State.Redis.Host = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		c.State.Redis.DB = util.ParseIntDefault(v, c.State.Redis.DB)
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.TradeLog.Postgres.DSN = v
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := util.NewSession(c.Trading.Window.Timezone, c.Trading.Window.Open, c.Trading.Window.Close, c.Trading.Window.Weekdays); err != nil {
		return fmt.Errorf("trading.window: %w", err)
	}
	if c.Trading.TickTimeout > c.Trading.Interval {
		return fmt.Errorf("trading.tick_timeout (%s) cannot exceed trading.interval (%s)", c.Trading.TickTimeout, c.Trading.Interval)
	}
	seen := make(map[string]bool, len(c.Trading.Symbols))
	for _, s := range c.Trading.Symbols {
		if seen[s] {
			return fmt.Errorf("trading.symbols: duplicate %s", s)
		}
		seen[s] = true
	}
	if c.Broker.Type == "alpaca" && (c.Broker.APIKey == "" || c.Broker.SecretKey == "") {
		return fmt.Errorf("broker.api_key and broker.secret_key are required for the alpaca broker")
	}
	if c.Model.Type == "remote" && c.Model.ServiceURL == "" {
		return fmt.Errorf("model.service_url is required for the remote model")
	}
	if c.PriceStream.Enabled && c.PriceStream.APIKey == "" {
		return fmt.Errorf("price_stream.api_key is required when the price stream is enabled")
	}
	if c.TradeLog.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse trade log")
	}
	if c.TradeLog.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required for the kafka trade log")
	}
	if c.TradeLog.Postgres.Enabled && c.TradeLog.Postgres.DSN == "" {
		return fmt.Errorf("trade_log.postgres.dsn is required for the postgres trade log")
	}
	if c.Alert.Queue.Enabled && c.State.Backend != "redis" {
		return fmt.Errorf("alert.queue requires state.backend redis")
	}
	if c.Sentiment.Enabled && len(c.Sentiment.Sources) == 0 {
		return fmt.Errorf("sentiment.sources cannot be empty when sentiment is enabled")
	}
	return nil
}

// MaxDailyLoss is the active loss threshold for the configured mode.
func (c *Config) MaxDailyLoss() float64 {
	if c.Mode == ModeLive {
		return c.Risk.MaxDailyLoss.Live
	}
	return c.Risk.MaxDailyLoss.Paper
}

// BrokerURL is the trading API base for the configured mode.
func (c *Config) BrokerURL() string {
	if c.Mode == ModeLive {
		return c.Broker.LiveURL
	}
	return c.Broker.PaperURL
}

// TickTimeout defaults to one interval.
func (c *Config) TickTimeout() time.Duration {
	if c.Trading.TickTimeout > 0 {
		return c.Trading.TickTimeout
	}
	return c.Trading.Interval
}

// Session builds the trading window.
func (c *Config) Session() (*util.Session, error) {
	w := c.Trading.Window
	return util.NewSession(w.Timezone, w.Open, w.Close, w.Weekdays)
}
