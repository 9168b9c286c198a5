package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type Config struct {
	DatabaseURL string         `yaml:"database_url"`
	Server      ServerConfig   `yaml:"server"`
	Exchange    ExchangeConfig `yaml:"exchange"`
	Queue       QueueConfig    `yaml:"queue"`
	Trading     TradingConfig  `yaml:"trading"`
	Log         LogConfig      `yaml:"log"`

	Credentials Credentials `yaml:"-"`
}

type ServerConfig struct {
	Listen        string `yaml:"listen"`
	MetricsListen string `yaml:"metrics_listen"`
}

type ExchangeConfig struct {
	Name        string        `yaml:"name"`
	URL         string        `yaml:"url"`
	Timeout     string        `yaml:"timeout"`
	HTTPTimeout time.Duration `yaml:"-"`
}

type QueueConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"-"`
	RedisDB       int           `yaml:"redis_db"`
	Name          string        `yaml:"name"`
	Delay         string        `yaml:"delay"`
	PollInterval  string        `yaml:"poll_interval"`
	RetryDelay    string        `yaml:"retry_delay"`
	MaxAttempts   int           `yaml:"max_attempts"`
	DedupTTL      string        `yaml:"dedup_ttl"`
	ClaimLease    string        `yaml:"claim_lease"`
	ParsedDelay   time.Duration `yaml:"-"`
	ParsedPoll    time.Duration `yaml:"-"`
	ParsedRetry   time.Duration `yaml:"-"`
	ParsedDedup   time.Duration `yaml:"-"`
	ParsedLease   time.Duration `yaml:"-"`
}

type TradingConfig struct {
	LeverRate      int    `yaml:"lever_rate"`
	OrderPriceType string `yaml:"order_price_type"`
	MarginAccount  string `yaml:"margin_account"`
	OpenVolume     int64  `yaml:"open_volume"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for every field the file leaves empty.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:        ":8000",
			MetricsListen: ":9100",
		},
		Exchange: ExchangeConfig{
			Name:    "huobi",
			URL:     "https://api.hbdm.vn",
			Timeout: "20s",
		},
		Queue: QueueConfig{
			RedisAddr:    "127.0.0.1:6379",
			Name:         "phone-notification-trade",
			Delay:        "10s",
			PollInterval: "1s",
			RetryDelay:   "30s",
			MaxAttempts:  5,
			DedupTTL:     "1h",
			ClaimLease:   "1m",
		},
		Trading: TradingConfig{
			LeverRate:      5,
			OrderPriceType: "opponent",
			MarginAccount:  "USDT",
			OpenVolume:     1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(filename string) (*Config, error) {
	// .env next to the config file is optional
	envPath := filepath.Join(filepath.Dir(filename), ".env")
	_ = godotenv.Load(envPath)

	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer file.Close()

	config := Default()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, errors.Wrap(err, "failed to decode config file")
	}

	config.applyEnv()
	if err := config.parse(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Queue.RedisAddr = v
	}
	c.Queue.RedisPassword = os.Getenv("REDIS_PASSWORD")
	c.Credentials = NewCredentials(os.Getenv("HUOBI_API_KEY"), os.Getenv("HUOBI_SECRET_KEY"))
}

func (c *Config) parse() error {
	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"exchange.timeout", c.Exchange.Timeout, &c.Exchange.HTTPTimeout},
		{"queue.delay", c.Queue.Delay, &c.Queue.ParsedDelay},
		{"queue.poll_interval", c.Queue.PollInterval, &c.Queue.ParsedPoll},
		{"queue.retry_delay", c.Queue.RetryDelay, &c.Queue.ParsedRetry},
		{"queue.dedup_ttl", c.Queue.DedupTTL, &c.Queue.ParsedDedup},
		{"queue.claim_lease", c.Queue.ClaimLease, &c.Queue.ParsedLease},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return errors.Wrapf(err, "failed to parse %s", d.name)
		}
		if parsed < 0 {
			return errors.Errorf("%s must not be negative", d.name)
		}
		*d.dst = parsed
	}

	if c.Exchange.HTTPTimeout == 0 {
		return errors.New("exchange.timeout must be positive")
	}
	if c.Queue.ParsedPoll == 0 {
		return errors.New("queue.poll_interval must be positive")
	}
	if c.Queue.ParsedDedup == 0 {
		return errors.New("queue.dedup_ttl must be positive")
	}
	if c.Queue.ParsedLease == 0 {
		return errors.New("queue.claim_lease must be positive")
	}
	if c.Queue.Name == "" {
		return errors.New("queue.name is required")
	}
	if c.Queue.MaxAttempts <= 0 {
		return errors.New("queue.max_attempts must be positive")
	}
	if c.Trading.OpenVolume <= 0 {
		return errors.New("trading.open_volume must be positive")
	}

	return nil
}
