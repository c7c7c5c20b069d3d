package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	apiKeyENV         = "APIKEY"
	apiSecretENV      = "SECRET"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// quote currencies the exchange settles spot pairs in
var allowedQuotes = map[string]bool{"USDT": true, "USDC": true, "BTC": true, "CRO": true}

type Schedule struct {
	TrailingStop string `mapstructure:"trailing_stop" yaml:"trailing_stop"`
	Investing    string `mapstructure:"investing" yaml:"investing"`
	Rebalance    string `mapstructure:"rebalance" yaml:"rebalance"`
}

type TrailingStop struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	MinProfit   float64 `mapstructure:"min_profit" yaml:"min_profit"`
	MaxDrop     float64 `mapstructure:"max_drop" yaml:"max_drop"`
	ResumeHours float64 `mapstructure:"resume_hours" yaml:"resume_hours"`
}

// TelegramPost switches individual notification kinds on and off.
type TelegramPost struct {
	Invest                   bool `mapstructure:"invest" yaml:"invest"`
	RebalanceMarketCap       bool `mapstructure:"rebalance_market_cap" yaml:"rebalance_market_cap"`
	RebalanceOverperformers  bool `mapstructure:"rebalance_overperformers" yaml:"rebalance_overperformers"`
	RebalanceUnderperformers bool `mapstructure:"rebalance_underperformers" yaml:"rebalance_underperformers"`
	TrailingStop             bool `mapstructure:"trailing_stop" yaml:"trailing_stop"`
	Armed                    bool `mapstructure:"armed" yaml:"armed"`
	Continue                 bool `mapstructure:"continue" yaml:"continue"`
}

type Telegram struct {
	Token  string       `mapstructure:"token" yaml:"token,omitempty"`
	ChatID int64        `mapstructure:"chat_id" yaml:"chat_id"`
	Post   TelegramPost `mapstructure:"post" yaml:"post"`
}

type Jaeger struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Config is the one immutable configuration value every component gets
// at construction. It is fully populated and validated before the fx app
// starts; nothing reads configuration ambiently after that.
type Config struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret,omitempty"`

	Telegram Telegram `mapstructure:"telegram" yaml:"telegram"`
	DB       string   `mapstructure:"db_dsn" yaml:"db_dsn,omitempty"`

	Schedule Schedule `mapstructure:"schedule" yaml:"schedule"`

	Quote      string  `mapstructure:"quote" yaml:"quote"`
	Investment float64 `mapstructure:"investment" yaml:"investment"`
	Top        int     `mapstructure:"top" yaml:"top"`

	Include []string `mapstructure:"include" yaml:"include"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`

	Threshold float64            `mapstructure:"threshold" yaml:"threshold"`
	Weight    map[string]float64 `mapstructure:"weight" yaml:"weight"`

	// Grace period in hours before a coin that fell out of the market
	// cap universe is liquidated.
	RemovalHours float64 `mapstructure:"removal_hours" yaml:"removal_hours"`

	TrailingStop TrailingStop `mapstructure:"trailing_stop" yaml:"trailing_stop"`

	// The underperformer correction phase has gone back and forth in
	// this bot's history; it stays opt-in.
	RebalanceUnderperformers bool `mapstructure:"rebalance_underperformers" yaml:"rebalance_underperformers"`

	// Currency the exchange deducts fees from; its balance is re-read
	// right before a trailing-stop sale.
	FeeCurrency string `mapstructure:"fee_currency" yaml:"fee_currency"`

	MarketStream bool `mapstructure:"market_stream" yaml:"market_stream"`

	Dry         bool   `mapstructure:"dry" yaml:"dry"`
	IdleMessage string `mapstructure:"idle_message" yaml:"idle_message"`
	DataDir     string `mapstructure:"data_dir" yaml:"data_dir"`

	Jaeger Jaeger `mapstructure:"jaeger" yaml:"jaeger"`
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join("configs", configFileName))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	config := Config{}
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "decode config file")
	}

	// Secrets come from the environment when present so the yaml file
	// can be committed without them.
	if key := os.Getenv(apiKeyENV); key != "" {
		config.APIKey = key
	}
	if secret := os.Getenv(apiSecretENV); secret != "" {
		config.APISecret = secret
	}
	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}

	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("schedule.trailing_stop", "30 * * * * *")
	v.SetDefault("schedule.investing", "0 3 0 * * *")
	v.SetDefault("schedule.rebalance", "0 */5 * * * *")
	v.SetDefault("quote", "USDT")
	v.SetDefault("top", 50)
	v.SetDefault("threshold", 5)
	v.SetDefault("removal_hours", 24)
	v.SetDefault("trailing_stop.min_profit", 30)
	v.SetDefault("trailing_stop.max_drop", 20)
	v.SetDefault("trailing_stop.resume_hours", 72)
	v.SetDefault("fee_currency", "CRO")
	v.SetDefault("idle_message", "[CHECK] Rebalance not necessary")
	v.SetDefault("data_dir", "data")
	v.SetDefault("telegram.post.invest", true)
	v.SetDefault("telegram.post.rebalance_market_cap", true)
	v.SetDefault("telegram.post.rebalance_overperformers", true)
	v.SetDefault("telegram.post.rebalance_underperformers", true)
	v.SetDefault("telegram.post.trailing_stop", true)
	v.SetDefault("telegram.post.armed", true)
	v.SetDefault("telegram.post.continue", true)
	v.SetDefault("jaeger.host", "127.0.0.1")
	v.SetDefault("jaeger.port", 6831)
}

func (c *Config) normalize() {
	c.Quote = strings.ToUpper(c.Quote)
	c.FeeCurrency = strings.ToUpper(c.FeeCurrency)
	for i, s := range c.Include {
		c.Include[i] = strings.ToUpper(s)
	}
	for i, s := range c.Exclude {
		c.Exclude[i] = strings.ToUpper(s)
	}

	weights := make(map[string]float64, len(c.Weight))
	for sym, w := range c.Weight {
		weights[strings.ToUpper(sym)] = w
	}
	c.Weight = weights
}

// cron expressions carry a seconds field, same grammar the scheduler uses
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Validate enforces every startup invariant. A violation is fatal: the
// process must not begin scheduling with a half-usable configuration.
func (c *Config) Validate() error {
	for name, expr := range map[string]string{
		"schedule.trailing_stop": c.Schedule.TrailingStop,
		"schedule.investing":     c.Schedule.Investing,
		"schedule.rebalance":     c.Schedule.Rebalance,
	} {
		if _, err := cronParser.Parse(expr); err != nil {
			return errors.Wrapf(err, "%s is not a valid cron expression", name)
		}
	}

	if !allowedQuotes[c.Quote] {
		return errors.Errorf("quote %q is not supported, choose USDT, USDC, BTC or CRO", c.Quote)
	}

	// Even without fresh deposits, rebalancing generates dust that gets
	// re-invested, so a zero investment is never meaningful.
	if c.Investment <= 0 {
		return errors.New("investment must be larger than 0")
	}

	if c.Top < 0 || c.Top > 250 {
		return errors.New("top must be between 0 and 250")
	}

	if c.RemovalHours < 0 {
		return errors.New("removal_hours must be 0 or greater")
	}

	// A coin on both lists would be sold on every rebalance and bought
	// right back on the next investment.
	excluded := make(map[string]bool, len(c.Exclude))
	for _, sym := range c.Exclude {
		excluded[sym] = true
	}
	for _, sym := range c.Include {
		if excluded[sym] {
			return errors.Errorf("%s is listed in both include and exclude", sym)
		}
	}

	if c.Threshold < 1 {
		return errors.New("threshold can not be lower than 1%")
	}

	sum := 0.0
	for sym, w := range c.Weight {
		if w <= 0 {
			return errors.Errorf("weight for %s must be larger than 0%%", sym)
		}
		if sym == c.Quote {
			return errors.New("weight map can not include the quote currency")
		}
		sum += w
	}
	if sum > 100 {
		return errors.New("sum of weights exceeds 100%")
	}

	if c.TrailingStop.Enabled {
		if c.TrailingStop.MinProfit < 1 {
			return errors.New("trailing_stop.min_profit must be 1% or larger")
		}
		if c.TrailingStop.MaxDrop < 1 {
			return errors.New("trailing_stop.max_drop must be 1% or larger")
		}
		if c.TrailingStop.MinProfit <= c.TrailingStop.MaxDrop {
			return errors.New("trailing_stop.min_profit must be larger than trailing_stop.max_drop")
		}
		if c.TrailingStop.ResumeHours < 0 {
			return errors.New("trailing_stop.resume_hours can not be negative")
		}
	}

	if c.FeeCurrency == "" {
		return errors.New("fee_currency must be set")
	}

	return nil
}

// WriteSnapshot dumps the effective configuration (secrets masked) next
// to the state files, so a running deployment documents itself.
func (c *Config) WriteSnapshot() error {
	masked := *c
	if masked.APIKey != "" {
		masked.APIKey = "***"
	}
	if masked.APISecret != "" {
		masked.APISecret = "***"
	}
	if masked.Telegram.Token != "" {
		masked.Telegram.Token = "***"
	}
	if masked.DB != "" {
		masked.DB = "***"
	}

	bs, err := yaml.Marshal(masked)
	if err != nil {
		return errors.Wrap(err, "marshal config snapshot")
	}

	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}

	return errors.Wrap(
		os.WriteFile(filepath.Join(c.DataDir, "effective_config.yaml"), bs, 0o644),
		"write config snapshot",
	)
}
