package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"herekitty/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig           `mapstructure:"app"`
	Logging    logging.Config      `mapstructure:"logging"`
	Database   DatabaseConfig      `mapstructure:"database"`
	Scheduler  SchedulerConfig     `mapstructure:"scheduler"`
	Ethereum   EthereumConfig      `mapstructure:"ethereum"`
	MoonCat    MoonCatConfig       `mapstructure:"mooncat"`
	OpenSea    OpenSeaConfig       `mapstructure:"opensea"`
	Alerting   AlertingConfig      `mapstructure:"alerting"`
	Export     ExportConfig        `mapstructure:"export"`
	Categories map[string][]uint64 `mapstructure:"categories"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs sampling cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	WrapperAddress string        `mapstructure:"wrapper_address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MoonCatConfig captures the MoonCat metadata service.
type MoonCatConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	DNAGateway     string        `mapstructure:"dna_gateway"`
	ChainStation   string        `mapstructure:"chain_station"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// OpenSeaConfig captures marketplace API connectivity.
type OpenSeaConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	ContractAddress string        `mapstructure:"contract_address"`
	Chain           string        `mapstructure:"chain"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	RequestDelay    time.Duration `mapstructure:"request_delay"`
	BatchSize       int           `mapstructure:"batch_size"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	FloorBelowETH float64       `mapstructure:"floor_below_eth"`
	Cooldown      time.Duration `mapstructure:"cooldown"`
	Channels      []string      `mapstructure:"channels"`
	Discord       DiscordConfig `mapstructure:"discord"`
}

// DiscordConfig 描述 Discord Webhook 告警参数。
type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HEREKITTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "herekitty")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6d636174))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("ethereum.wrapper_address", "0x7c40c393dc0f283f318791d746d894ddd3693572")
	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("mooncat.base_url", "https://api.mooncat.community")
	v.SetDefault("mooncat.dna_gateway", "https://ipfs.io/ipfs/bafybeicp3ke3rrhakwlre4gexzcjx7uxotvtscda7kz3wdbkxa5usrbmwu")
	v.SetDefault("mooncat.chain_station", "https://chainstation.mooncatrescue.com")
	v.SetDefault("mooncat.request_timeout", "10s")
	v.SetDefault("mooncat.user_agent", "herekitty/1.0")

	v.SetDefault("opensea.base_url", "https://api.opensea.io/api/v2")
	v.SetDefault("opensea.contract_address", "0xc3f733ca98e0dad0386979eb96fb1722a1a05e69")
	v.SetDefault("opensea.chain", "ethereum")
	v.SetDefault("opensea.request_timeout", "10s")
	v.SetDefault("opensea.request_delay", "250ms")
	v.SetDefault("opensea.batch_size", 30)
	v.SetDefault("opensea.user_agent", "herekitty/1.0")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.floor_below_eth", 0.0)
	v.SetDefault("alerting.cooldown", "1h")
	v.SetDefault("alerting.channels", []string{"discord"})
	v.SetDefault("alerting.discord.enabled", false)
	v.SetDefault("alerting.discord.username", "herekitty")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.OpenSea.BatchSize <= 0 {
		return fmt.Errorf("opensea.batch_size must be greater than zero")
	}
	if c.OpenSea.RequestDelay < 0 {
		return fmt.Errorf("opensea.request_delay cannot be negative")
	}
	if c.Alerting.FloorBelowETH < 0 {
		return fmt.Errorf("alerting.floor_below_eth cannot be negative")
	}
	if c.Alerting.Discord.Enabled {
		if c.Alerting.Discord.WebhookURL == "" {
			return fmt.Errorf("alerting.discord.webhook_url 必须配置")
		}
	}
	for name, ids := range c.Categories {
		if len(ids) == 0 {
			return fmt.Errorf("categories.%s 不能为空", name)
		}
	}
	return nil
}

// Category returns the token ids configured under a category name.
func (c *Config) Category(name string) ([]uint64, bool) {
	ids, ok := c.Categories[strings.ToLower(name)]
	return ids, ok
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
