package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/icodeforyou/pvpc-go/logging"
	"github.com/icodeforyou/pvpc-go/period"
	"github.com/icodeforyou/pvpc-go/pricesync"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type AppConfigApi struct {
	Address string `default:"0.0.0.0"`
	Port    int16  `default:"8080" validate:"gt=0"`
	// How often the live price is pushed to websocket clients
	PushInterval time.Duration `mapstructure:"push_interval" default:"1m" validate:"gt=0"`
}

type AppConfigDatabase struct {
	Path string `default:"pvpc.db" validate:"required"`
	// How many days prices are kept before they get purged, default: 0 (keep everything)
	DataRetentionDays *int `mapstructure:"data_retention_days"`
	// How many days daily backup files should be stored before they gets deleted
	BackupRetentionDays *int `mapstructure:"backup_retention_days"`
}

func (d AppConfigDatabase) GetDataRetentionDays() int {
	if d.DataRetentionDays == nil {
		return 0
	}
	return *d.DataRetentionDays
}

func (d AppConfigDatabase) GetBackupRetentionDays() int {
	if d.BackupRetentionDays == nil {
		return 90
	}
	return *d.BackupRetentionDays
}

type AppConfigSource struct {
	Enabled bool   `default:"true"`
	URL     string `mapstructure:"url" validate:"omitempty,url"`
	// First day to sync, yyyy-MM-dd
	StartDate              string        `mapstructure:"start_date" validate:"omitempty,datetime=2006-01-02"`
	ErrorBackoff           time.Duration `mapstructure:"error_backoff" default:"2m" validate:"gt=0"`
	NotYetAvailableBackoff time.Duration `mapstructure:"not_yet_available_backoff" default:"15m" validate:"gt=0"`
	// Local hour at which the next day is published
	PublishHour          int           `mapstructure:"publish_hour" default:"20" validate:"gte=0,lte=23"`
	PublishBuffer        time.Duration `mapstructure:"publish_buffer" default:"2s"`
	LateRetry            time.Duration `mapstructure:"late_retry" default:"1m" validate:"gt=0"`
	MaxValidationRetries int           `mapstructure:"max_validation_retries" default:"5" validate:"gte=0"`
	Timeout              time.Duration `mapstructure:"timeout" default:"30s" validate:"gt=0"`
	Token                string
}

// GetStartDate falls back to fallback when no start date is configured.
func (s AppConfigSource) GetStartDate(fallback string) string {
	if s.StartDate == "" {
		return fallback
	}
	return s.StartDate
}

func (s AppConfigSource) Options(notYetAvailable pricesync.BackoffPolicy) pricesync.Options {
	return pricesync.Options{
		ErrorBackoff:         s.ErrorBackoff,
		NotYetAvailable:      notYetAvailable,
		MaxValidationRetries: s.MaxValidationRetries,
		Timeout:              s.Timeout,
	}
}

// PublicationBackoff waits for the daily publication of the next day.
func (s AppConfigSource) PublicationBackoff() pricesync.PublicationBackoff {
	return pricesync.PublicationBackoff{
		Hour:      s.PublishHour,
		Buffer:    s.PublishBuffer,
		LateRetry: s.LateRetry,
	}
}

func (s AppConfigSource) FixedBackoff() pricesync.FixedBackoff {
	return pricesync.FixedBackoff(s.NotYetAvailableBackoff)
}

type AppConfigSync struct {
	Ree   AppConfigSource `mapstructure:"ree"`
	Esios AppConfigSource `mapstructure:"esios"`
}

type AppConfigAnalytics struct {
	// Max price difference for neighbours of a variable window and between two cheapest windows
	Tolerance       float64 `default:"0.02" validate:"gte=0"`
	RatingVariance  float64 `mapstructure:"rating_variance" default:"0.02" validate:"gte=0"`
	VarianceDivisor float64 `mapstructure:"variance_divisor" default:"2" validate:"gt=0"`
	// "combined" (2 * daily + thirty day) / 3 or "thirty_day"
	Blend      string `default:"combined" validate:"oneof=combined thirty_day"`
	WindowSize int    `mapstructure:"window_size" default:"3" validate:"gte=1,lte=24"`
}

func (a AppConfigAnalytics) PeriodSettings() (period.Settings, error) {
	blend, err := period.ParseBlend(a.Blend)
	if err != nil {
		return period.Settings{}, err
	}
	return period.Settings{
		Tolerance:       decimal.NewFromFloat(a.Tolerance),
		RatingVariance:  decimal.NewFromFloat(a.RatingVariance),
		VarianceDivisor: decimal.NewFromFloat(a.VarianceDivisor),
		Blend:           blend,
	}, nil
}

type AppConfigRedis struct {
	Addr      string
	Password  string
	DB        int           `mapstructure:"db" validate:"gte=0"`
	TTL       time.Duration `mapstructure:"ttl" default:"1h"`
	Namespace string        `default:"pvpc"`
}

func (r AppConfigRedis) Enabled() bool {
	return r.Addr != ""
}

type AppConfigMqtt struct {
	Broker      string
	Port        int    `default:"1883" validate:"gt=0"`
	ClientID    string `mapstructure:"client_id" default:"pvpc-go"`
	TopicPrefix string `mapstructure:"topic_prefix" default:"pvpc"`
	Username    string
	Password    string
}

func (m AppConfigMqtt) Enabled() bool {
	return m.Broker != ""
}

type AppConfigMetrics struct {
	Enabled bool   `default:"true"`
	Path    string `default:"/metrics" validate:"startswith=/"`
}

type AppConfigLocale struct {
	// Language of the voice feed when the request asks for none: "es", "en"
	Default string `default:"es" validate:"oneof=es en"`
	// If assigned, templates are read from this directory and reloaded on change.
	TemplatesDir *string `mapstructure:"templates_dir"`
}

type AppConfigLogging struct {
	// Min log level for database : "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	DbLevel *string `mapstructure:"db_level"`
	// Log attributes format: "TEXT", "JSON", default: "JSON"
	DbAttrsFormat *string `mapstructure:"db_attrs_format"`
	// Maximum number of log entries in the database, default: 10000
	DbMaxEntries *int `mapstructure:"db_max_entries"`
	// Min log level for database console: "DEBUG", "INFO", "WARN", "ERROR", default: "INFO"
	ConsoleLevel *string `mapstructure:"console_level"`
}

func (l AppConfigLogging) GetDbLevel() slog.Level {
	return logging.LevelFromString(l.DbLevel)
}

func (l AppConfigLogging) GetDbAttrsFormat() logging.LogAttrFormat {
	if l.DbAttrsFormat == nil {
		return logging.LogAttrFormatJSON
	}
	if strings.EqualFold(*l.DbAttrsFormat, "text") {
		return logging.LogAttrFormatText
	}
	return logging.LogAttrFormatJSON
}

func (l AppConfigLogging) GetDbMaxEntries() int {
	if l.DbMaxEntries == nil {
		return 10000
	}
	return *l.DbMaxEntries
}

func (l AppConfigLogging) GetConsoleLevel() slog.Level {
	return logging.LevelFromString(l.ConsoleLevel)
}

type AppConfig struct {
	Api       AppConfigApi
	Database  AppConfigDatabase
	Sync      AppConfigSync      `mapstructure:"sync"`
	Analytics AppConfigAnalytics `mapstructure:"analytics"`
	Redis     AppConfigRedis     `mapstructure:"redis"`
	Mqtt      AppConfigMqtt      `mapstructure:"mqtt"`
	Metrics   AppConfigMetrics   `mapstructure:"metrics"`
	Locale    AppConfigLocale    `mapstructure:"locale"`
	Logging   AppConfigLogging   `mapstructure:"logging"`
	// Market timezone, default: "Europe/Madrid"
	Timezone string `mapstructure:"timezone" default:"Europe/Madrid"`

	v *viper.Viper
}

func Load(path string) (*AppConfig, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	c := AppConfig{v: v}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("unable to set config defaults: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config file: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Analytics.PeriodSettings(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: unknown timezone %q", c.Timezone)
	}
	return nil
}

// Watch logs changes of the config file. Settings already handed out are
// not updated, a restart applies them.
func (c *AppConfig) Watch(logger *slog.Logger) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		logger.Warn("config file changed, restart to apply", slog.String("file", e.Name), slog.String("op", e.Op.String()))
	})
	c.v.WatchConfig()
}
