package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/hamed0406/webinspector/internal/obs"
	"github.com/hamed0406/webinspector/internal/probe"
)

type Config struct {
	Addr       string           `mapstructure:"addr"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Inspection InspectionConfig `mapstructure:"inspection"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Events     EventsConfig     `mapstructure:"events"`
	OTEL       obs.OTELConfig   `mapstructure:"otel"`
	HTTP       HTTPConfig       `mapstructure:"http"`
}

type LogConfig struct {
	Dir    string `mapstructure:"dir"`
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Backend selects a KV implementation: memory, sqlite, postgres or redis.
type Backend struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type StorageConfig struct {
	Local  Backend `mapstructure:"local"`
	Synced Backend `mapstructure:"synced"`
}

type InspectionConfig struct {
	MaxResults             int           `mapstructure:"max_results"`
	NetworkTimeout         time.Duration `mapstructure:"network_timeout"`
	PageTimeout            time.Duration `mapstructure:"page_timeout"`
	SettleDelay            time.Duration `mapstructure:"settle_delay"`
	SnapshotSettle         time.Duration `mapstructure:"snapshot_settle"`
	Concurrency            int           `mapstructure:"concurrency"`
	DefaultIntervalMinutes int           `mapstructure:"default_interval_minutes"`
	ChecksFile             string        `mapstructure:"checks_file"`
	UserAgent              string        `mapstructure:"user_agent"`
	// Cookies seed the network probes' jar and the browser before the first
	// probe. INSPECTION_COOKIES takes a JSON array.
	Cookies []probe.Cookie `mapstructure:"cookies"`
}

type BrowserConfig struct {
	ExecPath  string `mapstructure:"exec_path"`
	Headless  bool   `mapstructure:"headless"`
	NoSandbox bool   `mapstructure:"no_sandbox"`
}

type NotifyConfig struct {
	SlackWebhook  string        `mapstructure:"slack_webhook"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
}

type EventsConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

type HTTPConfig struct {
	RateRPM        int      `mapstructure:"rate_rpm"`
	RateBurst      int      `mapstructure:"rate_burst"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads an optional YAML file, then lets environment variables override
// any key with dots replaced by underscores (INSPECTION_PAGE_TIMEOUT=10s).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	v.SetDefault("addr", "127.0.0.1:8080")

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("storage.local.driver", "sqlite")
	v.SetDefault("storage.local.dsn", "webinspector.db")
	v.SetDefault("storage.synced.driver", "sqlite")
	v.SetDefault("storage.synced.dsn", "webinspector.db")

	v.SetDefault("inspection.max_results", 100)
	v.SetDefault("inspection.network_timeout", "30s")
	v.SetDefault("inspection.page_timeout", "30s")
	v.SetDefault("inspection.settle_delay", "3s")
	v.SetDefault("inspection.snapshot_settle", "1s")
	v.SetDefault("inspection.concurrency", 8)
	v.SetDefault("inspection.default_interval_minutes", 30)
	v.SetDefault("inspection.checks_file", "")
	v.SetDefault("inspection.user_agent", "webinspector/1.0")
	v.SetDefault("inspection.cookies", []probe.Cookie{})

	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)

	v.SetDefault("notify.slack_webhook", "")
	v.SetDefault("notify.retry_attempts", 2)
	v.SetDefault("notify.retry_backoff", "300ms")

	v.SetDefault("events.kafka_brokers", []string{})
	v.SetDefault("events.kafka_topic", "webinspector.events")

	v.SetDefault("otel.enable", false)
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.insecure", true)
	v.SetDefault("otel.service_name", "webinspector")
	v.SetDefault("otel.service_version", "")
	v.SetDefault("otel.environment", "")
	v.SetDefault("otel.sampler", "ratio")
	v.SetDefault("otel.sample_ratio", 1.0)

	v.SetDefault("http.rate_rpm", 600)
	v.SetDefault("http.rate_burst", 60)
	v.SetDefault("http.allowed_origins", []string{"*"})

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	hooks := mapstructure.ComposeDecodeHookFunc(
		cookiesFromJSON,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var cookieSliceType = reflect.TypeOf([]probe.Cookie{})

func cookiesFromJSON(_ reflect.Type, to reflect.Type, data any) (any, error) {
	s, ok := data.(string)
	if !ok || to != cookieSliceType {
		return data, nil
	}
	var out []probe.Cookie
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("inspection.cookies: %w", err)
	}
	return out, nil
}
