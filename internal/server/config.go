// Package server provides configuration helpers that define runtime defaults,
// validation, and loading of relay settings from files and the environment.
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/Tyrowin/roomrelay/internal/activity"
)

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 4096
	defaultSendBufferSize  = 256
	defaultPongWait        = 60 * time.Second
	defaultWriteWait       = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// LogConfig selects the logger flavour.
type LogConfig struct {
	Env   string
	Level string
}

// ActivityConfig configures the room activity feed.
type ActivityConfig struct {
	Sink         string
	Buffer       int
	KafkaBrokers []string
	KafkaTopic   string
	RedisAddr    string
	RedisDB      int
	RedisChannel string
}

// SinkConfig converts the settings for activity.NewPublisher.
func (a ActivityConfig) SinkConfig() activity.SinkConfig {
	return activity.SinkConfig{
		Kind:         a.Sink,
		KafkaBrokers: append([]string(nil), a.KafkaBrokers...),
		KafkaTopic:   a.KafkaTopic,
		RedisAddr:    a.RedisAddr,
		RedisDB:      a.RedisDB,
		RedisChannel: a.RedisChannel,
	}
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	SendBufferSize  int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	Log             LogConfig
	Activity        ActivityConfig
}

var (
	configMu     sync.RWMutex
	activeConfig Config
	activePolicy originPolicy
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  defaultMaxMessageSize,
		SendBufferSize:  defaultSendBufferSize,
		PingInterval:    pingIntervalFor(defaultPongWait),
		PongWait:        defaultPongWait,
		WriteWait:       defaultWriteWait,
		ShutdownTimeout: defaultShutdownTimeout,
		MetricsEnabled:  true,
		Log: LogConfig{
			Env:   "dev",
			Level: "info",
		},
		Activity: ActivityConfig{
			Sink:         activity.SinkNone,
			Buffer:       1024,
			KafkaTopic:   "room-activity",
			RedisChannel: "room-activity",
		},
	}
}

// pingIntervalFor keeps pings comfortably inside the pong deadline.
func pingIntervalFor(pongWait time.Duration) time.Duration {
	return pongWait * 9 / 10
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}

	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = pingIntervalFor(cfg.PongWait)
	}

	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.Activity.Sink == "" {
		cfg.Activity.Sink = activity.SinkNone
	}

	policy, origins := newOriginPolicy(cfg.AllowedOrigins)
	cfg.AllowedOrigins = origins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	activePolicy = policy

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	copied := *cfg
	copied.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	copied.Activity.KafkaBrokers = append([]string(nil), cfg.Activity.KafkaBrokers...)
	sanitizeConfig(copied)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	cfg.Activity.KafkaBrokers = append([]string(nil), cfg.Activity.KafkaBrokers...)
	return cfg
}

// ActiveConfig returns a copy of the configuration applied by SetConfig,
// after defaults have been filled in.
func ActiveConfig() Config {
	return currentConfig()
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig reads settings from an optional YAML/JSON/TOML file at path and
// from the environment. Environment keys are the config keys upper-cased with
// a RELAY_ prefix (RELAY_SERVER_PORT, RELAY_ACTIVITY_SINK, ...); the
// SERVER_PORT, ALLOWED_ORIGINS and MAX_MESSAGE_SIZE names are accepted too.
// Durations use Go syntax ("30s").
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, defaultConfig())

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range map[string]string{
		"server.port":             "SERVER_PORT",
		"server.allowed_origins":  "ALLOWED_ORIGINS",
		"server.max_message_size": "MAX_MESSAGE_SIZE",
	} {
		envKey := "RELAY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:            v.GetString("server.port"),
		AllowedOrigins:  stringList(v, "server.allowed_origins"),
		MaxMessageSize:  v.GetInt64("server.max_message_size"),
		SendBufferSize:  v.GetInt("server.send_buffer"),
		PingInterval:    v.GetDuration("server.ping_interval"),
		PongWait:        v.GetDuration("server.pong_wait"),
		WriteWait:       v.GetDuration("server.write_wait"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		MetricsEnabled:  v.GetBool("metrics.enabled"),
		Log: LogConfig{
			Env:   v.GetString("log.env"),
			Level: v.GetString("log.level"),
		},
		Activity: ActivityConfig{
			Sink:         v.GetString("activity.sink"),
			Buffer:       v.GetInt("activity.buffer"),
			KafkaBrokers: stringList(v, "activity.kafka.brokers"),
			KafkaTopic:   v.GetString("activity.kafka.topic"),
			RedisAddr:    v.GetString("activity.redis.addr"),
			RedisDB:      v.GetInt("activity.redis.db"),
			RedisChannel: v.GetString("activity.redis.channel"),
		},
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Port)
	v.SetDefault("server.allowed_origins", d.AllowedOrigins)
	v.SetDefault("server.max_message_size", d.MaxMessageSize)
	v.SetDefault("server.send_buffer", d.SendBufferSize)
	v.SetDefault("server.ping_interval", d.PingInterval)
	v.SetDefault("server.pong_wait", d.PongWait)
	v.SetDefault("server.write_wait", d.WriteWait)
	v.SetDefault("server.shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("metrics.enabled", d.MetricsEnabled)
	v.SetDefault("log.env", d.Log.Env)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("activity.sink", d.Activity.Sink)
	v.SetDefault("activity.buffer", d.Activity.Buffer)
	v.SetDefault("activity.kafka.brokers", []string{})
	v.SetDefault("activity.kafka.topic", d.Activity.KafkaTopic)
	v.SetDefault("activity.redis.addr", "")
	v.SetDefault("activity.redis.db", 0)
	v.SetDefault("activity.redis.channel", d.Activity.RedisChannel)
}

// stringList reads a list that may arrive as a comma-separated string from
// the environment or as a sequence from a config file.
func stringList(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return parseOrigins(raw)
	}
	return v.GetStringSlice(key)
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
