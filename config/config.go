package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Socket    SocketConfig    `mapstructure:"socket"`
	Presence  PresenceConfig  `mapstructure:"presence"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout stays zero by default: push streams are long-lived.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type PresenceConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
	// DriftThreshold is how far the identity and last-seen tables may
	// diverge before reconciliation drops identities lacking a record.
	DriftThreshold int           `mapstructure:"drift_threshold"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type BroadcastConfig struct {
	MaxBufferedEvents int           `mapstructure:"max_buffered_events"`
	Retention         time.Duration `mapstructure:"retention"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	BufferSize        int           `mapstructure:"buffer_size"`
}

type AdminConfig struct {
	Key string `mapstructure:"key"`
}

// RedisConfig holds connection settings for the Redis pub/sub bridge.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Default returns the configuration used when no file or env overrides
// are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			ReadTimeout: 10 * time.Second,
		},
		Socket: DefaultSocketConfig(),
		Presence: PresenceConfig{
			StaleAfter:     3 * time.Minute,
			DriftThreshold: 2,
			SweepInterval:  30 * time.Second,
		},
		Broadcast: BroadcastConfig{
			MaxBufferedEvents: 20,
			Retention:         time.Hour,
		},
		Stream: StreamConfig{
			HeartbeatInterval: 15 * time.Second,
			BufferSize:        64,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "presence:",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads defaults, then the optional YAML file at path, then
// PRESENCE_* environment variables (e.g. PRESENCE_ADMIN_KEY).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, Default())

	v.SetEnvPrefix("PRESENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)

	v.SetDefault("socket.max_connections", d.Socket.MaxConnections)
	v.SetDefault("socket.ping_interval", d.Socket.PingInterval)
	v.SetDefault("socket.write_timeout", d.Socket.WriteTimeout)
	v.SetDefault("socket.read_buffer_size", d.Socket.ReadBufferSize)
	v.SetDefault("socket.write_buffer_size", d.Socket.WriteBufferSize)
	v.SetDefault("socket.send_buffer", d.Socket.SendBuffer)

	v.SetDefault("presence.stale_after", d.Presence.StaleAfter)
	v.SetDefault("presence.drift_threshold", d.Presence.DriftThreshold)
	v.SetDefault("presence.sweep_interval", d.Presence.SweepInterval)

	v.SetDefault("broadcast.max_buffered_events", d.Broadcast.MaxBufferedEvents)
	v.SetDefault("broadcast.retention", d.Broadcast.Retention)

	v.SetDefault("stream.heartbeat_interval", d.Stream.HeartbeatInterval)
	v.SetDefault("stream.buffer_size", d.Stream.BufferSize)

	v.SetDefault("admin.key", d.Admin.Key)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.prefix", d.Redis.Prefix)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if c.Socket.ReadBufferSize <= 0 || c.Socket.WriteBufferSize <= 0 {
		return fmt.Errorf("socket buffer sizes must be positive")
	}
	if c.Socket.SendBuffer <= 0 {
		return fmt.Errorf("socket.send_buffer must be positive")
	}
	if c.Presence.StaleAfter <= 0 {
		return fmt.Errorf("presence.stale_after must be positive")
	}
	if c.Presence.DriftThreshold <= 0 {
		return fmt.Errorf("presence.drift_threshold must be positive")
	}
	if c.Presence.SweepInterval <= 0 {
		return fmt.Errorf("presence.sweep_interval must be positive")
	}
	if c.Broadcast.MaxBufferedEvents <= 0 {
		return fmt.Errorf("broadcast.max_buffered_events must be positive")
	}
	if c.Broadcast.Retention <= 0 {
		return fmt.Errorf("broadcast.retention must be positive")
	}
	if c.Stream.HeartbeatInterval <= 0 || c.Stream.BufferSize <= 0 {
		return fmt.Errorf("stream heartbeat and buffer size must be positive")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	return nil
}
