package config

import (
	"time"

	pkgconfig "github.com/Hajira-org/hajira-chat/pkg/config"
	"github.com/Hajira-org/hajira-chat/pkg/pubsub"
	"github.com/google/uuid"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	History   HistoryConfig
	Redis     RedisConfig
	PubSub    pubsub.Config `mapstructure:"pubsub"`
	Log       LogConfig
}

type ServerConfig struct {
	Host       string
	Port       int
	InstanceID string `mapstructure:"instance_id"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type HistoryConfig struct {
	// "memory" or "redis"
	Driver    string        `mapstructure:"driver"`
	Limit     int           `mapstructure:"limit"`
	TTL       time.Duration `mapstructure:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// DefaultWebSocketConfig is used by tests and as the fallback for
// unparsable durations.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	}
}

func Load(configPath string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.instance_id", "")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 64*1024)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("history.driver", "memory")
	v.SetDefault("history.limit", 100)
	v.SetDefault("history.ttl", "168h")
	v.SetDefault("history.key_prefix", "relay:history")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("pubsub.driver", pubsub.DriverMemory)
	v.SetDefault("pubsub.buffer", 256)
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.redis.read_timeout", "3s")
	v.SetDefault("pubsub.redis.write_timeout", "3s")
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "relay")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("pubsub.kafka.topics", []string{"relay-to-members"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("history.driver", "HISTORY_DRIVER")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	ws := DefaultWebSocketConfig()
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", ws.PingInterval)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", ws.PongWait)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", ws.WriteWait)
	cfg.History.TTL = pkgconfig.Duration(v, "history.ttl", 7*24*time.Hour)
	cfg.PubSub.Redis.ReadTimeout = pkgconfig.Duration(v, "pubsub.redis.read_timeout", 3*time.Second)
	cfg.PubSub.Redis.WriteTimeout = pkgconfig.Duration(v, "pubsub.redis.write_timeout", 3*time.Second)

	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = uuid.NewString()
	}
	// Every instance must see every room message.
	cfg.PubSub.Kafka.GroupID = cfg.PubSub.Kafka.GroupID + "-" + cfg.Server.InstanceID

	return &cfg, nil
}
