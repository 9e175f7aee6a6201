package pubsub

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverKafka  = "kafka"
)

// KafkaConfig holds Kafka-specific configuration.
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	// GroupID must be unique per relay instance: every instance needs every
	// room message.
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
	Topics     []string `mapstructure:"topics"`
}

// Config holds the configuration for the pub/sub system.
type Config struct {
	Driver string      `mapstructure:"driver"` // "memory", "redis", "kafka"
	Buffer int         `mapstructure:"buffer"`
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns a single-instance in-memory bus.
func DefaultConfig() Config {
	return Config{
		Driver: DriverMemory,
		Buffer: 256,
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    "localhost:9092",
			GroupID:    "relay",
			Partitions: 4,
			Topics:     []string{"relay-to-members"},
		},
	}
}

// NewPubSub creates a PubSub for cfg.Driver.
func NewPubSub(cfg Config, logger zerolog.Logger) (PubSub, error) {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	logger = logger.With().Str("component", "pubsub").Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryPubSub(cfg.Buffer, logger), nil
	case DriverRedis:
		return NewRedisPubSub(cfg.Redis, cfg.Buffer, logger)
	case DriverKafka:
		return NewKafkaPubSub(cfg.Kafka, cfg.Buffer, logger)
	default:
		return nil, fmt.Errorf("unknown pubsub driver: %q", cfg.Driver)
	}
}
