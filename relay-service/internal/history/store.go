package history

import (
	"fmt"
	"time"
)

// Config selects and tunes a Store.
type Config struct {
	Driver    string
	Limit     int
	TTL       time.Duration
	KeyPrefix string
	Redis     RedisConfig
}

// New creates the Store named by cfg.Driver.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemoryStore(cfg.Limit), nil
	case "redis":
		rc := cfg.Redis
		rc.Prefix = cfg.KeyPrefix
		rc.Limit = cfg.Limit
		rc.TTL = cfg.TTL
		return NewRedisStore(rc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
