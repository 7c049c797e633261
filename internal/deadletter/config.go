package deadletter

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Config selects and configures the dead-letter driver.
type Config struct {
	Driver  string // "none", "kafka", "redis"
	Brokers string // kafka only
	Topic   string // kafka only
	Redis   RedisConfig
}

// RedisConfig holds the capped-list settings of the redis driver.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Key      string
	MaxLen   int64
}

// NewPublisher creates the Publisher selected by cfg.Driver.
func NewPublisher(cfg Config, logger zerolog.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "kafka":
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic, logger)
	case "redis":
		return NewRedisStore(cfg.Redis)
	case "", "none":
		return NewLogPublisher(logger), nil
	default:
		return nil, fmt.Errorf("unsupported dead-letter driver: %s", cfg.Driver)
	}
}
