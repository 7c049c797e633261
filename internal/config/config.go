package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/syncdata/cdc-relay/pkg/config"
)

// ErrMissingConfig is returned when a required setting has no value.
var ErrMissingConfig = errors.New("missing required configuration")

type Config struct {
	Server        ServerConfig
	Kafka         KafkaConfig
	Database      DatabaseConfig
	Snapshot      SnapshotConfig
	Sync          SyncConfig
	Mongo         MongoConfig
	Elasticsearch ElasticsearchConfig
	DeadLetter    DeadLetterConfig `mapstructure:"deadletter"`
	Breaker       BreakerConfig
	Log           LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type KafkaConfig struct {
	Brokers          []string      `mapstructure:"brokers"`
	Topics           []string      `mapstructure:"topics"`
	GroupID          string        `mapstructure:"group_id"`
	AutoOffsetReset  string        `mapstructure:"auto_offset_reset"`
	SessionTimeoutMs int           `mapstructure:"session_timeout_ms"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type SnapshotConfig struct {
	Table       string        `mapstructure:"table"`
	PrimaryKey  string        `mapstructure:"primary_key"`
	Query       string        `mapstructure:"query"`
	JSONColumns []string      `mapstructure:"json_columns"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type SyncConfig struct {
	TableSuffix        string `mapstructure:"table_suffix"`
	SearchDeletePolicy string `mapstructure:"search_delete_policy"`
}

type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ElasticsearchConfig struct {
	Addresses          []string      `mapstructure:"addresses"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	Index              string        `mapstructure:"index"`
	Refresh            string        `mapstructure:"refresh"`
	CACertPath         string        `mapstructure:"ca_cert_path"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

type DeadLetterConfig struct {
	Driver string          `mapstructure:"driver"`
	Topic  string          `mapstructure:"topic"`
	Redis  DeadLetterRedis `mapstructure:"redis"`
}

type DeadLetterRedis struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
	MaxLen   int64  `mapstructure:"max_len"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

var envBindings = map[string]string{
	"server.host": "SERVER_HOST",
	"server.port": "PORT",

	"kafka.brokers":            "KAFKA_BROKERS",
	"kafka.topics":             "KAFKA_TOPICS",
	"kafka.group_id":           "KAFKA_GROUP_ID",
	"kafka.auto_offset_reset":  "KAFKA_AUTO_OFFSET_RESET",
	"kafka.session_timeout_ms": "KAFKA_SESSION_TIMEOUT_MS",
	"kafka.poll_timeout":       "KAFKA_POLL_TIMEOUT",

	"database.driver":            "DB_DRIVER",
	"database.host":              "DB_HOST",
	"database.port":              "DB_PORT",
	"database.user":              "DB_USER",
	"database.password":          "DB_PASSWORD",
	"database.dbname":            "DB_NAME",
	"database.sslmode":           "DB_SSLMODE",
	"database.file_path":         "DB_FILE_PATH",
	"database.max_idle_conns":    "DB_MAX_IDLE_CONNS",
	"database.max_open_conns":    "DB_MAX_OPEN_CONNS",
	"database.conn_max_lifetime": "DB_CONN_MAX_LIFETIME",
	"database.log_level":         "DB_LOG_LEVEL",

	"snapshot.table":        "SNAPSHOT_TABLE",
	"snapshot.primary_key":  "SNAPSHOT_PRIMARY_KEY",
	"snapshot.query":        "SNAPSHOT_QUERY",
	"snapshot.json_columns": "SNAPSHOT_JSON_COLUMNS",
	"snapshot.timeout":      "SNAPSHOT_TIMEOUT",

	"sync.table_suffix":         "SYNC_TABLE_SUFFIX",
	"sync.search_delete_policy": "SYNC_SEARCH_DELETE_POLICY",

	"mongo.uri":        "MONGO_URI",
	"mongo.database":   "MONGO_DATABASE",
	"mongo.collection": "MONGO_COLLECTION",
	"mongo.timeout":    "MONGO_TIMEOUT",

	"elasticsearch.addresses":            "ES_ADDRESSES",
	"elasticsearch.username":             "ES_USERNAME",
	"elasticsearch.password":             "ES_PASSWORD",
	"elasticsearch.index":                "ES_INDEX",
	"elasticsearch.refresh":              "ES_REFRESH",
	"elasticsearch.ca_cert_path":         "ES_CA_CERT_PATH",
	"elasticsearch.insecure_skip_verify": "ES_INSECURE_SKIP_VERIFY",
	"elasticsearch.timeout":              "ES_TIMEOUT",

	"deadletter.driver":         "DEADLETTER_DRIVER",
	"deadletter.topic":          "DEADLETTER_TOPIC",
	"deadletter.redis.address":  "DEADLETTER_REDIS_ADDRESS",
	"deadletter.redis.password": "DEADLETTER_REDIS_PASSWORD",
	"deadletter.redis.db":       "DEADLETTER_REDIS_DB",
	"deadletter.redis.key":      "DEADLETTER_REDIS_KEY",
	"deadletter.redis.max_len":  "DEADLETTER_REDIS_MAX_LEN",

	"breaker.max_failures": "BREAKER_MAX_FAILURES",
	"breaker.open_timeout": "BREAKER_OPEN_TIMEOUT",

	"log.level":  "LOG_LEVEL",
	"log.pretty": "LOG_PRETTY",
}

// Load reads ./config/config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper applies defaults and env bindings to v, then decodes and
// validates the result.
func FromViper(v *viper.Viper) (*Config, error) {
	// Endpoints, credentials and the mongo/search targets have no defaults.
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("kafka.group_id", "mongodb-sync-group")
	v.SetDefault("kafka.auto_offset_reset", "earliest")
	v.SetDefault("kafka.session_timeout_ms", 45000)
	v.SetDefault("kafka.poll_timeout", "100ms")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "require")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("snapshot.table", "public.orders")
	v.SetDefault("snapshot.primary_key", "order_id")
	v.SetDefault("snapshot.timeout", "5s")
	v.SetDefault("sync.table_suffix", "orders")
	v.SetDefault("sync.search_delete_policy", "skip")
	v.SetDefault("mongo.timeout", "10s")
	v.SetDefault("elasticsearch.refresh", "wait_for")
	v.SetDefault("elasticsearch.insecure_skip_verify", false)
	v.SetDefault("elasticsearch.timeout", "30s")
	v.SetDefault("deadletter.driver", "none")
	v.SetDefault("deadletter.redis.db", 0)
	v.SetDefault("deadletter.redis.key", "cdc-relay:deadletter")
	v.SetDefault("deadletter.redis.max_len", 10000)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	if err := pkgconfig.BindEnvs(v, envBindings); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(v); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate(v *viper.Viper) error {
	required := []string{
		"kafka.brokers",
		"kafka.topics",
		"mongo.uri",
		"mongo.database",
		"mongo.collection",
		"elasticsearch.addresses",
		"elasticsearch.index",
		"snapshot.primary_key",
	}
	if c.Database.Driver == "sqlite" {
		required = append(required, "database.file_path")
	} else {
		required = append(required, "database.host", "database.user", "database.dbname")
	}
	if c.Snapshot.Query == "" {
		required = append(required, "snapshot.table")
	}
	switch c.DeadLetter.Driver {
	case "kafka":
		required = append(required, "deadletter.topic")
	case "redis":
		required = append(required, "deadletter.redis.address")
	}

	if missing := pkgconfig.Missing(v, required...); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	switch c.Sync.SearchDeletePolicy {
	case "skip", "reindex", "delete":
	default:
		return fmt.Errorf("sync.search_delete_policy must be skip, reindex or delete, got %q", c.Sync.SearchDeletePolicy)
	}

	switch c.DeadLetter.Driver {
	case "none", "kafka", "redis":
	default:
		return fmt.Errorf("deadletter.driver must be none, kafka or redis, got %q", c.DeadLetter.Driver)
	}

	return nil
}
