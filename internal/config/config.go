package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	RPCURL           string
	DBDriver         string
	DBDSN            string
	HTTPAddr         string
	RedisAddr        string
	CacheTTL         time.Duration
	OtelEndpoint     string
	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupID     string
	Networks         []string
	Network          string
	SelectedAddress  string
	BatchSize        int
	PollInterval     time.Duration
	Log              LogConfig
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// Load reads the configuration shared by confirmd and the refresher. Only
// RPC_URL is required; everything else has a local-development default.
func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	rpcURL := lookupString(source, "RPC_URL", "")
	if rpcURL == "" {
		return Config{}, errors.New("RPC_URL is required")
	}

	driver := strings.ToLower(lookupString(source, "DB_DRIVER", DriverSQLite))
	var defaultDSN string
	switch driver {
	case DriverMySQL:
		defaultDSN = "root:@tcp(127.0.0.1:3306)/confirmtx?parseTime=true"
	case DriverSQLite:
		defaultDSN = "confirmtx.db"
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q: want %s or %s", driver, DriverMySQL, DriverSQLite)
	}

	cacheTTL, err := parseDuration(source, "CACHE_TTL", time.Minute)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := parseDuration(source, "POLL_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	batchSize, err := parseIntEnv(source, "BATCH_SIZE", 100)
	if err != nil {
		return Config{}, err
	}
	maxSizeMB, err := parseIntEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	maxBackups, err := parseIntEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	kafkaBrokers, err := parseList(source, "KAFKA_BROKERS", "localhost:9092")
	if err != nil {
		return Config{}, err
	}
	networks, err := parseList(source, "NETWORKS", "1")
	if err != nil {
		return Config{}, err
	}

	redisAddr := "127.0.0.1:6379"
	if raw, ok := source.Lookup("REDIS_ADDR"); ok {
		// An explicitly empty REDIS_ADDR disables the cache.
		redisAddr = strings.TrimSpace(raw)
	}

	return Config{
		RPCURL:           rpcURL,
		DBDriver:         driver,
		DBDSN:            lookupString(source, "DB_DSN", defaultDSN),
		HTTPAddr:         lookupString(source, "HTTP_ADDR", ":8080"),
		RedisAddr:        redisAddr,
		CacheTTL:         cacheTTL,
		OtelEndpoint:     lookupString(source, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		KafkaBrokers:     kafkaBrokers,
		KafkaTopicPrefix: lookupString(source, "KAFKA_TOPIC_PREFIX", "confirmtx-approvals"),
		KafkaGroupID:     lookupString(source, "KAFKA_GROUP_ID", "confirmtx-confirmd"),
		Networks:         networks,
		Network:          lookupString(source, "NETWORK", networks[0]),
		SelectedAddress:  lookupString(source, "SELECTED_ADDRESS", ""),
		BatchSize:        batchSize,
		PollInterval:     pollInterval,
		Log: LogConfig{
			Level:      lookupString(source, "LOG_LEVEL", "info"),
			Format:     lookupString(source, "LOG_FORMAT", "text"),
			File:       lookupString(source, "LOG_FILE", ""),
			MaxSizeMB:  maxSizeMB,
			MaxBackups: maxBackups,
		},
	}, nil
}

func lookupString(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseIntEnv(source EnvSource, key string, defaultValue int) (int, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return value, nil
}

func parseDuration(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	duration, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}

func parseList(source EnvSource, key string, defaultValue string) ([]string, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = defaultValue
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		if value := strings.TrimSpace(item); value != "" {
			values = append(values, value)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s is required", key)
	}
	return values, nil
}
