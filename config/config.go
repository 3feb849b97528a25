package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Logger      LoggerConfig
	Store       StoreConfig
	Postgres    PostgresConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Reservation ReservationConfig
	RateLimit   RateLimitConfig
	Metrics     MetricsConfig
	Tracing     TracingConfig
}

type ServerConfig struct {
	AppEnv          string
	GRPCPort        string
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

// StoreConfig selects the persistence backend: postgres, sqlite or memory.
type StoreConfig struct {
	Driver      string
	AutoMigrate bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	LockTimeout     time.Duration
}

type SQLiteConfig struct {
	Path          string
	BusyTimeoutMs int
}

type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	PendingTTL time.Duration
	ResultTTL  time.Duration
}

type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	PickTaskTopic  string
	MovementTopic  string
	GroupID        string
	BreakerTimeout time.Duration
	BreakerTrips   int
}

type ReservationConfig struct {
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	SweepBatch    int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	IdleTTL           time.Duration
}

type MetricsConfig struct {
	Addr string
}

type TracingConfig struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:          getEnv("APP_ENV", "dev"),
			GRPCPort:        getEnv("GRPC_PORT", ":8086"),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Store: StoreConfig{
			Driver:      getEnv("STORE_DRIVER", "postgres"),
			AutoMigrate: getEnvBool("STORE_AUTO_MIGRATE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_reservation"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
			LockTimeout:     getEnvDuration("POSTGRES_LOCK_TIMEOUT", 2*time.Second),
		},
		SQLite: SQLiteConfig{
			Path:          getEnv("SQLITE_PATH", "reservation.db"),
			BusyTimeoutMs: getEnvInt("SQLITE_BUSY_TIMEOUT_MS", 2000),
		},
		Redis: RedisConfig{
			Enabled:    getEnvBool("REDIS_ENABLED", true),
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			PendingTTL: getEnvDuration("IDEMPOTENCY_PENDING_TTL", 30*time.Second),
			ResultTTL:  getEnvDuration("IDEMPOTENCY_RESULT_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Enabled:        getEnvBool("KAFKA_ENABLED", true),
			Brokers:        getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			PickTaskTopic:  getEnv("KAFKA_TOPIC_PICK_TASKS", "warehouse.pick-tasks"),
			MovementTopic:  getEnv("KAFKA_TOPIC_MOVEMENTS", "warehouse.stock-movements"),
			GroupID:        getEnv("KAFKA_GROUP_RESERVATION", "reservation"),
			BreakerTimeout: getEnvDuration("KAFKA_BREAKER_TIMEOUT", 30*time.Second),
			BreakerTrips:   getEnvInt("KAFKA_BREAKER_CONSECUTIVE_FAILURES", 5),
		},
		Reservation: ReservationConfig{
			DefaultTTL:    getEnvDuration("RESERVATION_DEFAULT_TTL", 0),
			SweepInterval: getEnvDuration("RESERVATION_SWEEP_INTERVAL", time.Minute),
			SweepBatch:    getEnvInt("RESERVATION_SWEEP_BATCH", 100),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 50),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 100),
			IdleTTL:           getEnvDuration("RATE_LIMIT_IDLE_TTL", 10*time.Minute),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9096"),
		},
		Tracing: TracingConfig{
			ServiceName: getEnv("OTEL_SERVICE_NAME", "omnipos-reservation-service"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio: getEnvFloat("OTEL_TRACES_SAMPLER_RATIO", 1),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("30s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}
	return fallback
}
