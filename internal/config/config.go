package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration. It is built once at startup and
// passed by value; nothing mutates it afterwards.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	LogLevel    string

	HTTPAddr string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	UsageAPI  UsageAPIConfig
	Store     StoreConfig
	SMTP      SMTPConfig
	Reconcile ReconcileConfig
}

// UsageAPIConfig points at the external usage metering service.
type UsageAPIConfig struct {
	BaseURL      string
	AuthToken    string
	Timeout      time.Duration
	PollInterval time.Duration
	PollAttempts int
}

// StoreConfig points at the billing-side object store service.
type StoreConfig struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// SMTPConfig configures the best-effort notifier. Recipients is the default
// distribution list for reconciliation reports.
type SMTPConfig struct {
	Enabled    bool
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// ReconcileConfig carries reconciliation policy knobs.
type ReconcileConfig struct {
	// ClientNumberExceptions lists client numbers exempt from the
	// five-character format rule.
	ClientNumberExceptions []string
	RunInterval            time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "concord"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		OtelEnabled:          getenvBool("OTEL_ENABLED", false),
		OtelExporterEndpoint: strings.TrimSpace(getenv("OTEL_EXPORTER_ENDPOINT", "localhost:4317")),
		OtelExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_PROTOCOL", "grpc")),
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "concord"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 2),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 10),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		UsageAPI: UsageAPIConfig{
			BaseURL:      strings.TrimRight(getenv("USAGE_API_URL", ""), "/"),
			AuthToken:    strings.TrimSpace(getenv("USAGE_API_TOKEN", "")),
			Timeout:      getenvDuration("USAGE_API_TIMEOUT", 30*time.Second),
			PollInterval: getenvDuration("USAGE_API_POLL_INTERVAL", 10*time.Second),
			PollAttempts: getenvInt("USAGE_API_POLL_ATTEMPTS", 6),
		},

		Store: StoreConfig{
			BaseURL:   strings.TrimRight(getenv("OBJECT_STORE_URL", ""), "/"),
			AuthToken: strings.TrimSpace(getenv("OBJECT_STORE_TOKEN", "")),
			Timeout:   getenvDuration("OBJECT_STORE_TIMEOUT", 30*time.Second),
		},

		SMTP: SMTPConfig{
			Enabled:    getenvBool("SMTP_ENABLED", false),
			Host:       getenv("SMTP_HOST", "localhost"),
			Port:       getenvInt("SMTP_PORT", 587),
			Username:   getenv("SMTP_USERNAME", ""),
			Password:   getenv("SMTP_PASSWORD", ""),
			From:       getenv("SMTP_FROM", "concord@localhost"),
			Recipients: getenvList("SMTP_RECIPIENTS"),
		},

		Reconcile: ReconcileConfig{
			ClientNumberExceptions: getenvList("CLIENT_NUMBER_EXCEPTIONS"),
			RunInterval:            getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
