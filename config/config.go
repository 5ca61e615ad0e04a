package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	POSAPI   POSAPIConfig
	Display  DisplayConfig
	Checkout CheckoutConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Observ   ObservabilityConfig
}

type ServerConfig struct {
	Port       string
	Env        string
	TerminalID string
}

type POSAPIConfig struct {
	BaseURL       string
	ProductsURL   string
	CSRFToken     string
	SessionCookie string
	Timeout       time.Duration
}

type DisplayConfig struct {
	CurrencySymbol    string
	ThousandSeparator bool
	DecimalPlaces     int
}

type CheckoutConfig struct {
	TaxRatePercent string
	Cooldown       time.Duration
	RequirePayment bool
	OrderStatus    string
}

// DatabaseConfig enables the sales journal when URL is set
type DatabaseConfig struct {
	URL string
}

// RedisConfig enables the submission lock and receipt cache when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig enables terminal events and catalog updates when Brokers is not empty
type KafkaConfig struct {
	Brokers             []string
	TopicTerminalEvents string
	TopicProductEvents  string
	ConsumerGroup       string
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

func Load() *Config {
	_ = godotenv.Load()

	terminalID := getEnv("TERMINAL_ID", "terminal-1")

	cfg := &Config{
		Server: ServerConfig{
			Port:       getEnv("PORT", "8080"),
			Env:        getEnv("ENV", "development"),
			TerminalID: terminalID,
		},
		POSAPI: POSAPIConfig{
			BaseURL:       getEnv("POS_API_BASE_URL", "http://localhost:8000/api/sales/"),
			ProductsURL:   getEnv("POS_PRODUCTS_URL", "http://localhost:8000/api/products/"),
			CSRFToken:     getEnv("POS_CSRF_TOKEN", ""),
			SessionCookie: getEnv("POS_SESSION_COOKIE", ""),
			Timeout:       time.Duration(getInt("POS_HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Display: DisplayConfig{
			CurrencySymbol:    getEnv("CURRENCY_SYMBOL", "P"),
			ThousandSeparator: getBool("THOUSAND_SEPARATOR", true),
			DecimalPlaces:     getInt("DECIMAL_PLACES", 2),
		},
		Checkout: CheckoutConfig{
			TaxRatePercent: getEnv("TAX_RATE_PERCENT", "8"),
			Cooldown:       time.Duration(getInt("CHECKOUT_COOLDOWN_MS", 2000)) * time.Millisecond,
			RequirePayment: getBool("REQUIRE_PAYMENT", false),
			OrderStatus:    getEnv("ORDER_STATUS", "completed"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:             splitList(getEnv("KAFKA_BROKERS", "")),
			TopicTerminalEvents: getEnv("KAFKA_TOPIC_TERMINAL_EVENTS", "pos-terminal-events"),
			TopicProductEvents:  getEnv("KAFKA_TOPIC_PRODUCT_EVENTS", "product-events"),
			ConsumerGroup:       getEnv("KAFKA_CONSUMER_GROUP", "pos-terminal-"+terminalID),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", ""),
		},
	}

	log.Printf("Config loaded: env=%s, port=%s, terminal=%s", cfg.Server.Env, cfg.Server.Port, cfg.Server.TerminalID)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return n
}

func getBool(key string, defaultVal bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultVal
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
