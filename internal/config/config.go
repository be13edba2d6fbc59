package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type ServerConfig struct {
	HTTPPort        string
	RPCPort         string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
	Audience  string
}

type DownstreamConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type CartConfig struct {
	ExpirationDays     int
	MaxItems           int
	MaxQuantityPerItem int
	MinOrderAmount     float64
	ReservationTimeout time.Duration
}

type PricingConfig struct {
	TaxRate               float64
	ShippingCost          float64
	FreeShippingThreshold float64
	Currency              string
	DecimalPlaces         int
}

type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
}

type KafkaConfig struct {
	Brokers             []string
	OrderCompletedTopic string
	GroupID             string
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Product   DownstreamConfig
	Inventory DownstreamConfig
	Cart      CartConfig
	Pricing   PricingConfig
	RateLimit RateLimitConfig
	Kafka     KafkaConfig
}

// Load reads configuration from the environment, falling back to defaults
// usable for local development. Call Validate before using the result.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        getEnv("HTTP_PORT", "8002"),
			RPCPort:         getEnv("RPC_PORT", "50055"),
			RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "ecommerce:"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
			Issuer:    getEnv("JWT_ISSUER", "ecommerce-api"),
			Audience:  getEnv("JWT_AUDIENCE", "ecommerce-clients"),
		},
		Product: DownstreamConfig{
			BaseURL:    getEnv("PRODUCT_SERVICE_URL", "http://localhost:50053"),
			Timeout:    getEnvDuration("PRODUCT_SERVICE_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvInt("PRODUCT_SERVICE_MAX_RETRIES", 3),
			RetryDelay: getEnvDuration("PRODUCT_SERVICE_RETRY_DELAY", time.Second),
		},
		Inventory: DownstreamConfig{
			BaseURL:    getEnv("INVENTORY_SERVICE_URL", "http://localhost:50054"),
			Timeout:    getEnvDuration("INVENTORY_SERVICE_TIMEOUT", 10*time.Second),
			MaxRetries: getEnvInt("INVENTORY_SERVICE_MAX_RETRIES", 3),
			RetryDelay: getEnvDuration("INVENTORY_SERVICE_RETRY_DELAY", time.Second),
		},
		Cart: CartConfig{
			ExpirationDays:     getEnvInt("CART_EXPIRATION_DAYS", 30),
			MaxItems:           getEnvInt("MAX_CART_ITEMS", 100),
			MaxQuantityPerItem: getEnvInt("MAX_QUANTITY_PER_ITEM", 10),
			MinOrderAmount:     getEnvFloat("MIN_ORDER_AMOUNT", 10.0),
			ReservationTimeout: getEnvDuration("CART_RESERVATION_TIMEOUT", 15*time.Minute),
		},
		Pricing: PricingConfig{
			TaxRate:               getEnvFloat("TAX_RATE", 0.1),
			ShippingCost:          getEnvFloat("SHIPPING_COST", 10.0),
			FreeShippingThreshold: getEnvFloat("FREE_SHIPPING_THRESHOLD", 100.0),
			Currency:              getEnv("CURRENCY", "VND"),
			DecimalPlaces:         getEnvInt("DECIMAL_PLACES", 2),
		},
		RateLimit: RateLimitConfig{
			Window:      getEnvDuration("CART_RATE_LIMIT_WINDOW", time.Minute),
			MaxRequests: getEnvInt("CART_RATE_LIMIT_MAX_REQUESTS", 30),
		},
		Kafka: KafkaConfig{
			Brokers:             getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			OrderCompletedTopic: getEnv("KAFKA_TOPIC_ORDER_COMPLETED", "order.completed"),
			GroupID:             getEnv("KAFKA_GROUP_ID", "cart-service-consumer"),
		},
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []string

	if len(c.JWT.SecretKey) < 32 {
		errs = append(errs, "JWT_SECRET_KEY must be at least 32 characters")
	}
	if c.Cart.MaxItems <= 0 {
		errs = append(errs, "MAX_CART_ITEMS must be greater than 0")
	}
	if c.Cart.MaxQuantityPerItem <= 0 {
		errs = append(errs, "MAX_QUANTITY_PER_ITEM must be greater than 0")
	}
	if c.Cart.ExpirationDays <= 0 {
		errs = append(errs, "CART_EXPIRATION_DAYS must be greater than 0")
	}
	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate >= 1 {
		errs = append(errs, "TAX_RATE must be a fraction in [0, 1)")
	}
	if c.Pricing.DecimalPlaces < 0 || c.Pricing.DecimalPlaces > 8 {
		errs = append(errs, "DECIMAL_PLACES must be between 0 and 8")
	}
	if c.RateLimit.MaxRequests <= 0 {
		errs = append(errs, "CART_RATE_LIMIT_MAX_REQUESTS must be greater than 0")
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, "CART_RATE_LIMIT_WINDOW must be a positive duration")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// CartTTL is the rolling expiry applied on every cart write.
func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.Cart.ExpirationDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
