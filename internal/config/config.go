package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds every setting the server reads at startup.
type Config struct {
	AppPort            string
	DatabaseDriver     string
	DatabaseDSN        string
	JWTSecret          string
	RabbitMQURL        string
	RedisAddr          string
	CacheTTL           time.Duration
	DeliveryFee        decimal.Decimal
	MinimumOrderValue  decimal.Decimal
	PaymentFailureRate float64
	CSRFEnabled        bool
	CORSOrigins        string
	StaffUsername      string
	StaffPassword      string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "bistro.db")
	v.SetDefault("JWT_SECRET", "supersecretjwtkey")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("DELIVERY_FEE", "5.00")
	v.SetDefault("MINIMUM_ORDER_VALUE", "0")
	v.SetDefault("PAYMENT_FAILURE_RATE", 0.0)
	v.SetDefault("CSRF_ENABLED", false)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("STAFF_USERNAME", "")
	v.SetDefault("STAFF_PASSWORD", "")
}

// Load reads a .env file when present, then environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		AppPort:            v.GetString("APP_PORT"),
		DatabaseDriver:     strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:        v.GetString("DATABASE_DSN"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		RabbitMQURL:        v.GetString("RABBITMQ_URL"),
		RedisAddr:          v.GetString("REDIS_ADDR"),
		CacheTTL:           v.GetDuration("CACHE_TTL"),
		DeliveryFee:        money(v, "DELIVERY_FEE"),
		MinimumOrderValue:  money(v, "MINIMUM_ORDER_VALUE"),
		PaymentFailureRate: v.GetFloat64("PAYMENT_FAILURE_RATE"),
		CSRFEnabled:        v.GetBool("CSRF_ENABLED"),
		CORSOrigins:        v.GetString("CORS_ORIGINS"),
		StaffUsername:      v.GetString("STAFF_USERNAME"),
		StaffPassword:      v.GetString("STAFF_PASSWORD"),
	}
}

func money(v *viper.Viper, key string) decimal.Decimal {
	d, err := decimal.NewFromString(v.GetString(key))
	if err != nil {
		log.Printf("Invalid %s %q, using 0: %v", key, v.GetString(key), err)
		return decimal.Zero
	}
	return d
}
