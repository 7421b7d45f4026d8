/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the claims-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort              string `mapstructure:"SERVER_PORT"`
	DatabaseURL             string `mapstructure:"DATABASE_URL"`
	RabbitMQURL             string `mapstructure:"RABBITMQ_URL"`
	ClaimEventExchange      string `mapstructure:"CLAIM_EVENT_EXCHANGE"`
	RedisURL                string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix    string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	ClaimRateLimitPerMinute int    `mapstructure:"CLAIM_RATE_LIMIT_PER_MINUTE"`
	JWTSecret               string `mapstructure:"JWT_SECRET"`
	JWTTTLMinutes           int    `mapstructure:"JWT_TTL_MINUTES"`
	WhatsAppAPIURL          string `mapstructure:"WHATSAPP_API_URL"`
	WhatsAppAPIToken        string `mapstructure:"WHATSAPP_API_TOKEN"`
	WhatsAppTimeoutSeconds  int    `mapstructure:"WHATSAPP_TIMEOUT"`
	WhatsAppMaxRetries      int    `mapstructure:"WHATSAPP_MAX_RETRIES"`
	WhatsAppEnabled         bool   `mapstructure:"WHATSAPP_ENABLED"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CLAIM_EVENT_EXCHANGE", "agrisafe.events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "agrisafe:rate_limit")
	viper.SetDefault("CLAIM_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("JWT_TTL_MINUTES", 720)
	viper.SetDefault("WHATSAPP_API_URL", "https://api.tryowbot.com/sender")
	viper.SetDefault("WHATSAPP_TIMEOUT", 30)
	viper.SetDefault("WHATSAPP_MAX_RETRIES", 3)
	viper.SetDefault("WHATSAPP_ENABLED", true)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("CLAIM_EVENT_EXCHANGE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("CLAIM_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_TTL_MINUTES")
	_ = viper.BindEnv("WHATSAPP_API_URL")
	_ = viper.BindEnv("WHATSAPP_API_TOKEN")
	_ = viper.BindEnv("WHATSAPP_TIMEOUT")
	_ = viper.BindEnv("WHATSAPP_MAX_RETRIES")
	_ = viper.BindEnv("WHATSAPP_ENABLED")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	config.JWTSecret = strings.TrimSpace(config.JWTSecret)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "agrisafe:rate_limit"
	}

	if config.WhatsAppTimeoutSeconds <= 0 {
		log.Printf("level=warn component=config msg=\"invalid whatsapp timeout; using default\" timeout=%d", config.WhatsAppTimeoutSeconds)
		config.WhatsAppTimeoutSeconds = 30
	}
	if config.WhatsAppMaxRetries <= 0 {
		log.Printf("level=warn component=config msg=\"invalid whatsapp max retries; using default\" max_retries=%d", config.WhatsAppMaxRetries)
		config.WhatsAppMaxRetries = 3
	}
	if config.JWTTTLMinutes <= 0 {
		config.JWTTTLMinutes = 720
	}
	if config.ClaimRateLimitPerMinute < 0 {
		config.ClaimRateLimitPerMinute = 0
	}

	return
}
