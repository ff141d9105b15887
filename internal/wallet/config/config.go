/**
 * @description
 * This package handles the configuration management for the wallet service. It
 * uses the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisVerifyCodePrefix    string `mapstructure:"REDIS_VERIFY_CODE_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	BankAPIBaseURL           string `mapstructure:"BANK_API_BASE_URL"`
	BankOperatorToken        string `mapstructure:"BANK_OPERATOR_TOKEN"`
	BankOperatorAccount      string `mapstructure:"BANK_OPERATOR_ACCOUNT"`
	BankOperatorBank         string `mapstructure:"BANK_OPERATOR_BANK"`
	JWTSecret                string `mapstructure:"JWT_SECRET"`
	VerifyCodeTTLMinutes     int    `mapstructure:"VERIFY_CODE_TTL_MINUTES"`
	ReconcileIntervalSeconds int    `mapstructure:"RECONCILE_INTERVAL_SECONDS"`
	ReconcileMinAgeSeconds   int    `mapstructure:"RECONCILE_MIN_AGE_SECONDS"`
	ReconcileBatchSize       int    `mapstructure:"RECONCILE_BATCH_SIZE"`
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
	viper.SetDefault("REDIS_VERIFY_CODE_PREFIX", "wallet:verify_code")
	viper.SetDefault("VERIFY_CODE_TTL_MINUTES", 10)
	viper.SetDefault("RECONCILE_INTERVAL_SECONDS", 60)
	viper.SetDefault("RECONCILE_MIN_AGE_SECONDS", 300)
	viper.SetDefault("RECONCILE_BATCH_SIZE", 100)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_VERIFY_CODE_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("BANK_API_BASE_URL")
	_ = viper.BindEnv("BANK_OPERATOR_TOKEN")
	_ = viper.BindEnv("BANK_OPERATOR_ACCOUNT")
	_ = viper.BindEnv("BANK_OPERATOR_BANK")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("VERIFY_CODE_TTL_MINUTES")
	_ = viper.BindEnv("RECONCILE_INTERVAL_SECONDS")
	_ = viper.BindEnv("RECONCILE_MIN_AGE_SECONDS")
	_ = viper.BindEnv("RECONCILE_BATCH_SIZE")

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

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisVerifyCodePrefix = strings.TrimSpace(config.RedisVerifyCodePrefix)
	if config.RedisVerifyCodePrefix == "" {
		config.RedisVerifyCodePrefix = "wallet:verify_code"
	}
	if config.VerifyCodeTTLMinutes <= 0 {
		config.VerifyCodeTTLMinutes = 10
	}
	if config.ReconcileIntervalSeconds <= 0 {
		config.ReconcileIntervalSeconds = 60
	}
	if config.ReconcileMinAgeSeconds <= 0 {
		config.ReconcileMinAgeSeconds = 300
	}
	if config.ReconcileBatchSize <= 0 {
		config.ReconcileBatchSize = 100
	}

	return
}
