/**
 * @description
 * This package handles the configuration management for the bank simulator. It
 * uses the Viper library to read configuration from environment variables.
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

// Config holds all the configuration variables for the bank simulator.
// These values are loaded from environment variables.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	TokenSecret            string `mapstructure:"TOKEN_SECRET"`
	AccessTokenTTLMinutes  int    `mapstructure:"ACCESS_TOKEN_TTL_MINUTES"`
	RefreshTokenTTLMinutes int    `mapstructure:"REFRESH_TOKEN_TTL_MINUTES"`
	InitialBalance         int64  `mapstructure:"INITIAL_BALANCE"`
}

// LoadConfig reads configuration from environment variables from the given path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8081")
	viper.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 1440)
	viper.SetDefault("REFRESH_TOKEN_TTL_MINUTES", 20160)
	viper.SetDefault("INITIAL_BALANCE", 1000000)

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("TOKEN_SECRET")
	_ = viper.BindEnv("ACCESS_TOKEN_TTL_MINUTES")
	_ = viper.BindEnv("REFRESH_TOKEN_TTL_MINUTES")
	_ = viper.BindEnv("INITIAL_BALANCE")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if config.AccessTokenTTLMinutes <= 0 {
		config.AccessTokenTTLMinutes = 1440
	}
	if config.RefreshTokenTTLMinutes <= 0 {
		config.RefreshTokenTTLMinutes = 20160
	}
	if config.InitialBalance < 0 {
		config.InitialBalance = 0
	}

	return
}
