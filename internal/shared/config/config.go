package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration with CLI override support.
//
// Precedence, lowest to highest: built-in defaults, YAML config file,
// TRINOBRIDGE_* environment variables, explicit CLI overrides.
func LoadConfig[T any](configFile string, overrides map[string]interface{}) (*T, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// Look for config in current directory and home directory
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.trinobridge")
	}

	setDefaults(v)

	// Config file not found is OK, defaults and environment cover it
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variable support
	v.SetEnvPrefix("TRINOBRIDGE")
	v.AutomaticEnv()

	// Apply CLI overrides last
	for key, value := range overrides {
		if value != nil {
			v.Set(key, value)
		}
	}

	var config T
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("transport", "stdio")
	v.SetDefault("listen_host", "127.0.0.1")
	v.SetDefault("listen_port", 0)
	v.SetDefault("upstream_url", "http://localhost:8000/mcp")
	v.SetDefault("upstream_timeout", "60s")
	v.SetDefault("probe_upstream", true)
	v.SetDefault("log_level", "info")
}
