package config

import (
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads the configuration from file and environment variables.
// Environment variables use the ARCO prefix with dots replaced by underscores,
// e.g. ARCO_JWT_SECRET overrides jwt.secret.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)
	v.SetDefault("jwt.access_token_ttl", 900)
	v.SetDefault("jwt.refresh_token_ttl", 604800)
	v.SetDefault("signature.max_age", 300)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_limit", 10)
	v.SetDefault("rate_limit.default_window", 60)
	v.SetDefault("kafka.topic", "auth.token.revoked")
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/arcoserve/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("ARCO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
