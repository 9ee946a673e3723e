// Package config holds the application's typed configuration and its viper loader.
package config

import (
	"fmt"
	"time"
)

// Config holds the application's configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Signature SignatureConfig `mapstructure:"signature"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	EnablePprof  bool   `mapstructure:"enable_pprof"`
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  int    `mapstructure:"dial_timeout"`  // in seconds
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
}

type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	Issuer          string `mapstructure:"issuer"`
	Audience        string `mapstructure:"audience"`
	AccessTokenTTL  int    `mapstructure:"access_token_ttl"`  // in seconds
	RefreshTokenTTL int    `mapstructure:"refresh_token_ttl"` // in seconds
}

func (c *JWTConfig) AccessTTL() time.Duration  { return time.Duration(c.AccessTokenTTL) * time.Second }
func (c *JWTConfig) RefreshTTL() time.Duration { return time.Duration(c.RefreshTokenTTL) * time.Second }

type SignatureConfig struct {
	AccessKeyID string `mapstructure:"access_key_id"`
	SecretKey   string `mapstructure:"secret_key"`
	MaxAge      int    `mapstructure:"max_age"` // in seconds
}

type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	DefaultLimit  int  `mapstructure:"default_limit"`
	DefaultWindow int  `mapstructure:"default_window"` // in seconds
}

type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
	SecretKey string `mapstructure:"secret_key"` // path of the secret holding jwt/signing keys
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if !c.Vault.Enabled {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required")
		}
		if c.Signature.SecretKey == "" {
			return fmt.Errorf("signature.secret_key is required")
		}
	}
	if c.JWT.Issuer == "" || c.JWT.Audience == "" {
		return fmt.Errorf("jwt.issuer and jwt.audience are required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	return nil
}
