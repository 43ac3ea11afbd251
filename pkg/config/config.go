package config

import "time"

// Gateway definition chat_gateway YAML structure
type Gateway struct {
	Port     string
	MongoSQL DatabaseConfig `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres DatabaseConfig `mapstructure:"pg"`
}

// Client definition chat client YAML structure
type Client struct {
	GatewayURL     string        `mapstructure:"gateway_url"`
	SocketURL      string        `mapstructure:"socket_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}
