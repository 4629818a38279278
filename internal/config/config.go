package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	LogLevel          string `yaml:"log-level" env:"TICTACTOE_LOG_LEVEL" env-default:"info"`
	HTTPPort          string `yaml:"http-port" env:"TICTACTOE_HTTP_PORT" env-default:"9090"`
	SocketPort        string `yaml:"socket-port" env:"TICTACTOE_SOCKET_PORT" env-default:"3000"`
	Storage           string `yaml:"storage" env:"TICTACTOE_STORAGE" env-default:"redis"`
	SessionStore      string `yaml:"session-store" env:"TICTACTOE_SESSION_STORE" env-default:"memory"`
	Redis             Redis  `yaml:"redis"`
	SQLiteStoragePath string `yaml:"sqlite-storage-path" env:"TICTACTOE_SQLITE_STORAGE_PATH" env-default:"tictactoe.db"`
}

type Redis struct {
	Host     string `yaml:"host" env:"TICTACTOE_REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"TICTACTOE_REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"TICTACTOE_REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"TICTACTOE_REDIS_DB" env-default:"0"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(err)
	}

	return config
}

// Load - reads the config file and applies environment overrides.
func Load(path string) (*Config, error) {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		return nil, fmt.Errorf("unable to load config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate - checks the values cleanenv can't.
func (that *Config) Validate() error {
	switch that.Storage {
	case StorageRedis, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage %q", that.Storage)
	}

	switch that.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("unknown session store %q", that.SessionStore)
	}

	return nil
}

// NeedsRedis - true when any component is backed by redis.
func (that *Config) NeedsRedis() bool {
	return that.Storage == StorageRedis || that.SessionStore == SessionStoreRedis
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
