package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Vision    VisionConfig    `mapstructure:"vision"`
	Identify  IdentifyConfig  `mapstructure:"identify"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Session   SessionConfig   `mapstructure:"session"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type StorageConfig struct {
	Backend  string         `mapstructure:"backend"` // "file" or "postgres"
	Dir      string         `mapstructure:"dir"`
	Database DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type VisionConfig struct {
	Backend      string        `mapstructure:"backend"` // "http" or "openai"
	Endpoint     string        `mapstructure:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TargetLabels []string      `mapstructure:"target_labels"`
	TopK         int           `mapstructure:"top_k"`
	OpenAI       OpenAIConfig  `mapstructure:"openai"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type IdentifyConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// Identifications scoring below this are reported as "no match".
	// Zero reproduces the always-report behavior.
	MinConfidence float64 `mapstructure:"min_confidence"`
}

type BroadcastConfig struct {
	Workers     int           `mapstructure:"workers"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.database.host", "localhost")
	v.SetDefault("storage.database.port", 5432)
	v.SetDefault("storage.database.user", "postgres")
	v.SetDefault("storage.database.sslmode", "disable")
	v.SetDefault("vision.backend", "http")
	v.SetDefault("vision.timeout", "10s")
	v.SetDefault("vision.target_labels", []string{"cow", "ox"})
	v.SetDefault("vision.top_k", 3)
	v.SetDefault("vision.openai.model", "gpt-4o-mini")
	v.SetDefault("identify.timeout", "10s")
	v.SetDefault("identify.min_confidence", 0.6)
	v.SetDefault("broadcast.workers", 4)
	v.SetDefault("broadcast.send_timeout", "15s")
	v.SetDefault("session.ttl", "30m")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Storage.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.Vision.OpenAI.APIKey = apiKey
	}

	return &config, nil
}
