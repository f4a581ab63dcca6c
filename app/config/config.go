package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       Log       `yaml:"log"`
	DB        DB        `yaml:"db"`
	Server    Server    `yaml:"server"`
	OpenAI    OpenAI    `yaml:"openai"`
	Assistant Assistant `yaml:"assistant"`
	Calendar  Calendar  `yaml:"calendar"`
}

type OpenAI struct {
	Router    ModelConfig     `yaml:"router" validate:"required"`
	Planner   ModelConfig     `yaml:"planner" validate:"required"`
	Response  ModelConfig     `yaml:"response" validate:"required"`
	Embedding EmbeddingConfig `yaml:"embedding" validate:"required"`
}

type ModelConfig struct {
	// OpenAI-compatible base url
	BaseURL string `yaml:"base_url" example:"https://api.groq.com/openai/v1" validate:"required"`
	// API token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Model name
	Model string `yaml:"model" example:"llama-3.3-70b-versatile" validate:"required"`
}

type EmbeddingConfig struct {
	// OpenAI-compatible base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// API token
	Token string `yaml:"token" validate:"required"`
	// Embedding model name
	Model string `yaml:"model" example:"text-embedding-3-small" validate:"required"`
	// Embedding cache capacity
	CacheSize int `yaml:"cache_size" example:"1000"`
}

type Assistant struct {
	// IANA timezone used for date resolution in prompts
	Timezone string `yaml:"timezone" example:"Australia/Brisbane"`
	// Number of turns passed to the planner and responder
	HistoryWindow int `yaml:"history_window" example:"10"`
	// Name used when signing generated emails
	SignatureName string `yaml:"signature_name" example:"Ivan"`
}

type Calendar struct {
	// Recurring event titles excluded from fetched context
	NoiseTitles []string `yaml:"noise_titles"`
}

type Server struct {
	// API listen address
	Listen string `yaml:"listen" example:":8080"`
	// Prometheus listen address, empty disables metrics
	MetricsListen string `yaml:"metrics_listen" example:":9090"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type DB struct {
	// Path to the sqlite database file
	Path string `yaml:"path" example:"data/donna.db"`
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.DB.Path == "" {
		result.DB.Path = "data/donna.db"
	}
	if result.Server.Listen == "" {
		result.Server.Listen = ":8080"
	}
	if result.OpenAI.Embedding.CacheSize <= 0 {
		result.OpenAI.Embedding.CacheSize = 1000
	}
	if result.Assistant.Timezone == "" {
		result.Assistant.Timezone = "UTC"
	}
	if result.Assistant.HistoryWindow <= 0 {
		result.Assistant.HistoryWindow = 10
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}
