package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// OpenAIConfig configures the completion client. BaseURL is overridable so
// the client can point at any OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// JWTConfig defines JWT specific configuration. Tokens are issued by the
// platform's auth service; this service only verifies them.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// PipelineConfig holds the generation pipeline knobs.
type PipelineConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`      // repair-loop budget
	MaxToolRounds  int           `mapstructure:"max_tool_rounds"`  // tool-use loop bound
	RagTimeout     time.Duration `mapstructure:"rag_timeout"`      // hard retrieval timeout
	RagLimit       int           `mapstructure:"rag_limit"`        // top-N retrieved contexts
	GenerateLimit  int           `mapstructure:"generate_limit"`   // requests per generate window
	GenerateWindow time.Duration `mapstructure:"generate_window"`
	ChatLimit      int           `mapstructure:"chat_limit"` // requests per chat window
	ChatWindow     time.Duration `mapstructure:"chat_window"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variable handling, e.g. openai.api_key -> OPENAI_API_KEY
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "coach_ai")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("openai.timeout", "120s")
	viper.SetDefault("pipeline.max_retries", 2)
	viper.SetDefault("pipeline.max_tool_rounds", 6)
	viper.SetDefault("pipeline.rag_timeout", "2s")
	viper.SetDefault("pipeline.rag_limit", 3)
	viper.SetDefault("pipeline.generate_limit", 5)
	viper.SetDefault("pipeline.generate_window", "5m")
	viper.SetDefault("pipeline.chat_limit", 20)
	viper.SetDefault("pipeline.chat_window", "60s")

	err = viper.ReadInConfig()
	// Config file is optional; env vars and defaults may be enough.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
