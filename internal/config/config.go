package config

import "github.com/caarlos0/env/v10"

// Config centralizes service configuration.
type Config struct {
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL,required"`
	LLMAPIKey      string `env:"LLM_API_KEY,required"`
	LLMBaseURL     string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel       string `env:"LLM_MODEL" envDefault:"gpt-5.1"`
	LLMVisionModel string `env:"LLM_VISION_MODEL" envDefault:"gpt-5.1"`
	LLMEmbedModel  string `env:"LLM_EMBED_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDim   int    `env:"EMBEDDING_DIM" envDefault:"1024"`
	RetrievalK     int    `env:"RETRIEVAL_K" envDefault:"6"`

	ChunkMaxTokens     int `env:"CHUNK_MAX_TOKENS" envDefault:"500"`
	ChunkOverlapTokens int `env:"CHUNK_OVERLAP_TOKENS" envDefault:"50"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"1440"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
