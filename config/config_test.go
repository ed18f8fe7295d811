package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "label", cfg.Grading.Strategy)
	assert.Equal(t, 500, cfg.Analysis.MaxNodeExecutions)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Analysis.TopK)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("AWS_S3_BUCKET", "condo-files")
	t.Setenv("GRADING_STRATEGY", "rerank")
	t.Setenv("GRADING_THRESHOLD", "0.3")
	t.Setenv("COHERE_API_KEY", "c-key")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_TTL", "10m")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RETRIEVAL_TOP_K", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "g-key", cfg.Gemini.APIKey)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "condo-files", cfg.Storage.S3Bucket)
	assert.Equal(t, "rerank", cfg.Grading.Strategy)
	assert.InDelta(t, 0.3, cfg.Grading.Threshold, 1e-9)
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Analysis.TopK)
	assert.True(t, cfg.RedisEnabled())
	assert.True(t, cfg.KafkaEnabled())
	assert.NoError(t, cfg.Validate())
}

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Port: "8080"},
		Database:  DatabaseConfig{URL: "postgres://localhost/condolex"},
		Gemini:    GeminiConfig{APIKey: "key"},
		Storage:   StorageConfig{Type: "local", LocalPath: "./files"},
		Grading:   GradingConfig{Strategy: "label", Threshold: 0.5},
		Retrieval: RetrievalConfig{TopK: 5},
		Analysis:  AnalysisConfig{MaxNodeExecutions: 500, TopK: 5},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing gemini key", mutate: func(c *Config) { c.Gemini.APIKey = "" }, wantErr: "GEMINI_API_KEY"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "ftp" }, wantErr: "unknown storage type"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Type = "s3" }, wantErr: "AWS_S3_BUCKET"},
		{name: "rerank without cohere", mutate: func(c *Config) { c.Grading.Strategy = "rerank" }, wantErr: "COHERE_API_KEY"},
		{name: "unknown strategy", mutate: func(c *Config) { c.Grading.Strategy = "vote" }, wantErr: "unknown grading strategy"},
		{name: "zero ceiling", mutate: func(c *Config) { c.Analysis.MaxNodeExecutions = 0 }, wantErr: "max_node_executions"},
		{name: "zero analysis top_k", mutate: func(c *Config) { c.Analysis.TopK = 0 }, wantErr: "analysis top_k"},
		{
			name: "threshold out of range",
			mutate: func(c *Config) {
				c.Grading.Strategy = "rerank"
				c.Cohere.APIKey = "key"
				c.Grading.Threshold = 1.5
			},
			wantErr: "threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
