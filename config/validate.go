package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port cannot be empty")
	}

	if c.Database.URL == "" {
		return errors.New("database url cannot be empty")
	}

	if c.Gemini.APIKey == "" {
		return errors.New("GEMINI_API_KEY not set")
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalPath == "" {
			return errors.New("storage local_path cannot be empty for local storage")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("AWS_S3_BUCKET environment variable is required for S3 storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	switch c.Grading.Strategy {
	case "label":
	case "rerank":
		if c.Cohere.APIKey == "" {
			return errors.New("COHERE_API_KEY is required for the rerank grading strategy")
		}
		if c.Grading.Threshold < 0 || c.Grading.Threshold > 1 {
			return fmt.Errorf("grading threshold must be between 0 and 1, got %v", c.Grading.Threshold)
		}
	default:
		return fmt.Errorf("unknown grading strategy: %s", c.Grading.Strategy)
	}

	if c.Retrieval.TopK <= 0 {
		return errors.New("retrieval top_k must be positive")
	}

	if c.Analysis.MaxNodeExecutions <= 0 {
		return errors.New("analysis max_node_executions must be positive")
	}

	if c.Analysis.TopK <= 0 {
		return errors.New("analysis top_k must be positive")
	}

	if c.KafkaEnabled() && c.Kafka.Topic == "" {
		return errors.New("kafka topic cannot be empty when brokers are set")
	}

	return nil
}
