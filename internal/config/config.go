package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string
	DatabasePath string
	IndexPath    string
	RulesPath    string
	HTTPPort     string
	LogLevel     string
	JWTSecret    string

	// SafetyThreshold is the oracle score at or above which a message is
	// flagged instead of safe.
	SafetyThreshold float64

	// EvalConcurrency caps simultaneous in-flight oracle calls.
	EvalConcurrency int

	// EvalTimeoutSec bounds a single oracle call; on expiry the record is
	// marked unverified.
	EvalTimeoutSec int

	// MinContentLen is the minimum content length for a safe message to be
	// published to the index.
	MinContentLen int

	// ScoringInstruction, when set, replaces the built-in oracle system
	// instruction.
	ScoringInstruction string
}

func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional; environment variables win

	cfg := &Config{
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		DatabasePath:    getEnv("DATABASE_PATH", "intel.db"),
		IndexPath:       getEnv("INDEX_PATH", "intel_index.db"),
		RulesPath:       getEnv("RULES_PATH", ""),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		SafetyThreshold: getEnvAsFloat("SAFETY_THRESHOLD", 0.6),
		EvalConcurrency: getEnvAsInt("EVAL_CONCURRENCY", 4),
		EvalTimeoutSec:  getEnvAsInt("EVAL_TIMEOUT_SEC", 30),
		MinContentLen:   getEnvAsInt("MIN_CONTENT_LEN", 10),

		ScoringInstruction: getEnv("SCORING_INSTRUCTION", ""),
	}

	if cfg.SafetyThreshold < 0 || cfg.SafetyThreshold > 1 {
		return nil, fmt.Errorf("SAFETY_THRESHOLD must be in [0,1], got %v", cfg.SafetyThreshold)
	}
	if cfg.EvalConcurrency < 1 {
		return nil, fmt.Errorf("EVAL_CONCURRENCY must be >= 1, got %d", cfg.EvalConcurrency)
	}

	return cfg, nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
