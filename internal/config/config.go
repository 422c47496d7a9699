// Package config provides configuration for the orchestration engine.
package config

import (
	"os"
	"strconv"
)

// Config holds the engine configuration.
type Config struct {
	// Server settings
	Port int

	// Database
	DatabaseURL string

	// Model provider
	ModelName      string
	OpenAIAPIKey   string
	FireworksKey   string
	FireworksModel string

	// Delegation policy
	MaxDepth             int
	MaxChildren          int
	RouterIndexLimit     int
	SpecialistIndexLimit int

	// Directory agent
	MainRouterSlug string
	MainRouterName string

	// Seed agents
	SeedAgentsFile string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:                 getEnvInt("PORT", 4000),
		DatabaseURL:          getEnv("DATABASE_URL", "file:planweave.db?cache=shared&mode=rwc"),
		ModelName:            getEnv("MODEL_NAME", "gpt-4o"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		FireworksKey:         os.Getenv("FIREWORKS_API_KEY"),
		FireworksModel:       getEnv("FIREWORKS_MODEL", "accounts/fireworks/models/llama-v3p1-70b-instruct"),
		MaxDepth:             getEnvInt("A2A_MAX_DEPTH", 2),
		MaxChildren:          getEnvInt("A2A_MAX_CHILDREN", 3),
		RouterIndexLimit:     getEnvInt("A2A_ROUTER_INDEX_LIMIT", 50),
		SpecialistIndexLimit: getEnvInt("A2A_SPECIALIST_INDEX_LIMIT", 50),
		MainRouterSlug:       getEnv("MAIN_ROUTER_SLUG", "main-router"),
		MainRouterName:       getEnv("MAIN_ROUTER_NAME", "Main Router"),
		SeedAgentsFile:       os.Getenv("SEED_AGENTS_FILE"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt parses a positive integer variable, falling back to the default
// when unset, unparseable, or non-positive.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultVal
}
