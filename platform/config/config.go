// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// ChatwootConfig provides settings for the Chatwoot API client.
type ChatwootConfig interface {
	GetChatwootBaseURL() string
	GetChatwootAccountID() string
	GetChatwootToken() string
	GetChatwootTimeout() time.Duration
	IsChatwootConfigured() bool
}

// FunnelConfig provides settings for the stage-move service.
type FunnelConfig interface {
	GetLabelStrategy() string
}

// CacheConfig provides settings for the optional Redis contact cache.
type CacheConfig interface {
	GetRedisURL() string
	GetBoardCacheTTL() time.Duration
	IsCacheEnabled() bool
}

// BoardConfig provides settings for board rendering.
type BoardConfig interface {
	GetStagesFile() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// Label reconciliation strategies for funnel stage labels.
const (
	// LabelStrategyMerge keeps unrelated labels and swaps only the stage slug.
	LabelStrategyMerge = "merge"
	// LabelStrategyReplace overwrites the label set with the stage slug alone.
	LabelStrategyReplace = "replace"
)

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string
	HTTPAddr          string
	CORSAllowAll      bool
	CORSOrigins       []string
	CORSAllowCreds    bool
	ChatwootBaseURL   string
	ChatwootAccountID string
	ChatwootToken     string
	ChatwootTimeout   time.Duration
	LabelStrategy     string
	RedisURL          string
	BoardCacheTTL     time.Duration
	StagesFile        string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// ChatwootConfig implementation
func (c *Config) GetChatwootBaseURL() string          { return c.ChatwootBaseURL }
func (c *Config) GetChatwootAccountID() string        { return c.ChatwootAccountID }
func (c *Config) GetChatwootToken() string            { return c.ChatwootToken }
func (c *Config) GetChatwootTimeout() time.Duration   { return c.ChatwootTimeout }
func (c *Config) IsChatwootConfigured() bool {
	return c.ChatwootAccountID != "" && c.ChatwootToken != ""
}

// FunnelConfig implementation
func (c *Config) GetLabelStrategy() string { return c.LabelStrategy }

// CacheConfig implementation
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetBoardCacheTTL() time.Duration    { return c.BoardCacheTTL }
func (c *Config) IsCacheEnabled() bool               { return c.RedisURL != "" }

// BoardConfig implementation
func (c *Config) GetStagesFile() string { return c.StagesFile }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// Load reads configuration from environment variables.
//
// The Chatwoot credential variables keep the names used by existing
// deployments, with their historical fallbacks. A missing account id or
// token is not a load error: the server still starts and serves its health
// endpoint, and contact-data endpoints report missing configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	baseURL := firstEnv("CHATWOOT_BASE_URL", "CHATWOOT_URL")
	if baseURL == "" {
		baseURL = "https://app.chatwoot.com"
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":3000"),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		CORSAllowCreds:    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		ChatwootBaseURL:   strings.TrimRight(baseURL, "/"),
		ChatwootAccountID: firstEnv("CHATWOOT_ACCOUNT_ID", "CHATWOOT_ACCOUNT"),
		ChatwootToken:     firstEnv("CHATWOOT_API_ACCESS_TOKEN", "CHATWOOT_API_TOKEN", "CHATWOOT_TOKEN"),
		ChatwootTimeout:   mustDuration(getEnv("CHATWOOT_TIMEOUT", "15s"), 15*time.Second),
		LabelStrategy:     strings.ToLower(getEnv("FUNNEL_LABEL_STRATEGY", LabelStrategyMerge)),
		RedisURL:          getEnv("REDIS_URL", ""),
		BoardCacheTTL:     mustDuration(getEnv("BOARD_CACHE_TTL", "30s"), 30*time.Second),
		StagesFile:        getEnv("STAGES_FILE", ""),
	}

	if cfg.LabelStrategy != LabelStrategyMerge && cfg.LabelStrategy != LabelStrategyReplace {
		return nil, fmt.Errorf("FUNNEL_LABEL_STRATEGY must be %q or %q", LabelStrategyMerge, LabelStrategyReplace)
	}
	if cfg.ChatwootTimeout <= 0 {
		return nil, fmt.Errorf("CHATWOOT_TIMEOUT must be positive")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// firstEnv returns the first non-empty value among the given variables,
// trimmed of surrounding whitespace.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
