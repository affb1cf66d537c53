// Package config loads application configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	CachePath  string

	// RemoteURL and RemoteAnonKey identify the remote tea store
	// (endpoint URL and public client key). AccessToken is the user's
	// session token; row-level isolation on the remote store derives
	// the owner from it, never from request payloads.
	RemoteURL     string
	RemoteAnonKey string
	AccessToken   string

	// AnthropicAPIKey enables the optional tasting-notes suggester
	// when set. SuggestModel selects the model.
	AnthropicAPIKey string
	SuggestModel    string

	CORSOrigins []string

	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables. A .env file in
// the working directory is loaded first if present. Returns an error
// listing any required variables that are not set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		CachePath:       getEnv("CACHE_PATH", "/data/teamap.db"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		SuggestModel:    getEnv("SUGGEST_MODEL", "claude-3-5-haiku-latest"),
		CORSOrigins:     splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
	}

	var missing []string
	for _, v := range []struct {
		key string
		dst *string
	}{
		{"REMOTE_URL", &cfg.RemoteURL},
		{"REMOTE_ANON_KEY", &cfg.RemoteAnonKey},
		{"ACCESS_TOKEN", &cfg.AccessToken},
	} {
		*v.dst = strings.TrimSpace(os.Getenv(v.key))
		if *v.dst == "" {
			missing = append(missing, v.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
