// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider API key lookup per provider kind

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/cortexnotes/cortex/llm"
)

// Settings holds all application configuration.
type Settings struct {
	Vault VaultConfig
	Log   LogConfig
}

// VaultConfig selects where and how the vault stores its JSON entries.
type VaultConfig struct {
	// Dir is the sandboxed root directory. For the sqlite backend it
	// holds the database file.
	Dir string

	// Backend is "dir" (one file per entry) or "sqlite" (one database).
	Backend string
}

// LogConfig controls log output and rotation.
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DatabasePath returns the sqlite file location inside the vault dir.
func (v VaultConfig) DatabasePath() string {
	return filepath.Join(v.Dir, "cortex.db")
}

// New loads settings from environment variables, applying defaults
// for anything unset. Returns an error on unparseable or out-of-set
// values rather than silently falling back.
func New() (Settings, error) {
	vaultDir := os.Getenv("CORTEX_VAULT_DIR")
	if vaultDir == "" {
		vaultDir = defaultVaultDir()
	}

	backend := os.Getenv("CORTEX_VAULT_BACKEND")
	if backend == "" {
		backend = "dir"
	}
	if backend != "dir" && backend != "sqlite" {
		return Settings{}, fmt.Errorf("invalid value for CORTEX_VAULT_BACKEND: %q (want dir or sqlite)", backend)
	}

	level := os.Getenv("CORTEX_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	if _, err := zerolog.ParseLevel(level); err != nil {
		return Settings{}, fmt.Errorf("invalid value for CORTEX_LOG_LEVEL: %q: %w", level, err)
	}

	logFile := os.Getenv("CORTEX_LOG_FILE")
	if logFile == "" {
		logFile = filepath.Join(vaultDir, "logs", "cortex.log")
	}

	maxSize, err := getEnvInt("CORTEX_LOG_MAX_SIZE_MB", 10)
	if err != nil {
		return Settings{}, err
	}
	maxBackups, err := getEnvInt("CORTEX_LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Settings{}, err
	}
	maxAge, err := getEnvInt("CORTEX_LOG_MAX_AGE_DAYS", 30)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		Vault: VaultConfig{
			Dir:     vaultDir,
			Backend: backend,
		},
		Log: LogConfig{
			Level:      level,
			File:       logFile,
			MaxSizeMB:  maxSize,
			MaxBackups: maxBackups,
			MaxAgeDays: maxAge,
		},
	}, nil
}

// MustNew loads settings and panics on invalid environment values.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// API key environment variables per provider kind. Ollama endpoints
// accept any key, so none is looked up.
var apiKeyEnvs = map[llm.Kind]string{
	llm.KindOpenAI:           "OPENAI_API_KEY",
	llm.KindOpenAICompatible: "OPENAI_COMPAT_API_KEY",
}

// APIKeyFor returns the environment API key for a provider kind, or
// empty when the kind needs none.
func APIKeyFor(kind llm.Kind) (string, error) {
	env, ok := apiKeyEnvs[kind]
	if !ok {
		return "", nil
	}
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", env)
	}
	return key, nil
}

func defaultVaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cortex"
	}
	return filepath.Join(home, ".cortex")
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}
