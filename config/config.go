package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "moob"
	// DefaultAPIBaseURL is used when neither config.json nor the environment set one.
	DefaultAPIBaseURL = "http://localhost:3000"
	// DefaultMaxFileSizeMB caps attachment uploads.
	DefaultMaxFileSizeMB = 10
	// DefaultPageSize is the sent-messages page size.
	DefaultPageSize = 10
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// DefaultAllowedMediaTypes lists the attachment types the backend accepts.
var DefaultAllowedMediaTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

// ClientConfig contains persistent local client settings.
type ClientConfig struct {
	InstallationID    string   `json:"installation_id" validate:"required,uuid"`
	APIBaseURL        string   `json:"api_base_url" validate:"required,url"`
	MaxFileSizeMB     int      `json:"max_file_size_mb" validate:"min=1,max=1024"`
	AllowedMediaTypes []string `json:"allowed_media_types" validate:"min=1,dive,required"`
	PageSize          int      `json:"page_size" validate:"min=1,max=100"`
	TokenKeyPath      string   `json:"token_key_path" validate:"required"`
}

// MaxFileSizeBytes returns the attachment limit in bytes.
func (c *ClientConfig) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// IsAllowedMediaType reports whether mediaType is in the accepted list.
func (c *ClientConfig) IsAllowedMediaType(mediaType string) bool {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, allowed := range c.AllowedMediaTypes {
		if strings.EqualFold(allowed, mediaType) {
			return true
		}
	}
	return false
}

// Validate checks field constraints.
func (c *ClientConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If MOOB_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("MOOB_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// EnsureDataDirectories creates the app data directory layout if needed.
func EnsureDataDirectories(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "keys"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	return nil
}

// Load reads and unmarshals config.json from disk.
func Load(path string) (*ClientConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg ClientConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *ClientConfig) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures directories and config exist, applies environment
// overrides, and returns the effective config with its path.
//
// A .env file in the working directory is loaded first when present.
// Environment overrides are not written back to config.json.
func LoadOrCreate() (*ClientConfig, string, error) {
	_ = godotenv.Load()

	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := EnsureDataDirectories(dataDir); err != nil {
		return nil, "", err
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = defaultConfig(dataDir)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	} else if normalizeDefaults(cfg, dataDir) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, cfgPath, nil
}

func defaultConfig(dataDir string) *ClientConfig {
	return &ClientConfig{
		InstallationID:    uuid.NewString(),
		APIBaseURL:        DefaultAPIBaseURL,
		MaxFileSizeMB:     DefaultMaxFileSizeMB,
		AllowedMediaTypes: append([]string(nil), DefaultAllowedMediaTypes...),
		PageSize:          DefaultPageSize,
		TokenKeyPath:      filepath.Join(dataDir, "keys", "token.key"),
	}
}

func normalizeDefaults(cfg *ClientConfig, dataDir string) bool {
	updated := false

	if cfg.InstallationID == "" {
		cfg.InstallationID = uuid.NewString()
		updated = true
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
		updated = true
	}
	if trimmed := strings.TrimRight(cfg.APIBaseURL, "/"); trimmed != cfg.APIBaseURL {
		cfg.APIBaseURL = trimmed
		updated = true
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = DefaultMaxFileSizeMB
		updated = true
	}
	if len(cfg.AllowedMediaTypes) == 0 {
		cfg.AllowedMediaTypes = append([]string(nil), DefaultAllowedMediaTypes...)
		updated = true
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
		updated = true
	}
	if cfg.TokenKeyPath == "" {
		cfg.TokenKeyPath = filepath.Join(dataDir, "keys", "token.key")
		updated = true
	}

	return updated
}

func applyEnv(cfg *ClientConfig) error {
	if baseURL := strings.TrimSpace(os.Getenv("MOOB_API_BASE_URL")); baseURL != "" {
		cfg.APIBaseURL = strings.TrimRight(baseURL, "/")
	}

	maxSize, err := parseOptionalIntEnv("MOOB_MAX_FILE_SIZE_MB")
	if err != nil {
		return err
	}
	if maxSize != nil && *maxSize > 0 {
		cfg.MaxFileSizeMB = *maxSize
	}

	pageSize, err := parseOptionalIntEnv("MOOB_PAGE_SIZE")
	if err != nil {
		return err
	}
	if pageSize != nil && *pageSize > 0 {
		cfg.PageSize = *pageSize
	}

	return nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
