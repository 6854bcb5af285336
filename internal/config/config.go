// Package config loads runtime configuration from an optional YAML file
// and the environment. Environment variables always win over the file,
// and a .env file is honored for local development.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvPort              = "PORT"
	EnvDatabaseDSN       = "DATABASE_DSN"
	EnvPublicDir         = "PUBLIC_DIR"
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvGeminiKey         = "GEMINI_API_KEY"
	EnvAdminUsername     = "ADMIN_USERNAME"
	EnvAdminPassword     = "ADMIN_PASSWORD"
	EnvJWTSecret         = "JWT_SECRET"
	EnvJWTExpiry         = "JWT_EXPIRY"
	EnvCompanyLimits     = "COMPANY_LIMITS"
	EnvCompanyLimitsFile = "COMPANY_LIMITS_FILE"
	EnvConfigPath        = "CONFIG_PATH"
)

// Defaults applied when neither the file nor the environment sets a
// value.
const (
	DefaultPort      = 3000
	DefaultPublicDir = "public"

	defaultAdminUsername = "admin"
	defaultJWTExpiry     = 30 * 24 * time.Hour
)

// Config is the resolved runtime configuration.
type Config struct {
	Port        int
	DatabaseDSN string
	PublicDir   string

	OpenAIKey string
	GeminiKey string

	AdminUsername string
	AdminPassword string // plain value or bcrypt hash
	JWTSecret     string
	JWTExpiry     time.Duration

	CompanyLimits     map[string]int
	CompanyLimitsFile string
}

// fileConfig is the YAML shape of the optional config file.
type fileConfig struct {
	Port        int    `yaml:"port"`
	DatabaseDSN string `yaml:"database-dsn"`
	PublicDir   string `yaml:"public-dir"`

	OpenAIKey string `yaml:"openai-api-key"`
	GeminiKey string `yaml:"gemini-api-key"`

	AdminUsername string `yaml:"admin-username"`
	AdminPassword string `yaml:"admin-password"`
	JWTSecret     string `yaml:"jwt-secret"`
	JWTExpiry     string `yaml:"jwt-expiry"`

	CompanyLimits     map[string]int `yaml:"company-limits"`
	CompanyLimitsFile string         `yaml:"company-limits-file"`
}

// Load resolves the configuration. The file named by CONFIG_PATH is
// read when present; a missing file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          DefaultPort,
		PublicDir:     DefaultPublicDir,
		AdminUsername: defaultAdminUsername,
		JWTExpiry:     defaultJWTExpiry,
		CompanyLimits: map[string]int{},
	}

	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWTSecret = secret
		log.Warn("no jwt secret configured, generated an ephemeral one; admin sessions will not survive restarts")
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, errRead := os.ReadFile(path)
	if errRead != nil {
		if os.IsNotExist(errRead) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, errRead)
	}
	var fc fileConfig
	if errParse := yaml.Unmarshal(raw, &fc); errParse != nil {
		return fmt.Errorf("config: parse %s: %w", path, errParse)
	}

	if fc.Port > 0 {
		c.Port = fc.Port
	}
	if fc.DatabaseDSN != "" {
		c.DatabaseDSN = fc.DatabaseDSN
	}
	if fc.PublicDir != "" {
		c.PublicDir = fc.PublicDir
	}
	if fc.OpenAIKey != "" {
		c.OpenAIKey = fc.OpenAIKey
	}
	if fc.GeminiKey != "" {
		c.GeminiKey = fc.GeminiKey
	}
	if fc.AdminUsername != "" {
		c.AdminUsername = fc.AdminUsername
	}
	if fc.AdminPassword != "" {
		c.AdminPassword = fc.AdminPassword
	}
	if fc.JWTSecret != "" {
		c.JWTSecret = fc.JWTSecret
	}
	if fc.JWTExpiry != "" {
		expiry, errParse := time.ParseDuration(fc.JWTExpiry)
		if errParse != nil {
			return fmt.Errorf("config: parse jwt-expiry: %w", errParse)
		}
		c.JWTExpiry = expiry
	}
	if fc.CompanyLimitsFile != "" {
		c.CompanyLimitsFile = fc.CompanyLimitsFile
	}
	for company, limit := range fc.CompanyLimits {
		c.CompanyLimits[strings.ToLower(company)] = limit
	}
	return nil
}

func (c *Config) applyEnv() error {
	if raw := strings.TrimSpace(os.Getenv(EnvPort)); raw != "" {
		port, errParse := strconv.Atoi(raw)
		if errParse != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("config: invalid %s %q", EnvPort, raw)
		}
		c.Port = port
	}
	c.DatabaseDSN = envOr(EnvDatabaseDSN, c.DatabaseDSN)
	c.PublicDir = envOr(EnvPublicDir, c.PublicDir)
	c.OpenAIKey = envOr(EnvOpenAIKey, c.OpenAIKey)
	c.GeminiKey = envOr(EnvGeminiKey, c.GeminiKey)
	c.AdminUsername = envOr(EnvAdminUsername, c.AdminUsername)
	c.AdminPassword = envOr(EnvAdminPassword, c.AdminPassword)
	c.JWTSecret = envOr(EnvJWTSecret, c.JWTSecret)
	c.CompanyLimitsFile = envOr(EnvCompanyLimitsFile, c.CompanyLimitsFile)

	if raw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); raw != "" {
		expiry, errParse := time.ParseDuration(raw)
		if errParse != nil {
			return fmt.Errorf("config: parse %s: %w", EnvJWTExpiry, errParse)
		}
		c.JWTExpiry = expiry
	}

	if raw := strings.TrimSpace(os.Getenv(EnvCompanyLimits)); raw != "" {
		limits, errParse := ParseCompanyLimits([]byte(raw))
		if errParse != nil {
			// Fail open to the default limit rather than refusing to boot.
			log.WithError(errParse).Warnf("invalid %s, ignoring", EnvCompanyLimits)
		} else {
			for company, limit := range limits {
				c.CompanyLimits[company] = limit
			}
		}
	}

	// The limits file is not merged here: the watcher owns it, overlaying
	// the file on this table at boot and on every change so removed file
	// entries do not stick around.
	return nil
}

// ParseCompanyLimits parses a JSON object of company to limit, with
// company keys lowercased and non-positive limits dropped.
func ParseCompanyLimits(raw []byte) (map[string]int, error) {
	var parsed map[string]int
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("config: parse company limits: %w", err)
	}
	limits := make(map[string]int, len(parsed))
	for company, limit := range parsed {
		if limit <= 0 {
			continue
		}
		limits[strings.ToLower(strings.TrimSpace(company))] = limit
	}
	return limits, nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("config: generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
