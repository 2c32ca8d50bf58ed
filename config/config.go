package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at startup. Values come from the
// environment (optionally seeded from .env) and may be overridden by a YAML
// file named in CONFIG_FILE.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	Database DatabaseConfig `yaml:"database"`

	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Transliteration TransliterationConfig `yaml:"transliteration"`
	Refine          RefineConfig          `yaml:"refine"`

	PassagesFile     string        `yaml:"passages_file"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"`
}

type DatabaseConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type TransliterationConfig struct {
	BaseURL    string        `yaml:"base_url"`
	InputTool  string        `yaml:"input_tool"`
	Candidates int           `yaml:"candidates"`
	Timeout    time.Duration `yaml:"timeout"`
}

type RefineConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Load reads .env (if present), the environment and the optional YAML overlay.
// The boolean reports whether a .env file was found.
func Load() (*Config, bool, error) {
	foundEnv := godotenv.Load() == nil

	cfg := FromEnv()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, foundEnv, err
		}
	}
	return cfg, foundEnv, nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	return &Config{
		ListenAddr: env("LISTEN_ADDR", ":8080"),
		LogLevel:   env("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			User:     env("user", ""),
			Password: env("password", ""),
			Host:     env("host", "localhost"),
			Port:     env("port", "5432"),
			Name:     env("dbname", ""),
			SSLMode:  env("sslmode", "require"),
		},
		JWTSecret:      env("JWT_SECRET", ""),
		AllowedOrigins: splitList(env("ALLOWED_ORIGINS", "*")),
		Transliteration: TransliterationConfig{
			BaseURL:    env("TRANSLITERATION_URL", "https://inputtools.google.com"),
			InputTool:  env("TRANSLITERATION_ITC", "hi-t-i0-und"),
			Candidates: envInt("TRANSLITERATION_CANDIDATES", 5),
			Timeout:    envDuration("TRANSLITERATION_TIMEOUT", 3*time.Second),
		},
		Refine: RefineConfig{
			BaseURL:         env("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			APIKey:          env("API_KEY", ""),
			Model:           env("GEMINI_MODEL", "gemini-3-flash-preview"),
			Temperature:     0.7,
			MaxOutputTokens: envInt("GEMINI_MAX_OUTPUT_TOKENS", 500),
			Timeout:         envDuration("GEMINI_TIMEOUT", 30*time.Second),
		},
		PassagesFile:     env("PASSAGES_FILE", ""),
		AutosaveInterval: envDuration("AUTOSAVE_INTERVAL", 10*time.Second),
	}
}

// applyFile overlays non-zero values from a YAML file.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	return c.overlay(data)
}

func (c *Config) overlay(data []byte) error {
	// Decoding into the populated struct keeps fields the file leaves out.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config YAML: %w", err)
	}
	return nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(env(key, ""))
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(env(key, ""))
	if err != nil {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
