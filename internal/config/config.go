package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all settings. Precedence: defaults, then the optional YAML
// file, then environment variables.
type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`
	Port        string `yaml:"port"`

	Platform  PlatformConfig  `yaml:"platform"`
	Inference InferenceConfig `yaml:"inference"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Export    ExportConfig    `yaml:"export"`
}

// PlatformConfig points at the call platform (ElevenLabs conversational AI).
type PlatformConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	AgentID           string        `yaml:"agent_id"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetryTime      time.Duration `yaml:"max_retry_time"`
	PageSize          int           `yaml:"page_size"`
	MaxPages          int           `yaml:"max_pages"`
	Timezone          string        `yaml:"timezone"`
	EnrichTranscripts bool          `yaml:"enrich_transcripts"`
	EnrichConcurrency int           `yaml:"enrich_concurrency"`
}

// InferenceConfig points at the local Ollama server.
type InferenceConfig struct {
	Host         string        `yaml:"host"`
	Model        string        `yaml:"model"`
	Temperature  float64       `yaml:"temperature"`
	TopP         float64       `yaml:"top_p"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetryTime time.Duration `yaml:"max_retry_time"`
	Enabled      bool          `yaml:"enabled"`
}

type AnalysisConfig struct {
	BatchSize          int           `yaml:"batch_size"`
	BatchPause         time.Duration `yaml:"batch_pause"`
	MaxCallsPerRequest int           `yaml:"max_calls_per_request"`
}

type ExportConfig struct {
	MaxRows int `yaml:"max_rows"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Environment: "local",
		LogLevel:    "info",
		Port:        "3001",
		Platform: PlatformConfig{
			BaseURL:           "https://api.elevenlabs.io/v1",
			Timeout:           30 * time.Second,
			MaxRetryTime:      20 * time.Second,
			PageSize:          100,
			MaxPages:          100,
			Timezone:          "UTC",
			EnrichTranscripts: true,
			EnrichConcurrency: 4,
		},
		Inference: InferenceConfig{
			Host:         "http://localhost:11434",
			Model:        "callAnalyser",
			Temperature:  0.3,
			TopP:         0.9,
			Timeout:      30 * time.Second,
			MaxRetryTime: 10 * time.Second,
			Enabled:      true,
		},
		Analysis: AnalysisConfig{
			BatchSize:          5,
			BatchPause:         time.Second,
			MaxCallsPerRequest: 1000,
		},
		Export: ExportConfig{
			MaxRows: 10000,
		},
	}
}

// Load reads .env, the YAML file named by CONFIG_FILE (default config.yaml,
// optional) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load() // loads .env

	cfg := Default()
	path := getenv("CONFIG_FILE", "config.yaml")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(&cfg)
	cfg.clamp()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = getenv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.Port = getenv("PORT", cfg.Port)

	p := &cfg.Platform
	p.BaseURL = getenv("ELEVENLABS_BASE_URL", p.BaseURL)
	p.APIKey = getenv("ELEVENLABS_API_KEY", p.APIKey)
	p.AgentID = getenv("ELEVENLABS_AGENT_ID", p.AgentID)
	p.Timeout = getenvMillis("ELEVENLABS_TIMEOUT", p.Timeout)
	p.PageSize = getenvInt("PLATFORM_PAGE_SIZE", p.PageSize)
	p.MaxPages = getenvInt("PLATFORM_MAX_PAGES", p.MaxPages)
	p.Timezone = getenv("PLATFORM_TIMEZONE", p.Timezone)
	p.EnrichTranscripts = getenvBool("ENRICH_TRANSCRIPTS", p.EnrichTranscripts)
	p.EnrichConcurrency = getenvInt("ENRICH_CONCURRENCY", p.EnrichConcurrency)

	in := &cfg.Inference
	in.Host = getenv("OLLAMA_HOST", in.Host)
	in.Model = getenv("OLLAMA_MODEL", in.Model)
	in.Temperature = getenvFloat("OLLAMA_TEMPERATURE", in.Temperature)
	in.TopP = getenvFloat("OLLAMA_TOP_P", in.TopP)
	in.Timeout = getenvMillis("ANALYSIS_TIMEOUT", in.Timeout)
	in.MaxRetryTime = getenvMillis("LLM_MAX_RETRY", in.MaxRetryTime)
	in.Enabled = getenvBool("GENERATIVE_ENABLED", in.Enabled)

	a := &cfg.Analysis
	a.BatchSize = getenvInt("ANALYSIS_BATCH_SIZE", a.BatchSize)
	a.BatchPause = getenvMillis("ANALYSIS_BATCH_PAUSE", a.BatchPause)
	a.MaxCallsPerRequest = getenvInt("MAX_CALLS_PER_REQUEST", a.MaxCallsPerRequest)

	cfg.Export.MaxRows = getenvInt("EXCEL_MAX_ROWS", cfg.Export.MaxRows)
}

// the platform rejects pages above 100
func (c *Config) clamp() {
	c.Platform.PageSize = clampInt(c.Platform.PageSize, 1, 100)
	c.Platform.MaxPages = clampInt(c.Platform.MaxPages, 1, 100)
	c.Platform.EnrichConcurrency = clampInt(c.Platform.EnrichConcurrency, 1, 32)
	c.Analysis.BatchSize = clampInt(c.Analysis.BatchSize, 1, 50)
	// a configured zero means no pacing
	if c.Analysis.BatchPause <= 0 {
		c.Analysis.BatchPause = -1
	}
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	if c.Platform.APIKey == "" || c.Platform.AgentID == "" {
		return errors.New("ELEVENLABS_API_KEY and ELEVENLABS_AGENT_ID are required")
	}
	if _, err := time.LoadLocation(c.Platform.Timezone); err != nil {
		return fmt.Errorf("PLATFORM_TIMEZONE: %w", err)
	}
	return nil
}

// Location resolves the platform timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Platform.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// durations in env are milliseconds
func getenvMillis(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return time.Duration(n) * time.Millisecond
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
