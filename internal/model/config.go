package model

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/crimestats/internal/extract"
)

// Config holds the complete crimestats configuration.
// It is built once by the CLI and passed down explicitly.
type Config struct {
	DataDir        string             `yaml:"data_dir" mapstructure:"data_dir"`
	CombinedDir    string             `yaml:"combined_dir" mapstructure:"combined_dir"`
	SkipDirs       []string           `yaml:"skip_dirs" mapstructure:"skip_dirs"`
	Years          extract.YearWindow `yaml:"years" mapstructure:"years"`
	Categories     []string           `yaml:"categories" mapstructure:"categories"`
	CategoriesFile string             `yaml:"categories_file,omitempty" mapstructure:"categories_file"`
	Cities         []City             `yaml:"cities" mapstructure:"cities"`

	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Dashboard    DashboardConfig   `yaml:"dashboard" mapstructure:"dashboard"`
	Logging      LoggingConfig     `yaml:"logging" mapstructure:"logging"`
}

// LLMConfig configures the OpenAI-compatible model endpoint
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // openrouter, openai, ollama
	TextModel      string `yaml:"text_model" mapstructure:"text_model"`
	VisionModel    string `yaml:"vision_model" mapstructure:"vision_model"`
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxRetries     int    `yaml:"max_retries" mapstructure:"max_retries"`
	MaxReportChars int    `yaml:"max_report_chars" mapstructure:"max_report_chars"`
}

// HTTPConfig holds proxy overrides for the model client
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the model response cache
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Dir       string `yaml:"dir" mapstructure:"dir"`
	MemoryTTL string `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   string `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// TTLs returns the parsed memory and disk TTLs
func (c CacheConfig) TTLs() (memory, disk time.Duration) {
	return DurationOr(c.MemoryTTL, time.Hour), DurationOr(c.DiskTTL, 30*24*time.Hour)
}

// ConcurrencyConfig bounds concurrent model calls
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitConfig limits model requests per model
type RateLimitConfig struct {
	RequestsPerSecond float64     `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int         `yaml:"burst_size" mapstructure:"burst_size"`
	PerModel          []ModelRate `yaml:"per_model,omitempty" mapstructure:"per_model"`
}

// ModelRate overrides the default rate for one model name
type ModelRate struct {
	Model             string  `yaml:"model" mapstructure:"model"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size,omitempty" mapstructure:"burst_size"`
}

// DashboardConfig configures the dashboard API server
type DashboardConfig struct {
	Addr            string   `yaml:"addr" mapstructure:"addr"`
	Files           []string `yaml:"files,omitempty" mapstructure:"files"`
	ShutdownTimeout string   `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DurationOr parses s as a duration, returning fallback when s is empty or invalid
func DurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// LoggingConfig configures slog output
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns the built-in configuration for the five source cities
func DefaultConfig() *Config {
	return &Config{
		DataDir:     ".",
		CombinedDir: "Combined Data",
		SkipDirs:    []string{"src", "Combined Data", "crime_data_env", ".git"},
		Years:       extract.YearWindow{Min: 2014, Max: 2024},
		Categories: []string{
			"robbery",
			"sexual-assault",
			"aggravated-assault",
			"burglary",
			"grand-theft-auto",
			"homicide",
			"larceny",
		},
		Cities: DefaultCities(),
		LLM: LLMConfig{
			Provider:       "openrouter",
			TextModel:      "google/gemini-2.5-flash-lite",
			VisionModel:    "google/gemini-2.5-pro",
			Timeout:        120,
			MaxTokens:      1000,
			MaxRetries:     3,
			MaxReportChars: 200_000,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".crimestats-cache",
			MemoryTTL: "1h",
			DiskTTL:   "720h",
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
			PerModel: []ModelRate{
				{Model: "google/gemini-2.5-pro", RequestsPerSecond: 0.5, BurstSize: 1},
			},
		},
		Dashboard: DashboardConfig{
			Addr:            ":8080",
			ShutdownTimeout: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for caller errors
func (c *Config) Validate() error {
	var errs []error

	if err := c.Years.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("years: %w", err))
	}

	seen := make(map[string]bool)
	for i, city := range c.Cities {
		if err := city.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("cities[%d]: %w", i, err))
		}
		key := strings.ToLower(city.Name)
		if seen[key] {
			errs = append(errs, fmt.Errorf("cities[%d]: duplicate city %q", i, city.Name))
		}
		seen[key] = true
	}

	if c.Concurrency.Workers < 0 {
		errs = append(errs, fmt.Errorf("concurrency.workers must not be negative"))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("llm.max_retries must not be negative"))
	}
	for i, r := range c.RateLimiting.PerModel {
		if r.Model == "" {
			errs = append(errs, fmt.Errorf("rate_limiting.per_model[%d]: model is required", i))
		}
	}

	return errors.Join(errs...)
}

// City returns the configured city with the given name (case-insensitive)
func (c *Config) City(name string) (City, bool) {
	for _, city := range c.Cities {
		if strings.EqualFold(city.Name, name) {
			return city, true
		}
	}
	return City{}, false
}

// CityDir returns the root directory of a city under the data directory
func (c *Config) CityDir(city City) string {
	dir := city.Dir
	if dir == "" {
		dir = city.Name
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.DataDir, dir)
}

// CombinedPath returns the combined output directory
func (c *Config) CombinedPath() string {
	if filepath.IsAbs(c.CombinedDir) {
		return c.CombinedDir
	}
	return filepath.Join(c.DataDir, c.CombinedDir)
}

// LoadCategories replaces Categories with the contents of CategoriesFile,
// one category per line, when a file is configured
func (c *Config) LoadCategories() error {
	if c.CategoriesFile == "" {
		return nil
	}

	categories, err := ReadLines(c.CategoriesFile)
	if err != nil {
		return fmt.Errorf("read categories: %w", err)
	}
	if len(categories) == 0 {
		return fmt.Errorf("categories file %s is empty", c.CategoriesFile)
	}

	c.Categories = categories
	return nil
}

// ReadLines reads non-empty, trimmed lines from a file.
// Lines starting with # are comments.
func ReadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return lines, nil
}
