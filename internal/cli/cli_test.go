package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/crimestats/internal/model"
)

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".crimestats", "config.yaml")

	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# crimestats configuration file") {
		t.Errorf("expected comment header, got %q", string(data[:40]))
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if len(cfg.Cities) != len(model.DefaultCities()) {
		t.Errorf("expected %d cities, got %d", len(model.DefaultCities()), len(cfg.Cities))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written config should validate: %v", err)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected error when the config already exists")
	}
}

func TestSelectCities(t *testing.T) {
	cfg := model.DefaultConfig()

	all, err := selectCities(cfg, nil)
	if err != nil || len(all) != len(cfg.Cities) {
		t.Fatalf("expected every city, got %d (%v)", len(all), err)
	}

	picked, err := selectCities(cfg, []string{"memphis, tennessee"})
	if err != nil {
		t.Fatalf("selectCities failed: %v", err)
	}
	if len(picked) != 1 || picked[0].Source != model.SourceChart {
		t.Errorf("unexpected selection %+v", picked)
	}

	if _, err := selectCities(cfg, []string{"Gotham"}); err == nil {
		t.Error("expected error for unknown city")
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("OPENAI_API_KEY", "oa-key")

	tests := map[string]string{
		"":           "or-key",
		"openrouter": "or-key",
		"OpenAI":     "oa-key",
		"ollama":     "",
	}
	for provider, want := range tests {
		if got := apiKeyFromEnv(provider); got != want {
			t.Errorf("apiKeyFromEnv(%q) = %q, want %q", provider, got, want)
		}
	}
}

// resetViper clears global config state before and after a test
func resetViper(t *testing.T) {
	t.Helper()
	reset := func() {
		viper.Reset()
		cfgFile = ""
		_ = rootCmd.PersistentFlags().Set("data-dir", ".")
		bindFlags()
	}
	reset()
	t.Cleanup(reset)
}

func TestLoadConfig_Merge(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	cfgFile = filepath.Join(dir, "config.yaml")
	data := `cities:
  - name: Springfield
    source: offense_log
    category_column: CAT
rate_limiting:
  per_model:
    - model: local/llava
      requests_per_second: 2
llm:
  text_model: file-text-model
  vision_model: file-vision-model
`
	if err := os.WriteFile(cfgFile, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CRIMESTATS_LLM_TEXT_MODEL", "env-text-model")
	dataDir := filepath.Join(dir, "cities")
	if err := rootCmd.PersistentFlags().Set("data-dir", dataDir); err != nil {
		t.Fatal(err)
	}

	initConfig()
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if len(cfg.Cities) != 1 {
		t.Fatalf("expected the configured city list to replace the defaults, got %d cities", len(cfg.Cities))
	}
	city := cfg.Cities[0]
	if city.Name != "Springfield" || city.CategoryColumn != "CAT" {
		t.Errorf("unexpected city %+v", city)
	}
	if city.YearSeparator != "" || city.YearPosition != "" || len(city.PageKeywords) != 0 || len(city.Images) != 0 {
		t.Errorf("city inherited default fields: %+v", city)
	}

	if len(cfg.RateLimiting.PerModel) != 1 || cfg.RateLimiting.PerModel[0].Model != "local/llava" {
		t.Errorf("expected configured per-model rates only, got %+v", cfg.RateLimiting.PerModel)
	}
	if cfg.RateLimiting.PerModel[0].BurstSize != 0 {
		t.Errorf("per-model rate inherited a default burst: %+v", cfg.RateLimiting.PerModel[0])
	}

	// Environment overrides the file, the file overrides defaults, flags set the data dir
	if cfg.LLM.TextModel != "env-text-model" {
		t.Errorf("expected text model from env, got %q", cfg.LLM.TextModel)
	}
	if cfg.LLM.VisionModel != "file-vision-model" {
		t.Errorf("expected vision model from file, got %q", cfg.LLM.VisionModel)
	}
	if cfg.DataDir != dataDir {
		t.Errorf("expected data dir from flag, got %q", cfg.DataDir)
	}
	if cfg.LLM.MaxRetries != model.DefaultConfig().LLM.MaxRetries {
		t.Errorf("expected default retries, got %d", cfg.LLM.MaxRetries)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	resetViper(t)

	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgFile, []byte("llm:\n  max_retries: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	initConfig()
	if _, err := loadConfig(); err == nil || !strings.Contains(err.Error(), "llm.max_retries") {
		t.Errorf("expected max_retries validation error, got %v", err)
	}
}
