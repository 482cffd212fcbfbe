package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/crimestats/internal/logging"
	"github.com/ppiankov/crimestats/internal/model"
)

const version = "crimestats v0.3.0"

var (
	cfgFile   string
	verbose   bool
	dataDir   string
	logLevel  string
	logFormat string
)

// envKeys are the nested config keys that can be set through CRIMESTATS_*
// variables, e.g. CRIMESTATS_LLM_TEXT_MODEL
var envKeys = []string{
	"data_dir",
	"combined_dir",
	"categories_file",
	"llm.provider",
	"llm.text_model",
	"llm.vision_model",
	"llm.api_key",
	"llm.base_url",
	"llm.max_retries",
	"http.http_proxy",
	"http.https_proxy",
	"http.no_proxy",
	"cache.enabled",
	"cache.dir",
	"concurrency.workers",
	"rate_limiting.requests_per_second",
	"dashboard.addr",
	"logging.level",
	"logging.format",
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "crimestats",
	Short: "crimestats - city crime statistics ETL",
	Long: `crimestats collects crime statistics published by several cities in
different shapes (chart images, annual report PDFs, raw offense logs) and
normalizes them into one year,count CSV per crime category per city.

The per-city files can be combined into cross-city tables and served
through a small filter-and-aggregate JSON API.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(viper.GetString("logging.level"), viper.GetString("logging.format"), os.Stderr)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number for crimestats.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.crimestats/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", ".", "directory holding one folder per city")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	bindFlags()

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// bindFlags binds the global flags to their viper keys
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", flags.Lookup("log-format"))
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".crimestats"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match CRIMESTATS_*
	viper.SetEnvPrefix("CRIMESTATS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, the config file, environment and flags into
// one validated configuration
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	// A configured list replaces the default list rather than decoding
	// over it entry by entry
	if viper.IsSet("cities") {
		cfg.Cities = nil
	}
	if viper.IsSet("rate_limiting.per_model") {
		cfg.RateLimiting.PerModel = nil
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = apiKeyFromEnv(cfg.LLM.Provider)
	}

	if err := cfg.LoadCategories(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func apiKeyFromEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "ollama":
		return ""
	default:
		return os.Getenv("OPENROUTER_API_KEY")
	}
}

// selectCities returns the named cities, or every configured city when
// names is empty
func selectCities(cfg *model.Config, names []string) ([]model.City, error) {
	if len(names) == 0 {
		return cfg.Cities, nil
	}
	cities := make([]model.City, 0, len(names))
	for _, name := range names {
		city, ok := cfg.City(name)
		if !ok {
			return nil, fmt.Errorf("unknown city %q (see 'crimestats cities')", name)
		}
		cities = append(cities, city)
	}
	return cities, nil
}

func banner(title string) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  %s\n", title)
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
}
