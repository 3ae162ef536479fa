package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/webharvest/harvester/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "harvester: a multi-source web harvesting engine",
	Long: `harvester scrapes configured news, e-commerce, social, and custom
sources with adaptive per-source pacing, cleans and deduplicates the
results, and persists them to PostgreSQL with an in-memory fallback.

Commands:
  run     Harvest all configured sources once
  serve   Start the HTTP API
  export  Write stored records to a JSON or CSV file`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// Local .env is optional.
	godotenv.Load()

	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/harvester")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// HARVESTER_DATABASE_URL -> database.url
	viper.SetEnvPrefix("HARVESTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	viper.BindEnv("database.url", "HARVESTER_DATABASE_URL")
	viper.BindEnv("api.addr", "HARVESTER_API_ADDR")
	viper.BindEnv("ai.enabled", "HARVESTER_AI_ENABLED")
	viper.BindEnv("ai.api_key", "HARVESTER_AI_API_KEY", "DEEPSEEK_API_KEY")
	viper.BindEnv("ai.base_url", "HARVESTER_AI_BASE_URL")
	viper.BindEnv("ai.model", "HARVESTER_AI_MODEL")
	viper.BindEnv("scraping.user_agent", "HARVESTER_SCRAPING_USER_AGENT")
	viper.BindEnv("scraping.parallelism", "HARVESTER_SCRAPING_PARALLELISM")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}
}
