package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/citeguard/internal/logging"
	"github.com/ppiankov/citeguard/internal/model"
)

// Version is set at build time with -ldflags
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "citeguard",
	Short: "citeguard - Citation existence checks for generated text",
	Long: `citeguard extracts the references cited in a document and checks that
each one exists, first against Crossref metadata and then through web
search grounding.

Every citation ends up VERIFIED, HALLUCINATED or AMBIGUOUS (the check
itself could not be completed). The report's trust score is the share of
verified citations.

citeguard checks existence, not support: a verified citation may still be
cited for something it does not say.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("citeguard v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.citeguard/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := configureViper(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".citeguard"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper binds CITEGUARD_* variables and registers the defaults.
// CITEGUARD_LLM_PROVIDER overrides llm.provider, and so on.
func configureViper(v *viper.Viper) error {
	v.SetEnvPrefix("CITEGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return setDefaults(v)
}

// setDefaults registers every default as a viper key so that environment
// overrides reach nested settings
func setDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return err
	}
	var defaults map[string]any
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return err
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	// Secrets and optional paths are omitted from the marshaled defaults
	for _, key := range []string{
		"crossref.mailto", "grounding.api_key", "llm.api_key", "llm.base_url",
		"http.http_proxy", "http.https_proxy", "http.no_proxy", "cache.dir", "history.path",
	} {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

// loadConfig resolves defaults, config file, environment and API key fallbacks
func loadConfig() (*model.Config, error) {
	return decodeConfig(viper.GetViper(), os.Getenv)
}

func decodeConfig(v *viper.Viper, getenv func(string) string) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyKeyFallbacks(cfg, getenv)
	return cfg, nil
}

// applyKeyFallbacks fills API keys from the providers' conventional variables
func applyKeyFallbacks(cfg *model.Config, getenv func(string) string) {
	gemini := getenv("GEMINI_API_KEY")
	if gemini == "" {
		gemini = getenv("GOOGLE_API_KEY")
	}

	if cfg.Grounding.APIKey == "" {
		cfg.Grounding.APIKey = gemini
	}

	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "gemini", "google":
			cfg.LLM.APIKey = gemini
		case "openai":
			cfg.LLM.APIKey = getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = getenv("ANTHROPIC_API_KEY")
		}
	}

	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = getenv("OLLAMA_BASE_URL")
	}
}

// newLogger builds the process logger from the verbose flag
func newLogger(cfg *model.Config) *zap.Logger {
	logger, err := logging.New(cfg.Output.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logger unavailable: %v\n", err)
		return zap.NewNop()
	}
	return logger
}
