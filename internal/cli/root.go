package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/docscrape/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "docscrape",
	Short: "docscrape - enrich contact records from public web pages",
	Long: `docscrape enriches seed records (partial professional contact data) by
visiting configured web sources, finding the result that best matches each
record and extracting additional field values from it.

What to visit, how to recognise the right result and what to extract are
all declared in three rule documents: a field mapping, a set of field
matchers and the source definitions.`,
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
		fmt.Fprintf(cmd.OutOrStdout(), "docscrape %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.docscrape/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output and debug logging")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(model.DefaultConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".docscrape"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// DOCSCRAPE_SESSION_USER_AGENT overrides session.user_agent
	viper.SetEnvPrefix("DOCSCRAPE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so env vars resolve during Unmarshal
func setDefaults(cfg *model.Config) {
	defaults := map[string]any{
		"rules.mapping_file": cfg.Rules.MappingFile,
		"rules.matcher_file": cfg.Rules.MatcherFile,
		"rules.sources_file": cfg.Rules.SourcesFile,

		"session.implicit_wait":  cfg.Session.ImplicitWait,
		"session.user_agent":     cfg.Session.UserAgent,
		"session.max_body_bytes": cfg.Session.MaxBodyBytes,
		"session.max_redirects":  cfg.Session.MaxRedirects,
		"session.insecure_tls":   cfg.Session.InsecureTLS,
		"session.respect_robots": cfg.Session.RespectRobots,
		"session.http_proxy":     cfg.Session.HTTPProxy,
		"session.https_proxy":    cfg.Session.HTTPSProxy,
		"session.no_proxy":       cfg.Session.NoProxy,

		"cache.enabled":    cfg.Cache.Enabled,
		"cache.dir":        cfg.Cache.Dir,
		"cache.memory_ttl": cfg.Cache.MemoryTTL,
		"cache.disk_ttl":   cfg.Cache.DiskTTL,

		"rate_limiting.requests_per_second": cfg.RateLimiting.RequestsPerSecond,
		"rate_limiting.burst_size":          cfg.RateLimiting.BurstSize,

		"output.json_path": cfg.Output.JSONPath,
		"output.table":     cfg.Output.Table,
		"output.verbose":   cfg.Output.Verbose,

		"logging.level":       cfg.Logging.Level,
		"logging.file":        cfg.Logging.File,
		"logging.max_size_mb": cfg.Logging.MaxSizeMB,
		"logging.max_backups": cfg.Logging.MaxBackups,
		"logging.compress":    cfg.Logging.Compress,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// loadConfig resolves defaults, config file, env vars and persistent flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Output.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
