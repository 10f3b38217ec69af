package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/markup/internal/config"
	"github.com/conneroisu/markup/internal/logging"
)

// ConfigFileEnv names a config file when --config is not given.
const ConfigFileEnv = "MARKUP_CONFIG_FILE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "markup",
	Short: "Render HTML from tagged markup templates",
	Long: `markup renders HTML pages from plain template files with ${...}
placeholders, reusable components and validated props.

Quick Start:
  markup init                     Scaffold a site in the current directory
  markup serve                    Start the development server
  markup render --out dist        Write every page as static HTML
  markup components               List available components`,
	SilenceUsage:      true,
	PersistentPreRunE: setupConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .markup.yml, can also use "+ConfigFileEnv+")")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

// bindFlags binds each flag name to a configuration key, so a flag set on
// the command line overrides the file and environment.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		flag := flags.Lookup(name)
		if flag == nil {
			panic("unknown flag " + name)
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			panic(err)
		}
	}
}

// setupConfig points viper at the config file. Priority: --config, then
// MARKUP_CONFIG_FILE, then .markup.yml in the working directory.
func setupConfig(_ *cobra.Command, _ []string) error {
	file := cfgFile
	if file == "" {
		file = os.Getenv(ConfigFileEnv)
	}
	return config.Setup(viper.GetViper(), file)
}

// loadConfig decodes and validates the configuration and builds the logger
// it asks for, writing to w.
func loadConfig(w io.Writer) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg, w), nil
}

func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: w,
	})
}
