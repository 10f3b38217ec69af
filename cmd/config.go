package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/markup/internal/config"
	"github.com/conneroisu/markup/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, the config file, MARKUP_*
environment variables and flags have been merged.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and report problems",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# %s\n", used)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(config.Settings(viper.GetViper())); err != nil {
		return err
	}
	return enc.Close()
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return errors.NewIOError(errors.ErrCodeConfigInvalid, "cannot decode configuration", err)
	}

	result := config.ValidateConfigWithDetails(&cfg)
	out := cmd.OutOrStdout()
	if report := result.String(); report != "" {
		fmt.Fprint(out, report)
	}
	if result.HasErrors() {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("configuration has %d errors", len(result.Errors)))
	}
	if result.HasWarnings() {
		fmt.Fprintf(out, "Configuration is valid with %d warnings\n", len(result.Warnings))
		return nil
	}
	fmt.Fprintln(out, "Configuration is valid")
	return nil
}
