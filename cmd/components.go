package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/markup/internal/di"
	"github.com/conneroisu/markup/internal/registry"
)

var componentsCmd = &cobra.Command{
	Use:     "components",
	Aliases: []string{"list", "l"},
	Short:   "List available components",
	Long: `Load the site and list every component templates can use: built-ins
and those found in the components directory, with their declared props.

Examples:
  markup components               # Table
  markup components -f json       # JSON
  markup components -f yaml`,
	RunE: runComponents,
}

var componentsFormat string

func init() {
	rootCmd.AddCommand(componentsCmd)

	componentsCmd.Flags().StringVarP(&componentsFormat, "format", "f", "table", "Output format (table, json, yaml)")
}

// componentEntry is the serialised form of a registered component.
type componentEntry struct {
	Name   string            `json:"name" yaml:"name"`
	Source string            `json:"source" yaml:"source"`
	Props  map[string]string `json:"props,omitempty" yaml:"props,omitempty"`
}

func runComponents(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(); err != nil {
		return err
	}
	lib, err := container.Library()
	if err != nil {
		return err
	}
	if err := lib.Load(cmd.Context()); err != nil {
		return err
	}
	reg, err := container.Registry()
	if err != nil {
		return err
	}

	return writeComponents(cmd.OutOrStdout(), reg.GetAll(), componentsFormat)
}

func writeComponents(w io.Writer, infos []*registry.ComponentInfo, format string) error {
	entries := make([]componentEntry, 0, len(infos))
	for _, info := range infos {
		entry := componentEntry{Name: info.Name, Source: info.Source}
		for _, p := range info.Parameters {
			if entry.Props == nil {
				entry.Props = make(map[string]string)
			}
			entry.Props[p.Name] = propType(p)
		}
		entries = append(entries, entry)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSOURCE\tPROPS")
		for _, info := range infos {
			props := make([]string, len(info.Parameters))
			for i, p := range info.Parameters {
				props[i] = p.Name + ": " + propType(p)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, info.Source, strings.Join(props, ", "))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", format)
	}
}

func propType(p registry.ParameterInfo) string {
	if p.Optional {
		return p.Type + "?"
	}
	return p.Type
}
