package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/markup/internal/services"
)

var initCmd = &cobra.Command{
	Use:     "init [directory]",
	Aliases: []string{"i"},
	Short:   "Scaffold a new site",
	Long: `Create .markup.yml, the components, pages and static directories and
an example site. Existing files are left alone unless --force is given.

Examples:
  markup init                    # Scaffold in the current directory
  markup init blog --title Blog  # Scaffold in ./blog
  markup init --minimal          # Configuration and directories only`,
	Args: cobra.MaximumNArgs(1),
	// init runs before any configuration exists.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              runInit,
}

var (
	initTitle   string
	initMinimal bool
	initForce   bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVarP(&initTitle, "title", "t", "", "Site title")
	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "Skip the example site")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	result, err := services.NewInitService().InitProject(services.InitOptions{
		ProjectDir: dir,
		Title:      initTitle,
		Minimal:    initMinimal,
		Force:      initForce,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range result.Created {
		fmt.Fprintf(out, "created %s\n", name)
	}
	for _, name := range result.Skipped {
		fmt.Fprintf(out, "skipped %s (exists)\n", name)
	}
	return nil
}
