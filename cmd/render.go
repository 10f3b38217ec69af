package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/markup/internal/services"
)

var renderCmd = &cobra.Command{
	Use:     "render",
	Aliases: []string{"r", "build"},
	Short:   "Render every page to static HTML",
	Long: `Render every page below the pages directory to <out>/<route>/index.html
and copy the static directory next to them. The result can be served by any
static file server.

Examples:
  markup render                  # Write to ./dist
  markup render -o public --clean`,
	RunE: runRender,
}

var (
	renderOutput  string
	renderClean   bool
	renderWorkers int
)

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderOutput, "out", "o", "dist", "Output directory")
	renderCmd.Flags().BoolVar(&renderClean, "clean", false, "Remove the output directory first")
	renderCmd.Flags().IntVarP(&renderWorkers, "workers", "w", 4, "Pages rendered concurrently")
}

func runRender(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	result, err := services.NewRenderService(cfg, logger).Render(cmd.Context(), services.RenderOptions{
		Output:  renderOutput,
		Clean:   renderClean,
		Workers: renderWorkers,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s to %s\n", result.Summary(), renderOutput)
	return nil
}
