// Package cmd provides the command-line interface for markup.
//
// # Available Commands
//
//   - init: Scaffold a new site with configuration and example templates
//   - serve: Start the development server with live reload
//   - render: Render every page to static files
//   - components: List registered components and their props
//   - config: Show or validate the effective configuration
//   - version: Show version information
//
// # Configuration
//
// Every command reads .markup.yml from the working directory, or the file
// named by --config or MARKUP_CONFIG_FILE. Keys can be overridden with
// MARKUP_<SECTION>_<KEY> environment variables, e.g. MARKUP_SERVER_PORT,
// and flags override both.
//
//	markup init --title "My Site"
//	markup serve --port 3000
//	markup render --out dist --clean
//	markup components --format yaml
package cmd
