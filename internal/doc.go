// Package internal contains the implementation packages behind pkg/markup
// and the markup CLI.
//
// # Package Organization
//
// The core turns template segments into HTML:
//
//   - escape: Text and attribute escaping, attribute name validation
//   - node: The node tree, props, components and the H constructor
//   - compiler: Template compilation to op lists, evaluation, and the
//     per-template memo of static subtrees
//   - guard: Prop validators
//   - renderer: Serialising nodes to HTML with component invocation
//
// Around it sit the pieces that make a site out of template files:
//
//   - loader: Template files, front matter, data file, pages and routes
//   - registry: Components by name, with change events
//   - components: Built-in layout, header, list and markdown components
//   - assets: Content-hashed static files
//   - server: Development server with live reload
//   - middleware: Request IDs, logging, recovery, CSP and compression
//   - watcher: Debounced file system notifications
//   - di: Wiring of the above from one configuration
//   - services: Render, serve and init, as used by the CLI
//   - config, logging, errors, version: Ambient support
//
// # Concurrency
//
// Engines, renderers, the registry, the library and the hasher are safe
// for concurrent use. A compiled template's static memo is published once
// with a compare-and-swap; concurrent first evaluations may both build it
// but only one is kept.
package internal
