package services

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/markup/internal/config"
	"github.com/conneroisu/markup/internal/errors"
)

// InitService scaffolds a new site.
type InitService struct{}

// NewInitService creates a new initialization service
func NewInitService() *InitService {
	return &InitService{}
}

// InitOptions contains options for project initialization
type InitOptions struct {
	ProjectDir string
	// Title is written as render.title.
	Title string
	// Minimal writes the configuration and directories only.
	Minimal bool
	// Force overwrites existing files.
	Force bool
}

// InitResult lists what was written and what was left alone.
type InitResult struct {
	Created []string
	Skipped []string
}

const exampleData = `site:
  name: My Site
  links:
    - title: Components
      href: /components
`

const exampleCard = `---
props:
  title: string
  href: string?
---
<article class="card">
  <h2>${title}</h2>
  ${children}
</article>
`

const exampleIndex = `---
data:
  intro: |
    Pages live in **pages/**, components in **components/**.
    Edit either and the browser reloads.
---
<${DefaultLayout} title=${site.name} noHeader>
  <h1>${site.name}</h1>
  <${Markdown} source=${intro} />
  <${Card} title="Getting started">
    <p>Run <code>markup serve</code> and open the printed address.</p>
  <//>
<//>
`

const exampleAbout = `<${DefaultLayout} title="About">
  <h1>About</h1>
  <${UnorderedList} class="links">
    <a href="/">Home</a>
  <//>
<//>
`

const exampleStyles = `.mw-page { max-width: 48rem; }
.mx-auto { margin-left: auto; margin-right: auto; }
.card { border: 1px solid #ddd; border-radius: 4px; padding: 1rem; }
`

// InitProject creates the configuration, directory layout and, unless
// opts.Minimal is set, an example site. Existing files are kept unless
// opts.Force is set.
func (s *InitService) InitProject(opts InitOptions) (*InitResult, error) {
	if opts.ProjectDir == "" {
		opts.ProjectDir = "."
	}
	if err := os.MkdirAll(opts.ProjectDir, 0o755); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeWriteFailed, "cannot create project directory", err).
			WithContext("path", opts.ProjectDir)
	}

	cfg := config.Default()
	if opts.Title != "" {
		cfg.Render.Title = opts.Title
	}
	// The example site ships no favicon.
	cfg.Static.Favicon = ""

	for _, dir := range []string{cfg.Templates.ComponentsDir, cfg.Templates.PagesDir, cfg.Static.Dir} {
		path := filepath.Join(opts.ProjectDir, dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeWriteFailed, "cannot create directory", err).
				WithContext("path", path)
		}
	}

	configYAML, err := s.configYAML(cfg)
	if err != nil {
		return nil, err
	}

	files := []struct {
		name    string
		content []byte
	}{
		{config.FileName + ".yml", configYAML},
		{filepath.Join(cfg.Static.Dir, "styles.css"), []byte(exampleStyles)},
	}
	if !opts.Minimal {
		files = append(files, []struct {
			name    string
			content []byte
		}{
			{cfg.Templates.DataFile, []byte(exampleData)},
			{filepath.Join(cfg.Templates.ComponentsDir, "card.html"), []byte(exampleCard)},
			{filepath.Join(cfg.Templates.PagesDir, "index.html"), []byte(exampleIndex)},
			{filepath.Join(cfg.Templates.PagesDir, "about.html"), []byte(exampleAbout)},
		}...)
	}

	result := &InitResult{}
	for _, file := range files {
		path := filepath.Join(opts.ProjectDir, file.name)
		if !opts.Force {
			if _, err := os.Stat(path); err == nil {
				result.Skipped = append(result.Skipped, file.name)
				continue
			}
		}
		if err := atomic.WriteFile(path, bytes.NewReader(file.content)); err != nil {
			return nil, errors.NewIOError(errors.ErrCodeWriteFailed, fmt.Sprintf("cannot write %s", file.name), err).
				WithContext("path", path)
		}
		result.Created = append(result.Created, file.name)
	}

	return result, nil
}

func (s *InitService) configYAML(cfg *config.Config) ([]byte, error) {
	// Durations are left to their defaults; yaml.v3 would write them as
	// nanosecond integers.
	doc := map[string]any{
		"server": map[string]any{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		},
		"templates": cfg.Templates,
		"static":    cfg.Static,
		"render": map[string]any{
			"title":     cfg.Render.Title,
			"max_depth": cfg.Render.MaxDepth,
		},
		"development": map[string]any{
			"live_reload": cfg.Development.LiveReload,
			"watch":       cfg.Development.Watch,
		},
	}

	var buf bytes.Buffer
	buf.WriteString("# markup site configuration\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeConfigInvalid, "cannot encode configuration", err)
	}
	if err := enc.Close(); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeConfigInvalid, "cannot encode configuration", err)
	}
	return buf.Bytes(), nil
}
