package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/markup/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}
	write("Errors", vr.Errors)
	write("Warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// ValidateConfigWithDetails checks every section and collects errors and
// warnings with suggestions. Missing directories are warnings: the loader
// treats them as empty.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&config.Server, result)
	validateTemplates(&config.Templates, result)
	validateStatic(&config.Static, result)
	validateRender(&config.Render, result)
	validateDevelopment(config, result)
	validateLog(&config.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateServer(config *ServerConfig, result *ValidationResult) {
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Common development ports: 3000, 8080, 8000",
			"Port 0 allows the system to assign an available port")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port,
			"port below 1024 requires elevated privileges",
			"Consider using a port above 1024 for development")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error(),
				"Use 'localhost' for local development",
				"Use '0.0.0.0' to bind to all interfaces")
		}
	}

	if config.ShutdownTimeout < 0 {
		result.addError("server.shutdown_timeout", config.ShutdownTimeout, "timeout cannot be negative")
	}
}

func validateTemplates(config *TemplatesConfig, result *ValidationResult) {
	if err := validatePath(config.Root); err != nil {
		result.addError("templates.root", config.Root, err.Error())
		return
	}

	relative := map[string]string{
		"templates.components_dir": config.ComponentsDir,
		"templates.pages_dir":      config.PagesDir,
		"templates.data_file":      config.DataFile,
	}
	for _, field := range []string{"templates.components_dir", "templates.pages_dir", "templates.data_file"} {
		value := relative[field]
		if value == "" {
			continue
		}
		if err := validateRelativePath(value); err != nil {
			result.addError(field, value, err.Error(),
				"Paths are relative to templates.root")
			continue
		}
		if field != "templates.data_file" && !pathExists(filepath.Join(config.Root, value)) {
			result.addWarning(field, value, "directory does not exist",
				fmt.Sprintf("Create %s or change %s", filepath.Join(config.Root, value), field))
		}
	}

	if config.ComponentsDir == "" && config.PagesDir == "" {
		result.addWarning("templates", nil, "no components_dir or pages_dir configured",
			"Nothing will be loaded from disk")
	}
}

func validateStatic(config *StaticConfig, result *ValidationResult) {
	if config.Dir == "" {
		if config.Favicon != "" || len(config.Stylesheets) > 0 {
			result.addError("static.dir", config.Dir, "static files are linked but no directory is set")
		}
		return
	}
	if err := validatePath(config.Dir); err != nil {
		result.addError("static.dir", config.Dir, err.Error())
		return
	}
	for _, name := range append([]string{config.Favicon}, config.Stylesheets...) {
		if name == "" {
			continue
		}
		if err := validateRelativePath(name); err != nil {
			result.addError("static", name, err.Error(),
				"Static file names are relative to static.dir")
		}
	}
}

func validateRender(config *RenderConfig, result *ValidationResult) {
	if config.MaxDepth <= 0 {
		result.addError("render.max_depth", config.MaxDepth, "max_depth must be positive",
			"The default of 128 allows deeply nested layouts")
	}
}

func validateDevelopment(config *Config, result *ValidationResult) {
	dev := config.Development
	if dev.Debounce < 0 {
		result.addError("development.debounce", dev.Debounce, "debounce cannot be negative")
	}
	if dev.LiveReload && !dev.Watch {
		result.addWarning("development.live_reload", dev.LiveReload,
			"live reload has no effect without watch",
			"Set development.watch to true")
	}
	if dev.LiveReload && config.Server.Host != "" && !isLoopback(config.Server.Host) {
		result.addWarning("development.live_reload", dev.LiveReload,
			"live reload is exposed on a non-loopback host",
			"Disable live reload when serving beyond localhost")
	}
}

func validateLog(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(),
			"Use one of: debug, info, warn, error")
	}
	switch config.Format {
	case "", "text", "json":
	default:
		result.addError("log.format", config.Format, "unknown log format",
			"Use 'text' or 'json'")
	}
}

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func validateHostname(host string) error {
	if net.ParseIP(host) != nil {
		return nil
	}
	if !hostnamePattern.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// validatePath rejects empty paths and shell metacharacters.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	if strings.ContainsAny(path, ";&|$`<>\"'\x00") {
		return fmt.Errorf("path contains a forbidden character")
	}
	return nil
}

// validateRelativePath additionally requires path to stay below its base.
func validateRelativePath(path string) error {
	if err := validatePath(path); err != nil {
		return err
	}
	clean := filepath.Clean(path)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("path must be relative: %s", path)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}
	return nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
