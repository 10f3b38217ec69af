// Package config loads markup configuration with Viper from a .markup.yml
// file, MARKUP_-prefixed environment variables and command-line flags.
//
// Settings are grouped into server, templates, static, render, development
// and log sections. Every key has a default, so an empty configuration
// describes a working site rooted at the current directory.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/markup/internal/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. MARKUP_SERVER_PORT.
const EnvPrefix = "MARKUP"

// FileName is the config file name searched for in the working directory.
const FileName = ".markup"

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Templates   TemplatesConfig   `mapstructure:"templates" yaml:"templates"`
	Static      StaticConfig      `mapstructure:"static" yaml:"static"`
	Render      RenderConfig      `mapstructure:"render" yaml:"render"`
	Development DevelopmentConfig `mapstructure:"development" yaml:"development"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	Host            string        `mapstructure:"host" yaml:"host"`
	Gzip            bool          `mapstructure:"gzip" yaml:"gzip"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type TemplatesConfig struct {
	Root          string `mapstructure:"root" yaml:"root"`
	ComponentsDir string `mapstructure:"components_dir" yaml:"components_dir"`
	PagesDir      string `mapstructure:"pages_dir" yaml:"pages_dir"`
	DataFile      string `mapstructure:"data_file" yaml:"data_file"`
}

type StaticConfig struct {
	Dir         string   `mapstructure:"dir" yaml:"dir"`
	Favicon     string   `mapstructure:"favicon" yaml:"favicon"`
	Stylesheets []string `mapstructure:"stylesheets" yaml:"stylesheets"`
}

type RenderConfig struct {
	MaxDepth    int    `mapstructure:"max_depth" yaml:"max_depth"`
	OmitDoctype bool   `mapstructure:"omit_doctype" yaml:"omit_doctype"`
	Title       string `mapstructure:"title" yaml:"title"`
	Author      string `mapstructure:"author" yaml:"author"`
}

type DevelopmentConfig struct {
	LiveReload bool          `mapstructure:"live_reload" yaml:"live_reload"`
	Watch      bool          `mapstructure:"watch" yaml:"watch"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.gzip", true)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("templates.root", ".")
	v.SetDefault("templates.components_dir", "components")
	v.SetDefault("templates.pages_dir", "pages")
	v.SetDefault("templates.data_file", "data.yml")

	v.SetDefault("static.dir", "static")
	v.SetDefault("static.favicon", "favicon.ico")
	v.SetDefault("static.stylesheets", []string{"styles.css"})

	v.SetDefault("render.max_depth", 128)
	v.SetDefault("render.omit_doctype", false)
	v.SetDefault("render.title", "markup")
	v.SetDefault("render.author", "")

	v.SetDefault("development.live_reload", true)
	v.SetDefault("development.watch", true)
	v.SetDefault("development.debounce", 100*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Setup points v at the config file (or searches for .markup.yml) and
// enables environment overrides. A missing config file is not an error.
func Setup(v *viper.Viper, file string) error {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(FileName)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && file == "" {
			return nil
		}
		return errors.NewIOError(errors.ErrCodeConfigInvalid, "cannot read config file", err)
	}
	return nil
}

// Default returns the configuration described by the defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// Settings returns every key of v as nested maps, with durations written as
// strings such as "5s" so that the result reads well as YAML.
func Settings(v *viper.Viper) map[string]any {
	return readable(v.AllSettings())
}

func readable(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for key, value := range settings {
		switch value := value.(type) {
		case map[string]any:
			out[key] = readable(value)
		case time.Duration:
			out[key] = value.String()
		default:
			out[key] = value
		}
	}
	return out
}

// Load decodes the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes v into a Config and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeConfigInvalid, "cannot decode configuration", err)
	}

	if result := ValidateConfigWithDetails(&config); result.HasErrors() {
		first := result.Errors[0]
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid configuration: %s", first.Error())).
			WithContext("field", first.Field).
			WithContext("errors", len(result.Errors))
	}

	return &config, nil
}
