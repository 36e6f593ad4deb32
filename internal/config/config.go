package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/vharness/internal/errors"
	"github.com/vango-dev/vharness/pkg/harness"
	"github.com/vango-dev/vharness/pkg/htmldiff"
	"github.com/vango-dev/vharness/pkg/middleware"
	"github.com/vango-dev/vharness/pkg/render"
)

// Config file names, in lookup order.
var FileNames = []string{"vharness.json", "vharness.yaml", "vharness.yml"}

const (
	// DefaultLogLevel is used when log.level is empty.
	DefaultLogLevel = "info"

	// DefaultLogFormat is used when log.format is empty.
	DefaultLogFormat = "text"

	// DefaultMetricsNamespace is used when metrics.namespace is empty.
	DefaultMetricsNamespace = "vharness"
)

// Config is the harness configuration.
type Config struct {
	Dispatcher DispatcherConfig `json:"dispatcher,omitempty" yaml:"dispatcher,omitempty"`
	Log        LogConfig        `json:"log,omitempty" yaml:"log,omitempty"`
	Markup     MarkupConfig     `json:"markup,omitempty" yaml:"markup,omitempty"`
	Diff       DiffConfig       `json:"diff,omitempty" yaml:"diff,omitempty"`
	Metrics    MetricsConfig    `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// DispatcherConfig configures the render dispatcher.
type DispatcherConfig struct {
	// QueueSize is the dispatch queue capacity. Zero uses the default.
	QueueSize int `json:"queueSize,omitempty" yaml:"queueSize,omitempty"`
}

// LogConfig configures harness logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// MarkupConfig configures markup serialization.
type MarkupConfig struct {
	// Pretty indents block elements.
	Pretty bool `json:"pretty,omitempty" yaml:"pretty,omitempty"`

	// Indent is the indentation unit when Pretty is set.
	Indent string `json:"indent,omitempty" yaml:"indent,omitempty"`
}

// DiffConfig configures markup comparison.
type DiffConfig struct {
	// PreserveWhitespace compares whitespace exactly.
	PreserveWhitespace bool `json:"preserveWhitespace,omitempty" yaml:"preserveWhitespace,omitempty"`

	// IgnoreAttributes lists attribute names left out of comparisons. A
	// trailing * matches a prefix.
	IgnoreAttributes []string `json:"ignoreAttributes,omitempty" yaml:"ignoreAttributes,omitempty"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled registers dispatch and render metrics on each harness.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Namespace is the metric name prefix.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the first config file found in dir. When dir has none, the
// defaults are returned.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return New(), nil
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeInputRead).
			WithDetail("cannot read %s", path).
			Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New(errors.CodeConfigParse).
			WithDetail("failed to parse %s: %v", filepath.Base(path), err).
			WithSuggestion("Check that the file is valid " + formatName(path))
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to path, as YAML or JSON
// depending on its extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New(errors.CodeConfigParse).Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New(errors.CodeInputRead).Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Markup.Pretty && c.Markup.Indent == "" {
		c.Markup.Indent = "  "
	}
	if c.Diff.IgnoreAttributes == nil {
		c.Diff.IgnoreAttributes = []string{"data-on-*"}
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Dispatcher.QueueSize < 0 {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("dispatcher.queueSize must not be negative, got %d", c.Dispatcher.QueueSize)
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("unknown log.level %q", c.Log.Level).
			WithSuggestion("Use one of debug, info, warn, error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New(errors.CodeConfigInvalid).
			WithDetail("unknown log.format %q", c.Log.Format).
			WithSuggestion("Use text or json")
	}
	for _, name := range c.Diff.IgnoreAttributes {
		if strings.TrimSuffix(name, "*") == "" {
			return errors.New(errors.CodeConfigInvalid).
				WithDetail("diff.ignoreAttributes contains an empty name")
		}
	}
	return nil
}

// Logger returns a logger writing to w at the configured level and format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// RenderConfig returns the serializer configuration.
func (c *Config) RenderConfig() render.Config {
	return render.Config{Pretty: c.Markup.Pretty, Indent: c.Markup.Indent}
}

// DiffOptions returns the differ options.
func (c *Config) DiffOptions() []htmldiff.Option {
	var opts []htmldiff.Option
	if c.Diff.PreserveWhitespace {
		opts = append(opts, htmldiff.PreserveWhitespace())
	}
	if len(c.Diff.IgnoreAttributes) > 0 {
		opts = append(opts, htmldiff.IgnoreAttributes(c.Diff.IgnoreAttributes...))
	}
	return opts
}

// HarnessOptions returns harness options for this configuration, logging
// to w. With metrics enabled, each call creates a new middleware.Metrics
// on its own registry.
func (c *Config) HarnessOptions(w io.Writer) []harness.Option {
	opts := []harness.Option{
		harness.WithLogger(c.Logger(w)),
		harness.WithQueueSize(c.Dispatcher.QueueSize),
		harness.WithSerializer(render.NewRenderer(c.RenderConfig())),
		harness.WithDiffer(htmldiff.New(c.DiffOptions()...)),
	}
	if c.Metrics.Enabled {
		m := middleware.Prometheus(middleware.WithNamespace(c.Metrics.Namespace))
		opts = append(opts, harness.WithMiddleware(m), harness.WithSubscriber(m))
	}
	return opts
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func formatName(path string) string {
	if isYAML(path) {
		return "YAML"
	}
	return "JSON"
}
