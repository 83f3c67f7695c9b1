// Package config loads pipeline configuration from a YAML file and
// normalizes it into encoder options and pipeline settings.
package config

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/goccy/go-yaml"

	"github.com/statpack/statpack/stream"
)

// Defaults applied when a field is absent from the file.
const (
	DefaultChunkSize   = "64KB"
	DefaultCacheBudget = "256MB"
	DefaultConcurrency = 4
)

// Config is the file representation of the pipeline settings.  Zero values
// mean "use the default".
type Config struct {
	Title       string   `yaml:"title"`
	Indent      any      `yaml:"indent"`
	Keys        []string `yaml:"keys"`
	ChunkSize   string   `yaml:"chunk_size"`
	CacheDir    string   `yaml:"cache_dir"`
	CacheBudget string   `yaml:"cache_budget"`
	FailFast    bool     `yaml:"fail_fast"`
	Concurrency int      `yaml:"concurrency"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a config document and validates its fields.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.indentOption(); err != nil {
		return err
	}
	if _, err := c.ChunkBytes(); err != nil {
		return err
	}
	if _, err := c.CacheBudgetBytes(); err != nil {
		return err
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("config field concurrency: must not be negative, got %d", c.Concurrency)
	}
	return nil
}

// EncodeOptions returns the stream options the config describes.
func (c *Config) EncodeOptions() ([]stream.Option, error) {
	var opts []stream.Option
	indent, err := c.indentOption()
	if err != nil {
		return nil, err
	}
	if indent != nil {
		opts = append(opts, indent)
	}
	if len(c.Keys) > 0 {
		opts = append(opts, stream.WithKeys(c.Keys))
	}
	return opts, nil
}

// indentOption interprets the indent field, which may be an integer number
// of spaces or a short literal string such as "\t".
func (c *Config) indentOption() (stream.Option, error) {
	switch v := c.Indent.(type) {
	case nil:
		return nil, nil
	case int:
		return stream.WithIndent(v), nil
	case int64:
		return stream.WithIndent(int(v)), nil
	case uint64:
		return stream.WithIndent(int(v)), nil
	case string:
		return stream.WithIndentString(v), nil
	default:
		return nil, fmt.Errorf("config field indent: expected an integer or a string, got %T", v)
	}
}

// ChunkBytes returns the HTML chunk size in bytes.
func (c *Config) ChunkBytes() (int, error) {
	n, err := parseSize("chunk_size", c.ChunkSize, DefaultChunkSize)
	return int(n), err
}

// CacheBudgetBytes returns the cache size budget in bytes.
func (c *Config) CacheBudgetBytes() (int64, error) {
	n, err := parseSize("cache_budget", c.CacheBudget, DefaultCacheBudget)
	return int64(n), err
}

// Workers returns the pipeline concurrency limit.
func (c *Config) Workers() int {
	if c.Concurrency == 0 {
		return DefaultConcurrency
	}
	return c.Concurrency
}

func parseSize(field, value, fallback string) (datasize.ByteSize, error) {
	if value == "" {
		value = fallback
	}
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("config field %s: %w", field, err)
	}
	if size == 0 {
		return 0, fmt.Errorf("config field %s: must not be zero", field)
	}
	return size, nil
}
