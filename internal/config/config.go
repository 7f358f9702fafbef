// Package config loads the lsi configuration from a yaml file and the
// environment.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"lsi/internal/logger"
	"lsi/interning"
)

// Config is the root of the configuration file.
type Config struct {
	Table   TableConfig         `yaml:"table"`
	Workers WorkersConfig       `yaml:"workers"`
	Loader  LoaderConfig        `yaml:"loader"`
	Server  ServerConfig        `yaml:"server"`
	Corpora []string            `yaml:"corpora"`
	Log     logger.LoggerConfig `yaml:"log"`
}

type TableConfig struct {
	Strategy        string `yaml:"strategy"`
	InitialCapacity int    `yaml:"initial_capacity"`
}

type WorkersConfig struct {
	Size      int  `yaml:"size"` // 0 means GOMAXPROCS
	ChunkSize int  `yaml:"chunk_size"`
	PreAlloc  bool `yaml:"pre_alloc"`
}

type LoaderConfig struct {
	Concurrency  int `yaml:"concurrency"`
	MaxLineBytes int `yaml:"max_line_bytes"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Table: TableConfig{
			Strategy:        interning.Optimistic.String(),
			InitialCapacity: 1024,
		},
		Workers: WorkersConfig{
			ChunkSize: 512,
		},
		Loader: LoaderConfig{
			Concurrency:  4,
			MaxLineBytes: 1 << 20,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: logger.DefaultConfig(),
	}
}

// Load reads the file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer func() { _ = file.Close() }()

	cfg, err = Parse(bufio.NewReader(file))
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes yaml from r over the defaults. Unknown keys are rejected and
// an empty document yields the defaults.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			return cfg, fmt.Errorf("%w: %s", ErrInvalidYamlFormat, strings.Join(typeErr.Errors, "; "))
		}
		return cfg, fmt.Errorf("%w: %v", ErrInvalidYamlFormat, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any LSI_* variables that are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("LSI_TABLE_STRATEGY"); v != "" {
		c.Table.Strategy = v
	}
	if err := envInt("LSI_TABLE_CAPACITY", &c.Table.InitialCapacity); err != nil {
		return err
	}
	if err := envInt("LSI_WORKERS", &c.Workers.Size); err != nil {
		return err
	}
	if err := envInt("LSI_CHUNK_SIZE", &c.Workers.ChunkSize); err != nil {
		return err
	}
	if v := os.Getenv("LSI_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LSI_CORPORA"); v != "" {
		c.Corpora = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Corpora = append(c.Corpora, p)
			}
		}
	}
	c.Log = logger.ApplyEnv(c.Log)
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return &FieldError{Field: name, Value: v, Reason: "must be an integer"}
	}
	*dst = n
	return nil
}

// Validate checks field ranges and returns the first problem found.
func (c *Config) Validate() error {
	if _, err := interning.ParseStrategy(c.Table.Strategy); err != nil {
		return &FieldError{Field: "table.strategy", Value: c.Table.Strategy, Reason: "must be optimistic or exclusive"}
	}
	if c.Table.InitialCapacity < 0 {
		return &FieldError{Field: "table.initial_capacity", Value: c.Table.InitialCapacity, Reason: "cannot be negative"}
	}
	if c.Workers.Size < 0 {
		return &FieldError{Field: "workers.size", Value: c.Workers.Size, Reason: "cannot be negative"}
	}
	if c.Workers.ChunkSize <= 0 {
		return &FieldError{Field: "workers.chunk_size", Value: c.Workers.ChunkSize, Reason: "must be positive"}
	}
	if c.Loader.Concurrency <= 0 {
		return &FieldError{Field: "loader.concurrency", Value: c.Loader.Concurrency, Reason: "must be positive"}
	}
	if c.Loader.MaxLineBytes <= 0 {
		return &FieldError{Field: "loader.max_line_bytes", Value: c.Loader.MaxLineBytes, Reason: "must be positive"}
	}
	for i, p := range c.Corpora {
		if strings.TrimSpace(p) == "" {
			return &FieldError{Field: fmt.Sprintf("corpora[%d]", i), Value: p, Reason: "cannot be empty"}
		}
	}
	return nil
}

// Strategy returns the parsed table strategy. Call Validate first.
func (c *Config) Strategy() interning.Strategy {
	s, _ := interning.ParseStrategy(c.Table.Strategy)
	return s
}

// WorkerCount resolves a zero worker size to GOMAXPROCS.
func (c *Config) WorkerCount() int {
	if c.Workers.Size > 0 {
		return c.Workers.Size
	}
	return runtime.GOMAXPROCS(0)
}
