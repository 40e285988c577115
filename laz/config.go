package laz

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/DisposaBoy/JsonConfigReader"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultChunkSize is the number of points per chunk.
	DefaultChunkSize = 50000
	// MaxChunkSize bounds the points of a single chunk, both when writing
	// and when reading a container.
	MaxChunkSize = 1 << 20
)

// Config controls how containers are written and read.
type Config struct {
	// ChunkSize is the number of points per chunk.
	ChunkSize int    `json:"chunkSize" yaml:"chunk_size"`
	// Workers bounds the number of chunks coded concurrently.
	Workers   int    `json:"workers"   yaml:"workers"`
	LogLevel  string `json:"logLevel"  yaml:"log_level"`
	LogFormat string `json:"logFormat" yaml:"log_format"`

	// Progress, when set, is advanced as chunks are coded.
	Progress Progress `json:"-" yaml:"-"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		Workers:   runtime.NumCPU(),
		LogLevel:  "info",
		LogFormat: "default",
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("laz: chunk size must be in [1, %d], got %d", MaxChunkSize, c.ChunkSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("laz: workers must be positive, got %d", c.Workers)
	}
	switch c.LogFormat {
	case "", "default", "json":
	default:
		return fmt.Errorf("laz: unknown log format %q", c.LogFormat)
	}
	return nil
}

// LoadConfig reads configuration from a JSON file, which may contain
// comments, or from a YAML file. Fields missing from the file keep their
// value in config.
func LoadConfig(filename string, config *Config) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	return decodeConfig(f, config)
}

func decodeConfig(r io.ReadSeeker, config *Config) error {
	// decode into a copy, so a failed JSON attempt does not leak into the
	// YAML attempt
	fromJSON := *config
	err := json.NewDecoder(JsonConfigReader.New(r)).Decode(&fromJSON)
	if err == nil {
		*config = fromJSON
		return config.Validate()
	}

	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return serr
	}
	fromYAML := *config
	if err2 := yaml.NewDecoder(r).Decode(&fromYAML); err2 != nil {
		return fmt.Errorf("laz: invalid yaml (%s) or json (%s)", err2, err)
	}
	*config = fromYAML
	return config.Validate()
}
