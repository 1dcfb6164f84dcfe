// Package config holds the CLI settings shared by all subcommands.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/invopop/jsonschema"

	"armlift/internal/arch"
	"armlift/internal/explore"
	"armlift/internal/lift"
)

// Config is the armlift configuration file. Flags override file values.
type Config struct {
	Arch          string `json:"arch" jsonschema:"title=Architecture,description=Instruction set to lift (a64 or a32; arm64 aarch64 and arm are accepted),default=a64"`
	MaxBlockBytes int    `json:"maxBlockBytes,omitempty" jsonschema:"title=Max Block Bytes,description=End a block with a fallthrough after this many bytes (0 means unlimited),minimum=0"`
	MaxBlocks     int    `json:"maxBlocks,omitempty" jsonschema:"title=Max Blocks,description=Stop exploring after this many blocks,minimum=0,default=4096"`
	Workers       int    `json:"workers,omitempty" jsonschema:"title=Workers,description=Blocks translated concurrently while exploring,minimum=0,default=4"`
	LogLevel      string `json:"logLevel,omitempty" jsonschema:"title=Log Level,enum=debug,enum=info,enum=warn,enum=error"`
	OutputDir     string `json:"outputDir,omitempty" jsonschema:"title=Output Directory,description=Directory for explore reports"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Arch:      "a64",
		MaxBlocks: 4096,
		Workers:   4,
		LogLevel:  "info",
		OutputDir: ".",
	}
}

// Load reads a JSON configuration file over the defaults. Unknown fields
// are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the architecture name, the budgets and the log level.
func (c Config) Validate() error {
	var errs []error
	if _, err := arch.Lookup(c.Arch); err != nil {
		errs = append(errs, err)
	}
	if c.MaxBlockBytes < 0 {
		errs = append(errs, fmt.Errorf("maxBlockBytes must not be negative (got %d)", c.MaxBlockBytes))
	}
	if c.MaxBlocks < 0 {
		errs = append(errs, fmt.Errorf("maxBlocks must not be negative (got %d)", c.MaxBlocks))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative (got %d)", c.Workers))
	}
	if c.LogLevel != "" {
		if lvl, err := log.ParseLevel(c.LogLevel); err != nil || lvl == log.FatalLevel {
			errs = append(errs, fmt.Errorf("logLevel must be debug, info, warn or error (got %q)", c.LogLevel))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LiftOptions returns the translator options.
func (c Config) LiftOptions(logger *log.Logger) lift.Options {
	return lift.Options{MaxBytes: c.MaxBlockBytes, Logger: logger}
}

// ExploreOptions returns the explorer options.
func (c Config) ExploreOptions(logger *log.Logger) explore.Options {
	return explore.Options{MaxBlocks: c.MaxBlocks, Workers: c.Workers, Logger: logger}
}

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	reflector := new(jsonschema.Reflector)
	bts, err := json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("config: marshal schema: %w", err)
	}
	return bts, nil
}
