// Package config holds the rewrite profile: the recognized allocator set,
// the error-code vocabulary spliced into rewritten functions, and the file
// discovery settings used by the CLI and the MCP server.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full rewrite profile. Zero values are filled from Default.
type Config struct {
	// Allocators is the recognized heap-allocation API set.
	Allocators []string `yaml:"allocators"`
	// EntrySymbol is the function whose signature must never change.
	EntrySymbol string `yaml:"entry_symbol"`
	// ErrorType is the return type given to converted functions.
	ErrorType string `yaml:"error_type"`
	// ErrorReturn and SuccessReturn are the code literals spliced into
	// generated guards and returns.
	ErrorReturn   string `yaml:"error_return"`
	SuccessReturn string `yaml:"success_return"`
	// OutParam names the appended out-parameter of converted pointer
	// functions; ErrVar names the local capturing callee results.
	OutParam string `yaml:"out_param"`
	ErrVar   string `yaml:"err_var"`
	// GuardWindow is how many statements after an allocation a null guard
	// still counts as covering it.
	GuardWindow int `yaml:"guard_window"`
	// Extensions and Excludes drive file discovery. Excludes uses
	// gitignore-style patterns.
	Extensions []string `yaml:"extensions"`
	Excludes   []string `yaml:"excludes"`
}

// Default returns the built-in profile.
func Default() *Config {
	return &Config{
		Allocators:    []string{"malloc", "calloc", "realloc", "strdup", "strndup", "aligned_alloc"},
		EntrySymbol:   "main",
		ErrorType:     "int",
		ErrorReturn:   "-1",
		SuccessReturn: "0",
		OutParam:      "out",
		ErrVar:        "rc",
		GuardWindow:   1,
		Extensions:    []string{".c", ".h"},
	}
}

// Load reads a YAML profile and overlays it on the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Allocators) == 0 {
		return fmt.Errorf("allocators must not be empty")
	}
	if c.EntrySymbol == "" {
		return fmt.Errorf("entry_symbol must not be empty")
	}
	if c.GuardWindow < 1 {
		return fmt.Errorf("guard_window must be at least 1, got %d", c.GuardWindow)
	}
	if c.OutParam == "" || c.ErrVar == "" {
		return fmt.Errorf("out_param and err_var must not be empty")
	}
	return nil
}

// AllocatorSet returns the allocator names as a lookup set.
func (c *Config) AllocatorSet() map[string]bool {
	set := make(map[string]bool, len(c.Allocators))
	for _, a := range c.Allocators {
		set[a] = true
	}
	return set
}

// ExtensionSet returns the file extensions as a lookup set.
func (c *Config) ExtensionSet() map[string]bool {
	set := make(map[string]bool, len(c.Extensions))
	for _, e := range c.Extensions {
		set[e] = true
	}
	return set
}
