package runtime

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-jit/errors"
	"github.com/wippyai/wasm-jit/linker"
)

const (
	pageSize = 65536
	maxPages = 65536
)

// Config configures a Runtime.
type Config struct {
	// MemoryPages is the initial size of the shared memory in 64KB pages.
	MemoryPages uint32 `toml:"memory-pages"`

	// MaxMemoryPages bounds memory.grow on the shared memory.
	MaxMemoryPages uint32 `toml:"max-memory-pages"`

	// MemoryLimitPages is the wazero runtime limit, 0 for the default.
	MemoryLimitPages uint32 `toml:"memory-limit-pages"`

	// ScratchAddr is the address of the 8-byte scratch area compiled code
	// reaches through $tempDoublePtr.
	ScratchAddr uint32 `toml:"scratch-addr"`

	// LogLevel is a zap level name (debug, info, warn, error). Empty
	// disables logging.
	LogLevel string `toml:"log-level"`
}

// DefaultConfig returns the configuration New uses when given nil.
func DefaultConfig() *Config {
	opts := linker.DefaultOptions()
	return &Config{
		MemoryPages:    opts.MemoryPages,
		MaxMemoryPages: opts.MaxMemoryPages,
		ScratchAddr:    opts.ScratchAddr,
	}
}

// Validate checks that the memory layout is consistent.
func (c *Config) Validate() error {
	switch {
	case c.MemoryPages == 0:
		return errors.InvalidConfig("memory-pages must be at least 1")
	case c.MaxMemoryPages < c.MemoryPages:
		return errors.InvalidConfig("max-memory-pages (%d) is below memory-pages (%d)", c.MaxMemoryPages, c.MemoryPages)
	case c.MaxMemoryPages > maxPages:
		return errors.InvalidConfig("max-memory-pages (%d) exceeds %d", c.MaxMemoryPages, maxPages)
	case c.MemoryLimitPages > 0 && c.MaxMemoryPages > c.MemoryLimitPages:
		return errors.InvalidConfig("max-memory-pages (%d) exceeds memory-limit-pages (%d)", c.MaxMemoryPages, c.MemoryLimitPages)
	case c.ScratchAddr%8 != 0:
		return errors.InvalidConfig("scratch-addr (%d) must be 8-byte aligned", c.ScratchAddr)
	case uint64(c.ScratchAddr)+8 > uint64(c.MemoryPages)*pageSize:
		return errors.InvalidConfig("scratch-addr (%d) lies outside the initial memory", c.ScratchAddr)
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return errors.InvalidConfig("log-level: %v", err)
		}
	}
	return nil
}

// LoadConfig reads a TOML file over the defaults. Unknown keys are errors.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidConfig, err, "read "+path)
	}
	return ParseConfig(string(data))
}

// ParseConfig decodes TOML text over the defaults.
func ParseConfig(text string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidConfig, err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.InvalidConfig("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) linkerOptions() linker.Options {
	return linker.Options{
		MemoryPages:    c.MemoryPages,
		MaxMemoryPages: c.MaxMemoryPages,
		ScratchAddr:    c.ScratchAddr,
	}
}

// newLogger builds a development logger at the configured level, or nil
// when logging is off.
func (c *Config) newLogger() (*zap.Logger, error) {
	if c.LogLevel == "" {
		return nil, nil
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.InvalidConfig("log-level: %v", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
