package fragstore

import (
	"time"

	"github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
)

// Config carries the engine's tuning knobs. Values are loaded from the
// environment; unset variables keep their defaults.
type Config struct {
	// ChunkByteBudget is the byte size every archetype lays its chunks out
	// against. Capacity is derived from it once per archetype.
	ChunkByteBudget int `config:"FRAGSTORE_CHUNK_BYTE_BUDGET"`
	// CompactBudgetMillis bounds one defragmentation pass, since compaction
	// competes with other frame-time work.
	CompactBudgetMillis int64 `config:"FRAGSTORE_COMPACT_BUDGET_MS"`
	// LogLevel is a zerolog level string.
	LogLevel string `config:"FRAGSTORE_LOG_LEVEL"`
}

func DefaultConfig() Config {
	return Config{
		ChunkByteBudget:     16 * 1024,
		CompactBudgetMillis: 2,
		LogLevel:            "info",
	}
}

// LoadConfig reads the engine config from the environment on top of the
// defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := config.FromEnv().To(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to load engine config from environment")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ChunkByteBudget <= 0 {
		return eris.Errorf("chunk byte budget must be positive, got %d", c.ChunkByteBudget)
	}
	if c.CompactBudgetMillis <= 0 {
		return eris.Errorf("compact budget must be positive, got %d", c.CompactBudgetMillis)
	}
	return nil
}

// CompactBudget returns the compaction budget as a duration.
func (c Config) CompactBudget() time.Duration {
	return time.Duration(c.CompactBudgetMillis) * time.Millisecond
}
