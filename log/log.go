package log

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/fragforge/fragstore/archetype"
	"github.com/fragforge/fragstore/types"
)

type Loggable interface {
	GetRegisteredFragments() []types.FragmentMetadata
}

func loadFragmentIntoArrayLogger(
	fragment types.FragmentMetadata,
	arrayLogger *zerolog.Array,
) *zerolog.Array {
	dictLogger := zerolog.Dict()
	dictLogger = dictLogger.Int("fragment_id", int(fragment.ID()))
	dictLogger = dictLogger.Str("fragment_name", fragment.Name())
	dictLogger = dictLogger.Int("size", fragment.Size())
	return arrayLogger.Dict(dictLogger)
}

func loadFragmentsToEvent(zeroLoggerEvent *zerolog.Event, target Loggable) *zerolog.Event {
	fragments := target.GetRegisteredFragments()
	sort.Slice(fragments, func(i, j int) bool {
		return fragments[i].ID() < fragments[j].ID()
	})
	zeroLoggerEvent.Int("total_fragments", len(fragments))
	arrayLogger := zerolog.Arr()
	for _, _fragment := range fragments {
		arrayLogger = loadFragmentIntoArrayLogger(_fragment, arrayLogger)
	}
	return zeroLoggerEvent.Array("fragments", arrayLogger)
}

// Fragments logs all fragment info registered with the engine.
func Fragments(logger *zerolog.Logger, target Loggable, level zerolog.Level) {
	zeroLoggerEvent := logger.WithLevel(level)
	zeroLoggerEvent = loadFragmentsToEvent(zeroLoggerEvent, target)
	zeroLoggerEvent.Send()
}

// Archetype logs an archetype's composition and occupancy statistics.
func Archetype(logger *zerolog.Logger, level zerolog.Level, arch *archetype.Archetype) {
	stats := arch.Stats()
	zeroLoggerEvent := logger.WithLevel(level)
	zeroLoggerEvent.Int("archetype_id", int(arch.ID()))
	zeroLoggerEvent.Str("composition", arch.Composition().String())
	zeroLoggerEvent.Int("capacity", stats.Capacity)
	zeroLoggerEvent.Int("num_chunks", stats.NumChunks)
	zeroLoggerEvent.Int("num_entities", stats.NumEntities)
	zeroLoggerEvent.Int("total_bytes", stats.TotalBytes)
	zeroLoggerEvent.Send()
}

// Entity logs entity info given an entityID and its location.
func Entity(
	logger *zerolog.Logger,
	level zerolog.Level, entityID types.EntityID, archID types.ArchetypeID, index types.ArchetypeIndex,
) {
	zeroLoggerEvent := logger.WithLevel(level)
	zeroLoggerEvent.Int("entity_id", int(entityID)) //nolint:gosec
	zeroLoggerEvent.Int("archetype_id", int(archID))
	zeroLoggerEvent.Int("archetype_index", int(index))
	zeroLoggerEvent.Send()
}

// CreateEngineLogger creates a sub logger with the entry {"engine": name}.
func CreateEngineLogger(logger *zerolog.Logger, name string) *zerolog.Logger {
	newLogger := logger.With().Str("engine", name).Logger()
	return &newLogger
}

// CreateTraceLogger creates a trace logger. Using a single id you can use
// this logger to follow and log a data path.
func CreateTraceLogger(logger *zerolog.Logger, traceID string) *zerolog.Logger {
	newLogger := logger.With().Str("trace_id", traceID).Logger()
	return &newLogger
}
