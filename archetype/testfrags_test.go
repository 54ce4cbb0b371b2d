package archetype_test

import (
	"github.com/rs/zerolog"

	"github.com/fragforge/fragstore/archetype"
	"github.com/fragforge/fragstore/fragment"
	"github.com/fragforge/fragstore/types"
)

type Position struct {
	X, Y, Z float32
}

func (Position) Name() string { return "position" }

type Velocity struct {
	X, Y, Z float32
}

func (Velocity) Name() string { return "velocity" }

type Mass struct {
	Value float64
}

func (Mass) Name() string { return "mass" }

type PlayerTag struct{}

func (PlayerTag) Name() string { return "player_tag" }

type Team struct {
	ID int32
}

func (Team) Name() string { return "team" }

type WorldSeed struct {
	Seed uint64
}

func (WorldSeed) Name() string { return "world_seed" }

type SpawnInfo struct {
	Count int32
}

func (SpawnInfo) Name() string { return "spawn_info" }

// Lifecycle-counted fragments for migration tests.
type TrackedGear struct {
	Durability int32
}

func (TrackedGear) Name() string { return "tracked_gear" }

type TrackedCharge struct {
	Level int32
}

func (TrackedCharge) Name() string { return "tracked_charge" }

var (
	gearInits, gearDrops     int
	chargeInits, chargeDrops int
)

func resetLifecycleCounters() {
	gearInits, gearDrops = 0, 0
	chargeInits, chargeDrops = 0, 0
}

var (
	positionMD, errPositionMD = fragment.NewFragmentMetadata[Position]()
	velocityMD, errVelocityMD = fragment.NewFragmentMetadata[Velocity]()
	massMD, errMassMD         = fragment.NewFragmentMetadata[Mass]()
	playerTagMD, errPlayerMD  = fragment.NewFragmentMetadata[PlayerTag]()
	teamMD, errTeamMD         = fragment.NewFragmentMetadata[Team]()
	seedMD, errSeedMD         = fragment.NewFragmentMetadata[WorldSeed]()
	spawnMD, errSpawnMD       = fragment.NewFragmentMetadata[SpawnInfo]()

	gearMD, errGearMD = fragment.NewFragmentMetadata[TrackedGear](
		fragment.WithInit(func(g *TrackedGear) { gearInits++ }),
		fragment.WithDrop(func(g *TrackedGear) { gearDrops++ }),
	)
	chargeMD, errChargeMD = fragment.NewFragmentMetadata[TrackedCharge](
		fragment.WithInit(func(c *TrackedCharge) { chargeInits++ }),
		fragment.WithDrop(func(c *TrackedCharge) { chargeDrops++ }),
	)
)

//nolint:gochecknoinits // it's for testing.
func init() {
	for i, md := range []types.FragmentMetadata{
		positionMD, velocityMD, massMD, playerTagMD, teamMD, seedMD, spawnMD, gearMD, chargeMD,
	} {
		if err := md.SetID(types.FragmentID(i + 1)); err != nil {
			panic(err)
		}
	}
	for _, err := range []error{
		errPositionMD, errVelocityMD, errMassMD, errPlayerMD, errTeamMD,
		errSeedMD, errSpawnMD, errGearMD, errChargeMD,
	} {
		if err != nil {
			panic(err)
		}
	}
}

func mustComposition(cfg archetype.CompositionConfig) *archetype.Composition {
	comp, err := archetype.NewComposition(cfg)
	if err != nil {
		panic(err)
	}
	return comp
}

func newTestArchetype(id types.ArchetypeID, comp *archetype.Composition, budget int) *archetype.Archetype {
	arch, err := archetype.New(id, comp, budget, zerolog.Nop())
	if err != nil {
		panic(err)
	}
	return arch
}

func mustShared(pairs ...archetype.SharedValue) *archetype.SharedValues {
	s, err := archetype.NewSharedValues(pairs...)
	if err != nil {
		panic(err)
	}
	return s
}

func teamShared(teamID int32) *archetype.SharedValues {
	return mustShared(archetype.SharedValue{Metadata: teamMD, Value: Team{ID: teamID}})
}
