package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestLevelForXP_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("level never decreases below the previous level", prop.ForAll(
		func(previous int, xp int64) bool {
			return LevelForXP(previous, xp) >= previous
		},
		gen.IntRange(1, 100),
		gen.Int64Range(0, 1_000_000),
	))

	properties.Property("level is monotonic in xp", prop.ForAll(
		func(a, b int64) bool {
			if a > b {
				a, b = b, a
			}
			return LevelForXP(1, a) <= LevelForXP(1, b)
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.Property("every 500 xp grants a level", prop.ForAll(
		func(xp int64) bool {
			return LevelForXP(1, xp+500) == LevelForXP(1, xp)+1
		},
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}

func TestNormalizeAddress_Idempotent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("normalizing twice equals normalizing once", prop.ForAll(
		func(s string) bool {
			once := NormalizeAddress(s)
			return NormalizeAddress(once) == once
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
