package benchmark

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinassay/coinassay/internal/model"
)

func writeSet(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "benchmarks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
	return path
}

func TestLoadValidSet(t *testing.T) {
	path := writeSet(t, `
benchmarks:
  - rank: 1
    tier: ALPHA
    standard:
      min_strong_technical: 4
      max_red_flags: 0
    band: {min: 90, max: 100}
  - rank: 2
    tier: TRASH
    standard: {}
    band: {min: 0, max: 39}
`)

	set, err := Load(path)
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, model.TierAlpha, set[0].Tier)
	require.NotNil(t, set[0].Standard.MinStrongTechnical)
	assert.Equal(t, 4, *set[0].Standard.MinStrongTechnical)
	assert.Nil(t, set[0].Standard.MinMathDensity)
}

func TestLoadRejectsOverlappingBands(t *testing.T) {
	path := writeSet(t, `
benchmarks:
  - rank: 1
    tier: ALPHA
    standard: {}
    band: {min: 80, max: 100}
  - rank: 2
    tier: SOLID
    standard: {}
    band: {min: 70, max: 85}
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlaps")
}

func TestLoadRejectsNonIncreasingRanks(t *testing.T) {
	path := writeSet(t, `
benchmarks:
  - rank: 2
    tier: ALPHA
    standard: {}
    band: {min: 90, max: 100}
  - rank: 2
    tier: SOLID
    standard: {}
    band: {min: 70, max: 89}
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly increase")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeSet(t, "benchmarks: [whoops"))
	assert.Error(t, err)
}

func TestLoadOrDefaults(t *testing.T) {
	set, err := LoadOrDefaults("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), set)
	require.NoError(t, Validate(set), "stock set must pass its own validation")
}
