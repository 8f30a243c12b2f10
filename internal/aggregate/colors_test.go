package aggregate

import (
	"testing"

	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupeColors_Scenario(t *testing.T) {
	colors := []measurement.ColorEntry{
		{Name: "brown", Hex: "#8B4513", Coverage: 35},
		{Name: "dark brown", Hex: "#7B3503", Coverage: 25},
		{Name: "black", Hex: "#000000", Coverage: 40},
	}

	out := DedupeColors(colors)

	require.Len(t, out, 2)
	assert.Equal(t, measurement.ColorEntry{Name: "brown", Hex: "#833D0B", Coverage: 60}, out[0])
	assert.Equal(t, measurement.ColorEntry{Name: "black", Hex: "#000000", Coverage: 40}, out[1])
}

func TestDedupeColors_Idempotent(t *testing.T) {
	inputs := [][]measurement.ColorEntry{
		{
			{Name: "brown", Hex: "#8B4513", Coverage: 35},
			{Name: "dark brown", Hex: "#7B3503", Coverage: 25},
			{Name: "black", Hex: "#000000", Coverage: 40},
		},
		{
			// Merging a and c moves the mean close enough to b.
			{Name: "a", Hex: "#000000", Coverage: 30},
			{Name: "b", Hex: "#3A1E00", Coverage: 10},
			{Name: "c", Hex: "#280000", Coverage: 30},
		},
		{
			{Name: "red", Hex: "#ff0000", Coverage: 90},
			{Name: "RED", Hex: "#00FF00", Coverage: 30},
			{Name: "blue", Hex: "#0000FF", Coverage: 10},
			{Name: "white", Hex: "#FFFFFF", Coverage: 5},
			{Name: "gray", Hex: "#808080", Coverage: 2},
		},
	}
	for _, in := range inputs {
		once := DedupeColors(in)
		twice := DedupeColors(once)
		assert.Equal(t, once, twice)
	}
}

func TestDedupeColors_MergesUntilStable(t *testing.T) {
	out := DedupeColors([]measurement.ColorEntry{
		{Name: "a", Hex: "#000000", Coverage: 30},
		{Name: "b", Hex: "#3A1E00", Coverage: 10},
		{Name: "c", Hex: "#280000", Coverage: 30},
	})
	require.Len(t, out, 1)
	assert.Equal(t, measurement.ColorEntry{Name: "a", Hex: "#200A00", Coverage: 70}, out[0])
}

func TestDedupeColors_CapsCoverageAndCount(t *testing.T) {
	out := DedupeColors([]measurement.ColorEntry{
		{Name: "red", Hex: "#FF0000", Coverage: 90},
		{Name: "red", Hex: "#FF0000", Coverage: 30},
		{Name: "green", Hex: "#00FF00", Coverage: 20},
		{Name: "blue", Hex: "#0000FF", Coverage: 10},
		{Name: "white", Hex: "#FFFFFF", Coverage: 5},
	})

	require.Len(t, out, 3)
	assert.Equal(t, 100.0, out[0].Coverage)
	assert.Equal(t, "red", out[0].Name)
	assert.Equal(t, "green", out[1].Name)
	assert.Equal(t, "blue", out[2].Name)
}

func TestDedupeColors_SkipsInvalidHex(t *testing.T) {
	out := DedupeColors([]measurement.ColorEntry{
		{Name: "mystery", Hex: "#XYZ", Coverage: 50},
		{Name: "black", Hex: "#000000", Coverage: 10},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "black", out[0].Name)
}

func TestDedupeColors_Empty(t *testing.T) {
	assert.Empty(t, DedupeColors(nil))
}
