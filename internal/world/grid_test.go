package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid_RegionAt(t *testing.T) {
	g := NewGrid(100, 60, 25, 20, 1)
	require.Equal(t, 4, g.Cols())
	require.Equal(t, 3, g.Rows())

	tests := []struct {
		name string
		x, y int
		want RegionID
	}{
		{"origin", 0, 0, 0},
		{"last tile of first zone", 24, 19, 0},
		{"second column", 25, 0, 1},
		{"second row", 0, 20, 4},
		{"far corner", 99, 59, 11},
		{"negative x", -1, 0, NoRegion},
		{"negative y", 0, -1, NoRegion},
		{"past width", 100, 0, NoRegion},
		{"past height", 0, 60, NoRegion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.RegionAt(tt.x, tt.y))
		})
	}
}

func TestGrid_RoundTrip(t *testing.T) {
	g := NewGrid(103, 47, 10, 10, 1)
	for y := 0; y < 47; y++ {
		for x := 0; x < 103; x++ {
			id := g.RegionAt(x, y)
			require.NotEqual(t, NoRegion, id)
			ox, oy, ok := g.Origin(id)
			require.True(t, ok)
			assert.Equal(t, id, g.RegionAt(ox, oy))

			back, err := g.ParseKey(g.Key(id))
			require.NoError(t, err)
			assert.Equal(t, id, back)
		}
	}
}

func TestGrid_Surrounding(t *testing.T) {
	g := NewGrid(50, 50, 10, 10, 1) // 5x5 zones

	center := g.RegionAt(25, 25)
	assert.Len(t, g.Surrounding(center), 9)

	corner := g.RegionAt(0, 0)
	got := g.Surrounding(corner)
	assert.ElementsMatch(t, []RegionID{0, 1, 5, 6}, got)

	edge := g.RegionAt(25, 0)
	assert.Len(t, g.Surrounding(edge), 6)

	assert.Nil(t, g.Surrounding(NoRegion))
	assert.Nil(t, g.Surrounding(RegionID(999)))
	assert.Len(t, g.SurroundingN(center, 2), 25)
}

func TestGrid_Adjacent(t *testing.T) {
	g := NewGrid(50, 50, 10, 10, 1)
	center := g.RegionAt(25, 25) // zone 12
	assert.ElementsMatch(t, []RegionID{7, 11, 12, 13, 17}, g.Adjacent(center))

	corner := g.RegionAt(0, 0)
	assert.ElementsMatch(t, []RegionID{0, 1, 5}, g.Adjacent(corner))
	assert.Nil(t, g.Adjacent(NoRegion))
}

func TestGrid_Links(t *testing.T) {
	g := NewGrid(50, 50, 10, 10, 1)
	from := g.RegionAt(0, 0)
	to := g.RegionAt(45, 45)

	g.Link(from, to)
	g.Link(from, to)
	g.Link(from, NoRegion)

	got := g.Surrounding(from)
	assert.Contains(t, got, to)
	assert.Len(t, got, 5)
	assert.NotContains(t, g.Surrounding(to), from, "links are one way")
	assert.True(t, g.IsSurrounding(from, to))
}

func TestRegionDiff(t *testing.T) {
	assert.Equal(t, []RegionID{1, 3}, RegionDiff([]RegionID{1, 2, 3}, []RegionID{2, 4}))
	assert.Nil(t, RegionDiff([]RegionID{1}, []RegionID{1}))
}

func TestGrid_ParseKeyErrors(t *testing.T) {
	g := NewGrid(20, 20, 10, 10, 1)
	for _, key := range []string{"", "1", "a-1", "1-b", "5-5"} {
		_, err := g.ParseKey(key)
		assert.Error(t, err, key)
	}
}
