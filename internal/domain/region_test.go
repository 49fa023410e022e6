package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupRegion(t *testing.T) {
	box, err := LookupRegion("Philippines")
	require.NoError(t, err)
	require.NotNil(t, box)
	assert.True(t, box.Contains(13.257, 123.685)) // Mayon
	assert.False(t, box.Contains(35.68, 139.69))  // Tokyo

	box, err = LookupRegion("japan")
	require.NoError(t, err)
	assert.True(t, box.Contains(31.58, 130.66)) // Sakurajima
}

func TestLookupRegion_Unbounded(t *testing.T) {
	for _, name := range []string{"", "global", " GLOBAL "} {
		box, err := LookupRegion(name)
		require.NoError(t, err, name)
		assert.Nil(t, box, name)
	}
}

func TestLookupRegion_Unknown(t *testing.T) {
	_, err := LookupRegion("atlantis")
	require.ErrorIs(t, err, ErrInvalidQuery)
	assert.Contains(t, err.Error(), "atlantis")
}

func TestLookupRegion_ReturnsCopy(t *testing.T) {
	box, err := LookupRegion("indonesia")
	require.NoError(t, err)
	box.MinLat = 80

	again, err := LookupRegion("indonesia")
	require.NoError(t, err)
	assert.InDelta(t, -11.0, again.MinLat, 1e-9)
}

func TestRegionNames(t *testing.T) {
	assert.Equal(t, []string{"global", "indonesia", "japan", "philippines"}, RegionNames())
}
