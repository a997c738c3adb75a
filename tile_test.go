package main

import (
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
)

func TestFlipRowRoundTrip(t *testing.T) {
	for z := maptile.Zoom(0); z <= ZoomMax; z++ {
		n := uint32(1) << z
		rows := []uint32{0, n - 1, n / 2, n / 3}
		for _, y := range rows {
			if y >= n {
				continue
			}
			flipped := FlipRow(z, y)
			assert.Less(t, flipped, n)
			assert.Equal(t, y, FlipRow(z, flipped), "zoom %d row %d", z, y)
		}
	}
}

func TestFlipRowKnownValues(t *testing.T) {
	// z0 只有一行, 翻转是恒等
	assert.Equal(t, uint32(0), FlipRow(0, 0))
	// z2: 0..3 翻转为 3..0
	assert.Equal(t, uint32(3), FlipRow(2, 0))
	assert.Equal(t, uint32(0), FlipRow(2, 3))
	assert.Equal(t, uint32(2), FlipRow(2, 1))
}

func TestValidCoord(t *testing.T) {
	assert.True(t, ValidCoord(0, 0, 0))
	assert.False(t, ValidCoord(0, 1, 0))
	assert.False(t, ValidCoord(0, 0, 1))

	assert.True(t, ValidCoord(3, 7, 7))
	assert.False(t, ValidCoord(3, 8, 0))
	assert.False(t, ValidCoord(3, 0, 8))

	assert.False(t, ValidCoord(ZoomMax+1, 0, 0))
}
