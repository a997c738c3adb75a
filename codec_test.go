package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTileFormat(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want TileFormat
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, PNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, JPG},
		{"webp", []byte{0x52, 0x49, 0x46, 0x46, 0x10, 0x00, 0x00, 0x00, 0x57, 0x45, 0x42, 0x50}, WEBP},
		{"gzip vector", []byte{0x1F, 0x8B, 0x08, 0x00}, GZIP},
		{"raw vector", []byte{0x1A, 0x02, 0x78, 0x02}, PBF},
		{"riff without webp marker", []byte{0x52, 0x49, 0x46, 0x46, 0x10, 0x00, 0x00, 0x00, 0x41, 0x56, 0x49, 0x20}, PBF},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectTileFormat(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			// 幂等
			again, err := DetectTileFormat(tc.data)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestDetectTileFormatEmpty(t *testing.T) {
	_, err := DetectTileFormat(nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = DetectTileFormat([]byte{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatContentHeaders(t *testing.T) {
	assert.Equal(t, "image/png", PNG.ContentType())
	assert.Equal(t, "image/jpeg", JPG.ContentType())
	assert.Equal(t, "image/webp", WEBP.ContentType())
	assert.Equal(t, "application/vnd.mapbox-vector-tile", PBF.ContentType())

	assert.Equal(t, "", PNG.ContentEncoding())
	assert.Equal(t, "gzip", GZIP.ContentEncoding())
	assert.Equal(t, "deflate", ZLIB.ContentEncoding())

	assert.Equal(t, "png", PNG.Extension())
	assert.Equal(t, "pbf", GZIP.Extension())
}
