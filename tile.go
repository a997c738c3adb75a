package main

import (
	"github.com/paulmach/orb/maptile"
)

// TileSize 默认瓦片大小
const TileSize = 256

// ZoomMin 最小级别
const ZoomMin = 0

// ZoomMax 最大级别
const ZoomMax = 22

// TileFormat 瓦片数据格式
type TileFormat string

// Constants representing TileFormat types
const (
	GZIP TileFormat = "gzip" // encoding = gzip
	ZLIB TileFormat = "zlib" // encoding = deflate
	PNG  TileFormat = "png"
	JPG  TileFormat = "jpg"
	PBF  TileFormat = "pbf"
	WEBP TileFormat = "webp"
)

// ContentType 格式对应的 MIME 类型
func (f TileFormat) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPG:
		return "image/jpeg"
	case WEBP:
		return "image/webp"
	case PBF, GZIP, ZLIB:
		return "application/vnd.mapbox-vector-tile"
	default:
		return "application/octet-stream"
	}
}

// ContentEncoding 格式对应的传输编码, 无编码返回空串
func (f TileFormat) ContentEncoding() string {
	switch f {
	case GZIP:
		return "gzip"
	case ZLIB:
		return "deflate"
	default:
		return ""
	}
}

// Extension URL 中使用的扩展名
func (f TileFormat) Extension() string {
	switch f {
	case PNG, JPG, WEBP:
		return string(f)
	default:
		return string(PBF)
	}
}

// Tile 一次瓦片查询结果
type Tile struct {
	T        maptile.Tile
	C        []byte
	Format   TileFormat
	Encoding string
}

// FlipRow converts between the XYZ row convention (row 0 = north) and the
// archive's TMS convention (row 0 = south). The flip is its own inverse.
func FlipRow(z maptile.Zoom, y uint32) uint32 {
	return (uint32(1) << z) - 1 - y
}

// ValidCoord reports whether x and y are inside the tile grid at zoom z.
func ValidCoord(z maptile.Zoom, x, y uint32) bool {
	if z > ZoomMax {
		return false
	}
	n := uint32(1) << z
	return x < n && y < n
}
