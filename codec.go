package main

import (
	"bytes"
)

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
	jpgMagic  = []byte{0xFF, 0xD8}
	riffMagic = []byte{0x52, 0x49, 0x46, 0x46}
	webpMark  = []byte("WEBP")
	gzipMagic = []byte{0x1F, 0x8B}
)

// DetectTileFormat 按魔数嗅探瓦片数据格式, 元数据声明的格式仅作提示,
// 编码以字节内容为准
func DetectTileFormat(data []byte) (TileFormat, error) {
	if len(data) == 0 {
		return "", ErrUnknownFormat
	}
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return PNG, nil
	case bytes.HasPrefix(data, jpgMagic):
		return JPG, nil
	case bytes.HasPrefix(data, riffMagic) && len(data) >= 12 && bytes.Equal(data[8:12], webpMark):
		return WEBP, nil
	case bytes.HasPrefix(data, gzipMagic):
		// 矢量瓦片通常逐个 gzip 压缩
		return GZIP, nil
	default:
		return PBF, nil
	}
}
