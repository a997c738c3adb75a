package main

import (
	"errors"
	"fmt"
)

// ErrTileNotFound is returned when a coordinate lies outside every known
// bound of the tileset.
var ErrTileNotFound = errors.New("tile not found")

// ErrPoolExhausted is returned when no read handle became free within the
// configured acquisition timeout.
var ErrPoolExhausted = errors.New("read handle pool exhausted")

// ErrCorruptArchive is returned when a file has the .mbtiles extension but
// is not a structurally valid tile archive.
var ErrCorruptArchive = errors.New("corrupt tile archive")

// ErrTilesetClosed is returned when an operation reaches a tileset that has
// already been retired and closed.
var ErrTilesetClosed = errors.New("tileset closed")

// ErrUnknownFormat is returned by the codec for blobs it cannot classify,
// including empty blobs.
var ErrUnknownFormat = errors.New("unrecognized tile data")

// MetadataError 元数据字段解析错误, 记录后按字段缺失处理
type MetadataError struct {
	Key   string
	Value string
	Err   error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("metadata key %q: invalid value %q: %v", e.Key, e.Value, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// ScanError 单个文件扫描失败, 不影响整体扫描
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }
