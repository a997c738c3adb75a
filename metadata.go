package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileMeta TileJSON 形式的瓦片集描述
type TileMeta struct {
	Name         string
	Description  string
	Attribution  string
	Format       TileFormat
	Bounds       *[4]float64 // west, south, east, north
	Center       *[3]float64 // lon, lat, zoom
	MinZoom      *int
	MaxZoom      *int
	VectorLayers []VectorLayer
}

// VectorLayer 矢量图层结构
type VectorLayer struct {
	ID          string            `json:"id"`
	Description string            `json:"description,omitempty"`
	Fields      map[string]string `json:"fields"`
}

// synthesizeMetadata builds a TileMeta from the archive's metadata table.
// Malformed fields are logged and treated as absent; missing zoom range or
// bounds fall back to one scan of the tile index. The caller caches the
// result for the tileset's lifetime.
func synthesizeMetadata(ctx context.Context, t *Tileset) (*TileMeta, error) {
	meta := &TileMeta{
		Name:   t.Name,
		Format: t.format,
	}

	rows, err := t.db.QueryContext(ctx, `SELECT name, value FROM metadata`)
	if err == nil {
		for rows.Next() {
			var name, value string
			if err := rows.Scan(&name, &value); err != nil {
				continue
			}
			applyMetadataField(meta, name, value)
		}
		// 扫描索引前先归还句柄
		rows.Close()
	}
	// metadata 表缺失也继续, 走索引扫描

	if meta.MinZoom == nil || meta.MaxZoom == nil || meta.Bounds == nil {
		if err := scanTileIndex(ctx, t, meta); err != nil {
			return nil, err
		}
	}
	if meta.Center == nil && meta.Bounds != nil {
		zoom := float64(ZoomMin)
		if meta.MinZoom != nil {
			zoom = float64(*meta.MinZoom)
		}
		b := meta.Bounds
		meta.Center = &[3]float64{(b[0] + b[2]) / 2, (b[1] + b[3]) / 2, zoom}
	}
	return meta, nil
}

func applyMetadataField(meta *TileMeta, name, value string) {
	fieldErr := func(err error) {
		log.Warnf("%v", &MetadataError{Key: name, Value: value, Err: err})
	}
	switch name {
	case "name":
		meta.Name = value
	case "description":
		meta.Description = value
	case "attribution":
		meta.Attribution = value
	case "bounds":
		b, err := parseFloats(value, 4)
		if err != nil {
			fieldErr(err)
			return
		}
		if b[0] > b[2] || b[1] > b[3] {
			fieldErr(fmt.Errorf("inverted bounds"))
			return
		}
		meta.Bounds = &[4]float64{b[0], b[1], b[2], b[3]}
	case "center":
		c, err := parseFloats(value, 3)
		if err != nil {
			fieldErr(err)
			return
		}
		meta.Center = &[3]float64{c[0], c[1], c[2]}
	case "minzoom":
		z, err := strconv.Atoi(value)
		if err != nil {
			fieldErr(err)
			return
		}
		meta.MinZoom = &z
	case "maxzoom":
		z, err := strconv.Atoi(value)
		if err != nil {
			fieldErr(err)
			return
		}
		meta.MaxZoom = &z
	case "json":
		var doc struct {
			VectorLayers []VectorLayer `json:"vector_layers"`
		}
		if err := json.Unmarshal([]byte(value), &doc); err != nil {
			fieldErr(err)
			return
		}
		meta.VectorLayers = doc.VectorLayers
	}
}

func parseFloats(value string, n int) ([]float64, error) {
	parts := strings.Split(value, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma-separated numbers, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// scanTileIndex fills the zoom range from the observed zoom levels and the
// bounds from the column/row extent at the minimum zoom.
func scanTileIndex(ctx context.Context, t *Tileset, meta *TileMeta) error {
	var zmin, zmax sql.NullInt64
	err := t.db.QueryRowContext(ctx,
		`SELECT MIN(zoom_level), MAX(zoom_level) FROM tiles`).Scan(&zmin, &zmax)
	if err != nil {
		return err
	}
	if !zmin.Valid || !zmax.Valid {
		// 空档案, 保持字段缺失
		return nil
	}
	if meta.MinZoom == nil {
		z := int(zmin.Int64)
		meta.MinZoom = &z
	}
	if meta.MaxZoom == nil {
		z := int(zmax.Int64)
		meta.MaxZoom = &z
	}
	if meta.Bounds != nil {
		return nil
	}

	z := maptile.Zoom(zmin.Int64)
	var xmin, xmax, ymin, ymax uint32
	err = t.db.QueryRowContext(ctx,
		`SELECT MIN(tile_column), MAX(tile_column), MIN(tile_row), MAX(tile_row)
		 FROM tiles WHERE zoom_level = ?`, zmin.Int64).
		Scan(&xmin, &xmax, &ymin, &ymax)
	if err != nil {
		return err
	}

	// 行号为 TMS 约定, 先翻转再求地理范围
	nw := maptile.New(xmin, FlipRow(z, ymax), z).Bound()
	se := maptile.New(xmax, FlipRow(z, ymin), z).Bound()
	b := nw.Union(se)
	meta.Bounds = &[4]float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
	return nil
}

// Bound 地理范围, 未知时取 Web 墨卡托全球范围
func (m *TileMeta) Bound() orb.Bound {
	if m.Bounds == nil {
		return orb.Bound{Min: orb.Point{-180, -85.0511}, Max: orb.Point{180, 85.0511}}
	}
	return orb.Bound{
		Min: orb.Point{m.Bounds[0], m.Bounds[1]},
		Max: orb.Point{m.Bounds[2], m.Bounds[3]},
	}
}
