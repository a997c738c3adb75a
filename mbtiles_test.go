package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenTilesetCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.mbtiles")
	writeCorruptArchive(t, path)

	_, err := OpenTileset("broken", path, 4, time.Second)
	assert.ErrorIs(t, err, ErrCorruptArchive)
}

func TestOpenTilesetMissingTilesTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mbtiles")
	db, err := openRawSQLite(t, path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE metadata (name text, value text)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenTileset("empty", path, 4, time.Second)
	assert.ErrorIs(t, err, ErrCorruptArchive)
}

func TestOpenTilesetMissingFile(t *testing.T) {
	_, err := OpenTileset("nope", filepath.Join(t.TempDir(), "nope.mbtiles"), 4, time.Second)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCorruptArchive)
}

func TestGetTileHit(t *testing.T) {
	// z1 瓦片 (x=0, 公开行 y=0) 存为 TMS 行 1
	ts := openFixture(t, rasterMeta(), []fixtureTile{
		{z: 1, x: 0, tmsY: tmsRow(1, 0), data: pngBlob},
	})

	tile, err := ts.GetTile(context.Background(), 1, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, tile)
	assert.Equal(t, pngBlob, tile.C)
	assert.Equal(t, PNG, tile.Format)
	assert.Equal(t, "", tile.Encoding)

	// 同一坐标的 TMS 行上没有瓦片
	tile, err = ts.GetTile(context.Background(), 1, 0, 1)
	require.NoError(t, err)
	assert.Nil(t, tile)
}

func TestGetTileEmptyInsideBounds(t *testing.T) {
	ts := openFixture(t, rasterMeta(), []fixtureTile{
		{z: 1, x: 0, tmsY: 0, data: pngBlob},
	})

	tile, err := ts.GetTile(context.Background(), 1, 1, 1)
	require.NoError(t, err)
	assert.Nil(t, tile, "in-range coordinate with no blob is an empty tile, not an error")
}

func TestGetTileOutsideZoomRange(t *testing.T) {
	ts := openFixture(t, rasterMeta(), []fixtureTile{
		{z: 1, x: 0, tmsY: 0, data: pngBlob},
	})

	// maxzoom=2, z3 直接拒绝
	_, err := ts.GetTile(context.Background(), 3, 0, 0)
	assert.ErrorIs(t, err, ErrTileNotFound)
}

func TestGetTileCoordinateOutOfGrid(t *testing.T) {
	ts := openFixture(t, rasterMeta(), nil)

	_, err := ts.GetTile(context.Background(), 1, 2, 0)
	assert.ErrorIs(t, err, ErrTileNotFound)

	_, err = ts.GetTile(context.Background(), 1, 0, 2)
	assert.ErrorIs(t, err, ErrTileNotFound)
}

func TestGetTileGzipVector(t *testing.T) {
	ts := openFixture(t, map[string]string{"format": "pbf", "minzoom": "0", "maxzoom": "2"}, []fixtureTile{
		{z: 0, x: 0, tmsY: 0, data: gzipBlob},
	})

	tile, err := ts.GetTile(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, tile)
	assert.Equal(t, PBF, tile.Format)
	assert.Equal(t, "gzip", tile.Encoding)
	assert.Equal(t, "application/vnd.mapbox-vector-tile", tile.Format.ContentType())
}

func TestGetTilePoolExhausted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "busy.mbtiles")
	writeMBTiles(t, path, rasterMeta(), []fixtureTile{
		{z: 0, x: 0, tmsY: 0, data: pngBlob},
	})

	ts, err := OpenTileset("busy", path, 1, 100*time.Millisecond)
	require.NoError(t, err)
	defer ts.Retire()

	// 占住唯一的读句柄
	conn, err := ts.db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	start := time.Now()
	_, err = ts.GetTile(context.Background(), 0, 0, 0)
	assert.ErrorIs(t, err, ErrPoolExhausted)
	assert.Less(t, time.Since(start), time.Second, "must fail within the timeout, not hang")

	// 句柄释放后恢复
	require.NoError(t, conn.Close())
	tile, err := ts.GetTile(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, tile)
}

func TestTilesetRefCounting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.mbtiles")
	writeMBTiles(t, path, rasterMeta(), []fixtureTile{
		{z: 0, x: 0, tmsY: 0, data: pngBlob},
	})

	ts, err := OpenTileset("ref", path, 2, time.Second)
	require.NoError(t, err)

	require.True(t, ts.Retain())
	ts.Retire()

	// 在途引用还在, 查询继续可用
	tile, err := ts.GetTile(context.Background(), 0, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, tile)

	ts.Release()
	assert.False(t, ts.Retain(), "fully released tileset must not be retainable")

	_, err = ts.GetTile(context.Background(), 0, 0, 0)
	assert.Error(t, err)
}

func TestGetTileConcurrentSameCoordinate(t *testing.T) {
	ts := openFixture(t, rasterMeta(), []fixtureTile{
		{z: 1, x: 1, tmsY: tmsRow(1, 1), data: pngBlob},
	})

	const workers = 8
	done := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			tile, err := ts.GetTile(context.Background(), 1, 1, 1)
			if err == nil && tile == nil {
				err = ErrTileNotFound
			}
			done <- err
		}()
	}
	for i := 0; i < workers; i++ {
		assert.NoError(t, <-done)
	}
}
