package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb/maptile"
)

// Tileset 一个只读 mbtiles 档案, 发布到快照后不可变
type Tileset struct {
	Name         string
	Path         string
	LastModified time.Time

	db          *sql.DB
	poolTimeout time.Duration

	// 打开时从 metadata 表读取的提示值
	format TileFormat
	zmin   *int
	zmax   *int

	metaMu sync.Mutex
	meta   *TileMeta

	refs       int64
	retireOnce sync.Once
}

// OpenTileset validates path as an MBTiles archive and opens it with a
// bounded pool of read handles. The returned Tileset starts with one
// reference owned by the caller (normally the registry snapshot).
func OpenTileset(name, path string, poolSize int, poolTimeout time.Duration) (*Tileset, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	t := &Tileset{
		Name:         name,
		Path:         path,
		LastModified: fi.ModTime(),
		db:           db,
		poolTimeout:  poolTimeout,
		refs:         1,
	}
	if err := t.validate(); err != nil {
		db.Close()
		return nil, err
	}
	t.loadHints()
	return t, nil
}

// validate 校验容器签名与索引结构
func (t *Tileset) validate() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.poolTimeout)
	defer cancel()

	var n int
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE name = 'tiles'`).Scan(&n)
	if err != nil {
		// 非 sqlite 文件在首次查询时报 "file is not a database"
		return fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: missing tiles table", ErrCorruptArchive)
	}
	return nil
}

// loadHints reads the cheap metadata keys used for fast request rejection
// and content-type hints. Missing or malformed values stay nil.
func (t *Tileset) loadHints() {
	ctx, cancel := context.WithTimeout(context.Background(), t.poolTimeout)
	defer cancel()

	t.format = PBF
	rows, err := t.db.QueryContext(ctx,
		`SELECT name, value FROM metadata WHERE name IN ('format', 'minzoom', 'maxzoom')`)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			continue
		}
		switch name {
		case "format":
			switch TileFormat(value) {
			case PNG, JPG, PBF, WEBP:
				t.format = TileFormat(value)
			case "jpeg":
				t.format = JPG
			}
		case "minzoom":
			if z, err := strconv.Atoi(value); err == nil {
				t.zmin = &z
			}
		case "maxzoom":
			if z, err := strconv.Atoi(value); err == nil {
				t.zmax = &z
			}
		}
	}
}

// Format 档案声明的瓦片格式
func (t *Tileset) Format() TileFormat { return t.format }

// GetTile resolves the public XYZ coordinate to a tile blob. A nil Tile
// with nil error means the coordinate is inside the tileset's known range
// but no blob is stored there (the caller answers 204, not 404).
func (t *Tileset) GetTile(ctx context.Context, z maptile.Zoom, x, y uint32) (*Tile, error) {
	if !ValidCoord(z, x, y) {
		return nil, ErrTileNotFound
	}
	if t.zmin != nil && int(z) < *t.zmin {
		return nil, ErrTileNotFound
	}
	if t.zmax != nil && int(z) > *t.zmax {
		return nil, ErrTileNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, t.poolTimeout)
	defer cancel()

	tmsRow := FlipRow(z, y)
	var data []byte
	err := t.db.QueryRowContext(ctx,
		`SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?`,
		uint32(z), x, tmsRow).Scan(&data)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case errors.Is(err, context.DeadlineExceeded):
		return nil, ErrPoolExhausted
	case errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone):
		return nil, ErrTilesetClosed
	default:
		if t.closed() {
			return nil, ErrTilesetClosed
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	format, err := DetectTileFormat(data)
	if err != nil {
		// 识别不了就按声明格式裸数据返回
		format = t.format
	}
	tile := &Tile{
		T:      maptile.New(x, y, z),
		C:      data,
		Format: format,
	}
	tile.Encoding = format.ContentEncoding()
	if format == GZIP || format == ZLIB {
		// 压缩矢量瓦片的内容类型取声明格式
		tile.Format = t.format
	}
	return tile, nil
}

// GetMetadata 返回合成后的元数据, 首次计算后缓存
func (t *Tileset) GetMetadata(ctx context.Context) (*TileMeta, error) {
	t.metaMu.Lock()
	defer t.metaMu.Unlock()
	if t.meta != nil {
		return t.meta, nil
	}
	meta, err := synthesizeMetadata(ctx, t)
	if err != nil {
		return nil, err
	}
	t.meta = meta
	return meta, nil
}

// Retain takes a reference for an in-flight request. It fails once the
// tileset has fully closed.
func (t *Tileset) Retain() bool {
	for {
		n := atomic.LoadInt64(&t.refs)
		if n <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&t.refs, n, n+1) {
			return true
		}
	}
}

// Release drops a reference; the last one out closes the pool.
func (t *Tileset) Release() {
	if atomic.AddInt64(&t.refs, -1) == 0 {
		t.db.Close()
	}
}

// Retire drops the snapshot's own reference. In-flight requests that
// retained the tileset keep it open until they release.
func (t *Tileset) Retire() {
	t.retireOnce.Do(t.Release)
}

func (t *Tileset) closed() bool {
	return atomic.LoadInt64(&t.refs) <= 0
}
