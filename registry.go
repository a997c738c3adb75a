package main

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// ArchiveExt 识别的档案扩展名, 大小写不敏感
const ArchiveExt = ".mbtiles"

var Registry *TilesetRegistry

// InitRegistry 初始化注册表并完成首次扫描
func InitRegistry() {
	Registry = NewRegistry(
		conf.Serve.Directory,
		conf.Pool.Size,
		time.Duration(conf.Pool.Timeout)*time.Millisecond,
	)
	Registry.showBar = conf.Output.OutputTerminal
	errs := Registry.Reload()
	for _, err := range errs {
		log.Warnf("scan: %v", err)
		MetricsInst.ScanErrorsTotal.Inc()
	}
	snap := Registry.Snapshot()
	if len(snap.names) == 0 {
		log.Warnf("no tilesets found under %s", Registry.dir)
	}
	MetricsInst.TilesetsActive.Set(float64(len(snap.names)))
	log.Infof("serving %d tileset(s) from %s", len(snap.names), Registry.dir)
}

// Snapshot 一次扫描产出的不可变瓦片集映射
type Snapshot struct {
	ID       string
	tilesets map[string]*Tileset
	names    []string
}

// TilesetSummary /services 列表项
type TilesetSummary struct {
	Name    string     `json:"name"`
	Format  TileFormat `json:"format"`
	MinZoom *int       `json:"minzoom"`
	MaxZoom *int       `json:"maxzoom"`
}

// TilesetRegistry 持有当前快照, 重载时整体替换
type TilesetRegistry struct {
	dir         string
	poolSize    int
	poolTimeout time.Duration

	snapshot atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	showBar  bool
}

func NewRegistry(dir string, poolSize int, poolTimeout time.Duration) *TilesetRegistry {
	r := &TilesetRegistry{
		dir:         dir,
		poolSize:    poolSize,
		poolTimeout: poolTimeout,
	}
	r.snapshot.Store(&Snapshot{tilesets: map[string]*Tileset{}})
	return r
}

// Snapshot 当前快照, 只读
func (r *TilesetRegistry) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// Get resolves a tileset name against the current snapshot and retains it
// for the caller. The caller must call Release when done. Never blocks on
// I/O.
func (r *TilesetRegistry) Get(name string) (*Tileset, bool) {
	for {
		snap := r.snapshot.Load()
		t, ok := snap.tilesets[name]
		if !ok {
			return nil, false
		}
		if t.Retain() {
			return t, true
		}
		// 拿到的是已退役快照里的条目, 换新快照重试
	}
}

// List 按名称序返回全部瓦片集摘要
func (r *TilesetRegistry) List(ctx context.Context) []TilesetSummary {
	snap := r.snapshot.Load()
	out := make([]TilesetSummary, 0, len(snap.names))
	for _, name := range snap.names {
		t := snap.tilesets[name]
		s := TilesetSummary{Name: name, Format: t.Format(), MinZoom: t.zmin, MaxZoom: t.zmax}
		if s.MinZoom == nil || s.MaxZoom == nil {
			if meta, err := t.GetMetadata(ctx); err == nil {
				s.MinZoom = meta.MinZoom
				s.MaxZoom = meta.MaxZoom
			}
		}
		out = append(out, s)
	}
	return out
}

// Reload rescans the directory and atomically swaps the snapshot. Reloads
// are serialized; in-flight requests keep their retained tilesets until
// they release them. Per-file open failures are returned for logging and
// never fail the reload as a whole.
func (r *TilesetRegistry) Reload() []error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	tilesets, errs := r.scan()
	id, _ := shortid.Generate()
	names := make([]string, 0, len(tilesets))
	for name := range tilesets {
		names = append(names, name)
	}
	sort.Strings(names)

	next := &Snapshot{ID: id, tilesets: tilesets, names: names}
	prev := r.snapshot.Swap(next)
	for _, t := range prev.tilesets {
		t.Retire()
	}
	log.Infof("snapshot %s published: %d tileset(s), %d error(s)", id, len(names), len(errs))
	return errs
}

// Close 退役当前快照中的全部瓦片集
func (r *TilesetRegistry) Close() {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()
	prev := r.snapshot.Swap(&Snapshot{tilesets: map[string]*Tileset{}})
	for _, t := range prev.tilesets {
		t.Retire()
	}
}

// scan 递归枚举档案文件并逐个打开
func (r *TilesetRegistry) scan() (map[string]*Tileset, []error) {
	var paths []string
	var errs []error
	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, &ScanError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ArchiveExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		errs = append(errs, &ScanError{Path: r.dir, Err: err})
	}
	// 路径排序保证冲突后缀稳定
	sort.Strings(paths)

	var bar *pb.ProgressBar
	if r.showBar && len(paths) > 0 {
		bar = pb.StartNew(len(paths)).Prefix("scan: ")
	}

	tilesets := make(map[string]*Tileset, len(paths))
	for _, path := range paths {
		name := r.deriveName(path, tilesets)
		t, err := OpenTileset(name, path, r.poolSize, r.poolTimeout)
		if err != nil {
			errs = append(errs, &ScanError{Path: path, Err: err})
		} else {
			tilesets[name] = t
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}
	return tilesets, errs
}

// deriveName 由相对路径得到名称: 去扩展名, 分隔符统一为 /,
// 冲突时按路径序追加 -2, -3 ... 后缀
func (r *TilesetRegistry) deriveName(path string, taken map[string]*Tileset) string {
	rel, err := filepath.Rel(r.dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	name := filepath.ToSlash(rel[:len(rel)-len(filepath.Ext(rel))])
	if _, ok := taken[name]; !ok {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", name, i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
