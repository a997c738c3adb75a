package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var tileURLRe = regexp.MustCompile(`^/services/(?P<tile_path>.+)/tiles/(?P<z>\d+)/(?P<x>\d+)/(?P<y>\d+)\.(?P<format>[a-zA-Z]+)/?$`)

// Service 对外 HTTP 接口, 只依赖注册表
type Service struct {
	registry     *TilesetRegistry
	allowedHosts []string
	headers      [][2]string
}

func NewService(registry *TilesetRegistry, allowedHosts []string, headers [][2]string) *Service {
	return &Service{
		registry:     registry,
		allowedHosts: allowedHosts,
		headers:      headers,
	}
}

// Handler 挂载全部路由
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/services", s)
	mux.Handle("/services/", s)
	return mux
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !hostAllowed(r.Host, s.allowedHosts) {
		s.finish(w, "services", http.StatusForbidden, "Forbidden")
		return
	}
	for _, h := range s.headers {
		w.Header().Set(h[0], h[1])
	}

	path := r.URL.Path
	if m := tileURLRe.FindStringSubmatch(path); m != nil {
		s.serveTile(w, r, m[1], m[2], m[3], m[4])
		return
	}
	if path == "/services" || path == "/services/" {
		s.serveList(w, r)
		return
	}
	if name := strings.TrimPrefix(path, "/services/"); name != path {
		s.serveTileJSON(w, r, strings.TrimSuffix(name, "/"))
		return
	}
	s.finish(w, "services", http.StatusNotFound, "Not Found")
}

// serveTile /services/{name}/tiles/{z}/{x}/{y}.{ext}
func (s *Service) serveTile(w http.ResponseWriter, r *http.Request, name, zs, xs, ys string) {
	const route = "tiles"
	z, errZ := strconv.ParseUint(zs, 10, 32)
	x, errX := strconv.ParseUint(xs, 10, 32)
	y, errY := strconv.ParseUint(ys, 10, 32)
	if errZ != nil || errX != nil || errY != nil || z > ZoomMax {
		s.finish(w, route, http.StatusNotFound, "Not Found")
		return
	}

	t, ok := s.registry.Get(name)
	if !ok {
		s.finish(w, route, http.StatusNotFound, "Not Found")
		return
	}
	defer t.Release()

	start := time.Now()
	tile, err := t.GetTile(r.Context(), maptile.Zoom(z), uint32(x), uint32(y))
	MetricsInst.TileLookupDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case err == nil && tile == nil:
		s.finish(w, route, http.StatusNoContent, "")
	case err == nil:
		w.Header().Set("Content-Type", tile.Format.ContentType())
		if tile.Encoding != "" {
			w.Header().Set("Content-Encoding", tile.Encoding)
		}
		s.count(route, http.StatusOK)
		w.Write(tile.C)
	case errors.Is(err, ErrTileNotFound):
		s.finish(w, route, http.StatusNotFound, "Not Found")
	case errors.Is(err, ErrPoolExhausted):
		MetricsInst.PoolExhaustedTotal.Inc()
		w.Header().Set("Retry-After", "1")
		s.finish(w, route, http.StatusServiceUnavailable, "Service Unavailable")
	default:
		log.Errorf("tile %s %d/%d/%d: %v", name, z, x, y, err)
		s.finish(w, route, http.StatusInternalServerError, "Internal Server Error")
	}
}

// serveList /services
func (s *Service) serveList(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	summaries := s.registry.List(r.Context())
	type item struct {
		TilesetSummary
		URL string `json:"url"`
	}
	items := make([]item, 0, len(summaries))
	for _, sum := range summaries {
		items = append(items, item{
			TilesetSummary: sum,
			URL:            fmt.Sprintf("%s/%s", base, sum.Name),
		})
	}
	s.writeJSON(w, "services", items)
}

// serveTileJSON /services/{name}
func (s *Service) serveTileJSON(w http.ResponseWriter, r *http.Request, name string) {
	const route = "tilejson"
	t, ok := s.registry.Get(name)
	if !ok {
		s.finish(w, route, http.StatusNotFound, "Not Found")
		return
	}
	defer t.Release()

	meta, err := t.GetMetadata(r.Context())
	if err != nil {
		log.Errorf("metadata %s: %v", name, err)
		s.finish(w, route, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	doc := map[string]interface{}{
		"tilejson": "2.1.0",
		"name":     meta.Name,
		"format":   string(meta.Format),
		"scheme":   "xyz",
		"tiles": []string{
			fmt.Sprintf("%s/%s/tiles/{z}/{x}/{y}.%s", baseURL(r), name, meta.Format.Extension()),
		},
	}
	if meta.Description != "" {
		doc["description"] = meta.Description
	}
	if meta.Attribution != "" {
		doc["attribution"] = meta.Attribution
	}
	if meta.Bounds != nil {
		doc["bounds"] = meta.Bounds
	}
	if meta.Center != nil {
		doc["center"] = meta.Center
	}
	if meta.MinZoom != nil {
		doc["minzoom"] = meta.MinZoom
	}
	if meta.MaxZoom != nil {
		doc["maxzoom"] = meta.MaxZoom
	}
	if len(meta.VectorLayers) > 0 {
		doc["vector_layers"] = meta.VectorLayers
	}
	s.writeJSON(w, route, doc)
}

func (s *Service) writeJSON(w http.ResponseWriter, route string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.finish(w, route, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	s.count(route, http.StatusOK)
	w.Write(data)
}

func (s *Service) finish(w http.ResponseWriter, route string, status int, body string) {
	s.count(route, status)
	w.WriteHeader(status)
	if body != "" {
		w.Write([]byte(body))
	}
}

func (s *Service) count(route string, status int) {
	MetricsInst.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// hostAllowed Host 头校验, * 全放行, 前导点匹配子域
func hostAllowed(host string, allowed []string) bool {
	host, _, _ = strings.Cut(host, ":")
	if host == "" {
		return false
	}
	for _, pattern := range allowed {
		if pattern == "*" || pattern == host {
			return true
		}
		if strings.HasPrefix(pattern, ".") && strings.HasSuffix(host, pattern[1:]) {
			return true
		}
	}
	return false
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s/services", scheme, r.Host)
}
