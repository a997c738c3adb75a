package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var MetricsInst *Metrics

// Metrics holds all Prometheus metrics
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	TileLookupDuration *prometheus.HistogramVec
	PoolExhaustedTotal prometheus.Counter
	ScanErrorsTotal    prometheus.Counter
	TilesetsActive     prometheus.Gauge
}

// InitMetrics 初始化指标
func InitMetrics() {
	MetricsInst = &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tileserv_requests_total",
				Help: "Total number of requests by route and status code",
			},
			[]string{"route", "status"},
		),
		TileLookupDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tileserv_tile_lookup_duration_seconds",
				Help:    "Duration of tile lookups against the archive",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tileset"},
		),
		PoolExhaustedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tileserv_pool_exhausted_total",
				Help: "Tile lookups rejected because no read handle freed up in time",
			},
		),
		ScanErrorsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tileserv_scan_errors_total",
				Help: "Archive files skipped during directory scans",
			},
		),
		TilesetsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tileserv_tilesets_active",
				Help: "Tilesets in the current snapshot",
			},
		),
	}
}
