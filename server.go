package main

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ShutdownGrace 停机时等待在途请求的时间
const ShutdownGrace = 15 * time.Second

// InitServer 启动 HTTP 服务, 阻塞到停机
func InitServer() {
	headers := make([][2]string, 0, len(conf.Serve.Headers))
	for _, h := range conf.Serve.Headers {
		headers = append(headers, [2]string{h.Key, h.Value})
	}
	service := NewService(Registry, conf.Serve.AllowedHosts, headers)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", conf.Serve.Port),
		Handler: service.Handler(),
	}

	// 先停收新请求, 排空后再关档案
	SafeExitInst.Register(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	})
	SafeExitInst.Register(Registry.Close)

	if conf.Serve.ScanInterval > 0 {
		log.Infof("folder scan activated, scanning every %ds", conf.Serve.ScanInterval)
		go rescanLoop(time.Duration(conf.Serve.ScanInterval) * time.Second)
	} else {
		log.Infof("folder scan deactivated")
	}

	log.Infof("listening on http://0.0.0.0:%d", conf.Serve.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// rescanLoop 周期性重扫目录并整体替换快照
func rescanLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		log.Infof("scanning directory")
		errs := Registry.Reload()
		for _, err := range errs {
			log.Warnf("scan: %v", err)
			MetricsInst.ScanErrorsTotal.Inc()
		}
		MetricsInst.TilesetsActive.Set(float64(len(Registry.Snapshot().names)))
	}
}
