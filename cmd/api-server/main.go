// Package main API Server 入口
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"report-media/internal/apiserver/enrich"
	"report-media/internal/apiserver/gifjob"
	"report-media/internal/apiserver/report"
	"report-media/internal/apiserver/server"
	"report-media/internal/config"
	"report-media/internal/shared/infra"
	"report-media/internal/shared/metrics"
	"report-media/internal/shared/objstore"
	"report-media/internal/shared/objstore/memory"
	"report-media/internal/shared/objstore/provider"
	"report-media/pkg/logging"
)

func main() {
	configDir := flag.String("config", "", "directory containing {env}.yaml")
	flag.Parse()
	if *configDir != "" {
		config.SetConfigDir(*configDir)
	}

	// 加载配置（自动加载 .env，根据 APP_ENV 选择 YAML 文件）
	cfg := config.Load()

	logCfg := cfg.Log
	logCfg.Component = "api-server"
	logger := logging.New(logCfg)

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	m := metrics.NewMetrics("report_media", nil)

	// 初始化持久化存储、任务状态缓存与事件总线
	inf, err := infra.New(cfg)
	if err != nil {
		log.Fatalf("Failed to init infrastructure: %v", err)
	}
	defer inf.Close()
	log.Printf("Connected to %s store (redis=%v)", cfg.DatabaseDriver, cfg.RedisEnabled)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化对象存储；memory 后端的签名 URL 由本服务自己下发
	backend, err := provider.NewBackend(ctx, cfg.Storage, cfg.APIServer.URL+server.BlobPrefix)
	if err != nil {
		log.Fatalf("Failed to init %s storage: %v", cfg.Storage.Provider, err)
	}
	objects := objstore.NewStore(backend,
		objstore.WithLogger(logger),
		objstore.WithMetrics(m),
	)
	log.Printf("Object storage: %s", objects.Provider())

	jobs := gifjob.New(gifjob.Deps{
		Reports: inf.Storage,
		Records: inf.Storage,
		Objects: objects,
		Cache:   inf.Cache,
		Events:  inf.EventBus,
		Metrics: m,
		Logger:  logger,
	}, &gifjob.Config{
		DelayCentiseconds: cfg.Gif.DelayCentiseconds,
		Workers:           cfg.Gif.Workers,
		StaleAfter:        cfg.Gif.StaleAfter,
		WaitTimeout:       cfg.Gif.WaitTimeout,
	})

	reports := report.NewHandler(report.Deps{
		Reports:  inf.Storage,
		Records:  inf.Storage,
		Objects:  objects,
		Jobs:     jobs,
		Enricher: enrich.New(objects, logger),
		Cache:    inf.Cache,
		Events:   inf.EventBus,
		Metrics:  m,
	})
	reports.SetWaitTimeout(cfg.Gif.WaitTimeout)

	h := server.NewHandler(reports, m)
	h.SetLogger(logger)
	if mb, ok := backend.(*memory.Backend); ok {
		h.SetBlobHandler(mb)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.APIServer.Port,
		Handler:     h.Router(),
		ReadTimeout: 30 * time.Second,
		// 延迟流程最多等待 WaitTimeout，写超时需覆盖它
		WriteTimeout: cfg.Gif.WaitTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭：先停止接收请求，再等待后台合成任务落库
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		if err := jobs.Shutdown(shutdownCtx); err != nil {
			log.Printf("GIF job shutdown error: %v", err)
		}
		// 后台任务结束后才释放对象存储连接
		if err := objects.Close(); err != nil {
			log.Printf("Object storage close error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIServer.Port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-done

	fmt.Println("Server stopped")
}
