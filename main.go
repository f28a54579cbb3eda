package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"gopkg.in/natefinch/lumberjack.v2"

	"bridgesim/config"
	"bridgesim/server"
	"bridgesim/ship"
	"bridgesim/storage"
	"bridgesim/telemetry"
)

// bridgesim 入口：读取配置，启动 HTTP + WebSocket 服务与扇区管理器
func main() {
	var configDir string
	flag.StringVar(&configDir, "config", ".", "directory containing bridgesim.json")
	flag.Parse()

	if err := run(configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	if err := server.InitLogger(cfg.Log); err != nil {
		return err
	}
	defer server.SyncLogger()

	metrics, err := newTelemetry(cfg.Telemetry)
	if err != nil {
		return err
	}
	if metrics.Enabled() {
		otel.SetMeterProvider(metrics.MeterProvider())
		server.Log.Infow("metric export enabled", "file", cfg.Telemetry.File, "interval_s", cfg.Telemetry.IntervalSeconds)
	}

	catalog, err := ship.NewCatalog(cfg.Templates...)
	if err != nil {
		return fmt.Errorf("ship templates: %w", err)
	}

	opts := server.SectorOptions{
		TicksPerSecond:   cfg.Sim.TicksPerSecond,
		FlushHz:          cfg.Replication.FlushHz,
		MaxInputsPerTick: cfg.Sim.MaxInputsPerTick,
		DefaultSector:    cfg.Sim.DefaultSector,
		DefaultTemplate:  cfg.Templates[0].Name,
		Catalog:          catalog,
		Seed:             time.Now().UnixNano(),
	}

	var recorder *storage.Recorder
	if cfg.Recorder.Enabled {
		db, err := storage.Open(cfg.Recorder.Path)
		if err != nil {
			return err
		}
		recorder = storage.NewRecorder(db, cfg.Recorder.QueueSize, server.Log.Named("recorder"))
		recorder.Start()
		opts.Recorder = recorder
		opts.History = recorder
		server.Log.Infow("combat recorder enabled", "path", cfg.Recorder.Path)
	}

	rm := server.InitSectorManager(opts)
	// 先预创建默认扇区，便于快速试跑
	_ = rm.GetOrCreateSector(cfg.Sim.DefaultSector)

	mux := http.NewServeMux()
	rm.Routes(mux)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		server.Log.Infof("bridgesim listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 优雅退出（Ctrl+C / SIGTERM）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		server.Log.Errorw("listen failed", "err", err)
		return err
	}
	server.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		server.Log.Warnw("http shutdown", "err", err)
	}
	rm.StopAll()
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			server.Log.Warnw("recorder close", "err", err)
		}
		server.Log.Infow("combat recorder closed", "written", recorder.Written(), "dropped", recorder.Dropped())
	}
	if err := metrics.Shutdown(ctx); err != nil {
		server.Log.Warnw("telemetry shutdown", "err", err)
	}
	return nil
}

// newTelemetry 指标写入滚动文件；未配置文件时写标准输出
func newTelemetry(cfg config.TelemetryConfig) (*telemetry.Provider, error) {
	var w io.Writer = os.Stdout
	if cfg.File != "" {
		w = &lumberjack.Logger{Filename: cfg.File, MaxSize: 50, MaxBackups: 3}
	}
	return telemetry.New(telemetry.Config{
		Enabled:     cfg.Enabled,
		ServiceName: cfg.ServiceName,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Writer:      w,
	})
}
