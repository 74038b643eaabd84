package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arenaserver/server"
)

// 入口：加载配置，启动 TCP 帧协议监听 + HTTP（WebSocket 与管理接口）
func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to server_config.json (default: search well-known locations)")
	flag.Parse()

	var paths []string
	if cfgPath != "" {
		paths = []string{cfgPath}
	}
	cfg, used, cfgErr := server.LoadConfig(paths...)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := server.InitLogger(cfg.LogFile, cfg.LogLevel, cfg.LogConsole); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	if cfgErr != nil {
		server.Log.Warnf("config load failed, file values skipped: %v", cfgErr)
	} else if used == "" {
		server.Log.Info("no config file found, using defaults")
	} else {
		server.Log.Infof("config loaded from %s", used)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub(cfg)

	tcp := server.NewListener(hub, cfg.TCPPort)
	if err := tcp.Listen(ctx); err != nil {
		server.Log.Fatalf("listen: %v", err)
	}
	go func() {
		if err := tcp.Serve(ctx); err != nil {
			server.Log.Errorf("tcp serve: %v", err)
		}
	}()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: hub.NewRouter()}
	go func() {
		server.Log.Infof("HTTP listening on %s (ws: /ws, admin: /admin/config, /metrics, /rooms, /scenes)", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.Log.Fatalf("http listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	server.Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
