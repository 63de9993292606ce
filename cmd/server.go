// Package main はSnapSendサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"snapsend/internal/config"
	"snapsend/internal/server"

	"github.com/gin-gonic/gin"
)

func main() {
	// コマンドラインオプション
	var (
		configPath = flag.String("config", os.Getenv("SNAPSEND_CONFIG"), "設定ファイル (YAML)")
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		driverName = flag.String("driver", "", "カメラドライバー (v4l2 / testpattern)")
		device     = flag.String("device", "", "カメラデバイス (デフォルト: 自動検出)")
		debug      = flag.Bool("debug", false, "ginをデバッグモードで起動")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	if *help {
		fmt.Println("SnapSend")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *driverName != "" {
		cfg.Camera.Driver = *driverName
	}
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が無効です: %v", err)
	}

	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	driver, err := server.NewDriver(ctx, cfg)
	if err != nil {
		log.Fatalf("カメラドライバーの作成に失敗しました: %v", err)
	}

	srv, err := server.New(cfg, driver)
	if err != nil {
		log.Fatalf("サーバーの作成に失敗しました: %v", err)
	}

	log.Printf("SnapSend サーバーを起動します: %s (driver=%s)", cfg.ServerAddress(), cfg.Camera.Driver)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
