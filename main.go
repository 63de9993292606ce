package main

import (
	"context"
	"log"
	"os"

	"snapsend/internal/config"
	"snapsend/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load(os.Getenv("SNAPSEND_CONFIG"))
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
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

	// サーバーを起動
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
