package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"snapsend/internal/camera"
	"snapsend/internal/config"
	"snapsend/internal/page"
	"snapsend/internal/upload"

	"github.com/gin-gonic/gin"
)

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	driver     camera.Driver
	state      *State
	streamer   *camera.Streamer
	handler    *SnapSendHandler
	engine     *gin.Engine
	httpServer *http.Server

	stopStream context.CancelFunc
	streamDone chan struct{}
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, driver camera.Driver) (*Server, error) {
	catalog := driver.Resolutions()
	if len(catalog) == 0 {
		return nil, errors.New("解像度カタログが空です")
	}

	state := NewState(selectInitial(catalog, cfg.Camera.DefaultWidth, cfg.Camera.DefaultHeight))

	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), requestID())

	s := &Server{
		config:   cfg,
		driver:   driver,
		state:    state,
		streamer: camera.NewStreamer(driver, cfg.Camera.FPS),
		handler: &SnapSendHandler{
			driver:   driver,
			state:    state,
			renderer: page.New(),
			uploader: upload.NewClient(cfg.Upload.URL, cfg.Upload.Timeout),
			ws:       NewFrameSocket(driver, cfg.Camera.FPS),
		},
		engine: engine,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
	s.setupRoutes()

	return s, nil
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	h := s.handler

	s.engine.GET("/", h.FrontPage)
	s.engine.GET("/robots.txt", h.RobotsTxt)
	s.engine.POST("/change-resolution.cgi", h.ChangeResolution)

	// 画像配信はドライバー側のハンドラに任せる
	s.engine.GET("/cam.jpg", gin.WrapH(camera.StillHandler(s.driver)))
	s.engine.GET("/cam.mjpeg", gin.WrapH(s.streamer))
	s.engine.GET("/cam.ws", h.ws.Serve)

	s.engine.POST("/send-capture.cgi", h.SendCapture)
	s.engine.GET("/health", h.HealthCheck)
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// State は解像度状態を返す
func (s *Server) State() *State {
	return s.state
}

// Start はカメラとサーバーを起動し、停止するまでブロックする
func (s *Server) Start(ctx context.Context) error {
	if err := s.driver.Start(ctx); err != nil {
		return fmt.Errorf("カメラの起動に失敗: %w", err)
	}

	initial := s.state.Initial()
	if err := s.driver.ChangeResolution(ctx, initial); err != nil {
		_ = s.driver.Stop(context.Background())
		return fmt.Errorf("初期解像度 %s の設定に失敗: %w", initial, err)
	}
	log.Printf("初期解像度: %s", initial)

	streamCtx, cancel := context.WithCancel(context.Background())
	s.stopStream = cancel
	s.streamDone = make(chan struct{})
	go func() {
		defer close(s.streamDone)
		s.streamer.Run(streamCtx)
	}()

	shutdownCh := make(chan error, 1)

	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		s.stopStreamer()
		s.stopDriver()
		return err
	}

	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
// 処理中のリクエストが終わってからドライバーを停止する
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	// ストリームを先に閉じてMJPEGクライアントを切断する
	s.stopStreamer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.stopDriver()
	if err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}

// stopStreamer はMJPEGストリームの配信ループを停止する
func (s *Server) stopStreamer() {
	if s.stopStream != nil {
		s.stopStream()
		<-s.streamDone
		s.stopStream = nil
	}
}

// stopDriver はカメラドライバーを停止する
func (s *Server) stopDriver() {
	if err := s.driver.Stop(context.Background()); err != nil {
		log.Printf("カメラの停止に失敗: %v", err)
	}
}
