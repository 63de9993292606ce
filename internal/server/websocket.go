package server

import (
	"log"
	"net/http"
	"time"

	"snapsend/internal/camera"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 5 * time.Second

// FrameSocket はWebSocketでJPEGフレームをバイナリメッセージとして配信する
type FrameSocket struct {
	driver   camera.Driver
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewFrameSocket は新しいFrameSocketを作成する
func NewFrameSocket(d camera.Driver, fps int) *FrameSocket {
	if fps <= 0 {
		fps = 10
	}
	return &FrameSocket{
		driver:   d,
		interval: time.Second / time.Duration(fps),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Serve はクライアントが切断するまでフレームを送り続ける
func (f *FrameSocket) Serve(c *gin.Context) {
	conn, err := f.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocketへのアップグレードに失敗: %v", err)
		return
	}
	defer conn.Close()

	// クライアントからのメッセージは読み捨て、切断だけを検知する
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := f.driver.Capture(ctx)
		if err != nil {
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
}
