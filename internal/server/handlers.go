package server

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"snapsend/internal/camera"
	"snapsend/internal/page"
	"snapsend/internal/upload"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	robotsTxt = "User-Agent: *\nDisallow: /\n"

	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"
)

// SnapSendHandler はルートごとのハンドラを保持する
type SnapSendHandler struct {
	driver   camera.Driver
	state    *State
	renderer *page.Renderer
	uploader *upload.Client
	ws       *FrameSocket
}

// FrontPage はフロントページを描画する
func (h *SnapSendHandler) FrontPage(c *gin.Context) {
	st := page.State{
		Catalog:   h.driver.Resolutions(),
		Current:   h.state.Current(),
		Initial:   h.state.Initial(),
		UploadURL: h.uploader.URL(),
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, st); err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, contentTypeHTML, buf.Bytes())
}

// RobotsTxt は全クローラーを拒否する
func (h *SnapSendHandler) RobotsTxt(c *gin.Context) {
	c.Data(http.StatusOK, contentTypeText, []byte(robotsTxt))
}

// ChangeResolution はフォームの width/height に完全一致する解像度へ変更する
func (h *SnapSendHandler) ChangeResolution(c *gin.Context) {
	width := formInt(c, "width")
	height := formInt(c, "height")

	r := h.driver.Resolutions().Find(width, height)
	if !r.IsValid() || r.Width != width || r.Height != height {
		c.Data(http.StatusNotFound, contentTypeText, []byte("non-existent resolution\n"))
		return
	}

	if err := h.state.Change(c.Request.Context(), r, h.driver.ChangeResolution); err != nil {
		log.Printf("changeResolution(%d,%d) failure: %v", width, height, err)
		c.Data(http.StatusInternalServerError, contentTypeText, []byte("changeResolution error\n"))
		return
	}

	log.Printf("changeResolution(%d,%d) success", width, height)
	c.Data(http.StatusOK, contentTypeText, []byte(h.state.Current().String()))
}

// SendCapture は静止画を撮影して設定された送信先へ中継する
func (h *SnapSendHandler) SendCapture(c *gin.Context) {
	if !h.uploader.Enabled() {
		c.Data(http.StatusServiceUnavailable, contentTypeText, []byte("upload disabled\n"))
		return
	}

	frame, err := h.driver.Capture(c.Request.Context())
	if err != nil {
		log.Printf("送信用キャプチャに失敗: %v", err)
		c.Data(http.StatusInternalServerError, contentTypeText, []byte("capture error\n"))
		return
	}

	result, err := h.uploader.Send(c.Request.Context(), frame)
	if err != nil {
		var statusErr *upload.StatusError
		if errors.As(err, &statusErr) {
			log.Printf("画像の送信が拒否されました: status=%d", statusErr.Code)
		} else {
			log.Printf("画像の送信に失敗: %v", err)
		}
		c.Data(http.StatusBadGateway, contentTypeText, []byte("upload error\n"))
		return
	}

	log.Printf("画像を送信しました: capture_id=%s size=%d", result.CaptureID, len(frame))
	c.Header("X-Capture-Id", result.CaptureID)
	c.Data(http.StatusOK, contentTypeText, []byte(result.Body))
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *SnapSendHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"resolution": h.state.Current().String(),
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

// formInt はフォーム値を整数として取得する。解析できなければ0を返す
func formInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Request.FormValue(key)))
	if err != nil {
		return 0
	}
	return v
}

// requestID はリクエストごとにX-Request-Idを付与するミドルウェア
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}
