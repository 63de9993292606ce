package camera

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mattn/go-mjpeg"
)

// StillHandler は1フレームをJPEGとして返すハンドラを作成する
func StillHandler(d Driver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		frame, err := d.Capture(r.Context())
		if err != nil {
			log.Printf("静止画キャプチャに失敗: %v", err)
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("capture error\n"))
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
		w.Header().Set("Content-Disposition", "inline; filename=cam.jpg")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(frame)
	})
}

// Streamer はドライバーのフレームをMJPEGストリームとして配信する
type Streamer struct {
	driver   Driver
	stream   *mjpeg.Stream
	interval time.Duration
}

// NewStreamer は新しいStreamerを作成する
func NewStreamer(d Driver, fps int) *Streamer {
	if fps <= 0 {
		fps = 10
	}
	return &Streamer{
		driver:   d,
		stream:   mjpeg.NewStream(),
		interval: time.Second / time.Duration(fps),
	}
}

// Run はフレームをストリームへ送り続ける。ctx がキャンセルされるまでブロックする
func (s *Streamer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer func() {
		_ = s.stream.Close()
	}()

	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := s.driver.Capture(ctx)
		if err != nil {
			// 同じエラーを毎フレーム出さない
			if err.Error() != lastErr {
				log.Printf("ストリーム用キャプチャに失敗: %v", err)
				lastErr = err.Error()
			}
			continue
		}
		lastErr = ""

		if err := s.stream.Update(frame); err != nil {
			log.Printf("ストリームの更新に失敗: %v", err)
		}
	}
}

// ServeHTTP はmultipart/x-mixed-replace形式でフレームを配信する
func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	s.stream.ServeHTTP(w, r)
}
