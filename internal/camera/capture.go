package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}

	frameSizePattern = regexp.MustCompile(`Size:\s+Discrete\s+(\d+)x(\d+)`)
)

// V4L2Capturer はシェルコマンドを使ってV4L2デバイスから画像を取得する
type V4L2Capturer struct {
	devicePath string
	resolution Resolution
	fps        int
}

// NewV4L2Capturer は新しいV4L2Capturerを作成する
func NewV4L2Capturer(devicePath string, r Resolution, fps int) *V4L2Capturer {
	return &V4L2Capturer{
		devicePath: devicePath,
		resolution: r,
		fps:        fps,
	}
}

// ListResolutions はデバイスがサポートする離散フレームサイズを小さい順に返す
func (c *V4L2Capturer) ListResolutions(ctx context.Context) (ResolutionList, error) {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", c.devicePath, "--list-formats-ext")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("フォーマット一覧の取得に失敗: %w", err)
	}
	return parseFrameSizes(output), nil
}

// parseFrameSizes は v4l2-ctl --list-formats-ext の出力から解像度を抽出する
func parseFrameSizes(output []byte) ResolutionList {
	var list ResolutionList
	for _, m := range frameSizePattern.FindAllSubmatch(output, -1) {
		w, _ := strconv.Atoi(string(m[1]))
		h, _ := strconv.Atoi(string(m[2]))
		r := Resolution{Width: w, Height: h}
		if !r.IsValid() || list.Contains(r) {
			continue
		}
		list = append(list, r)
	}

	// 挿入ソートで小さい順に並べる
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].Less(list[j-1]); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
	return list
}

// CaptureFrameAsJPEG は1フレームをキャプチャしてJPEGバイト配列として返す
func (c *V4L2Capturer) CaptureFrameAsJPEG(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", c.resolution.String(),
		"-i", c.devicePath,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", "2", // 高品質JPEG
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("JPEGフレームキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// TestCapture はデバイステスト用の簡単なキャプチャ機能
func (c *V4L2Capturer) TestCapture(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.CaptureFrameAsJPEG(testCtx)
	return err
}

// StartStream は連続キャプチャ用のストリームを開始し、フレームごとに onFrame を呼ぶ
// ctx がキャンセルされるかffmpegが終了するまでブロックする
func (c *V4L2Capturer) StartStream(ctx context.Context, onFrame func([]byte)) error {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", c.resolution.String(),
		"-r", strconv.Itoa(c.fps),
		"-i", c.devicePath,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderrパイプの作成に失敗: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}

	// stderrは最後の行だけログに残す
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		var last string
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			last = scanner.Text()
		}
		if last != "" && ctx.Err() == nil {
			log.Printf("ffmpeg(%s): %s", c.devicePath, last)
		}
	}()

	readErr := readJPEGStream(ctx, stdout, onFrame)
	if readErr != nil {
		// 読み取りに失敗した場合はstderrが閉じるようにプロセスを止める
		_ = cmd.Process.Kill()
	}

	// パイプの読み取りが終わってからWaitする
	<-stderrDone
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpegが異常終了: %w", waitErr)
	}
	return nil
}

// readJPEGStream は連結されたJPEGストリームをフレームに分割する
func readJPEGStream(ctx context.Context, r io.Reader, onFrame func([]byte)) error {
	buffer := make([]byte, 64*1024)
	var pending []byte

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := r.Read(buffer)
		if n > 0 {
			pending = append(pending, buffer[:n]...)
			for {
				frame, rest, ok := nextJPEG(pending)
				if !ok {
					pending = rest
					break
				}
				onFrame(frame)
				pending = rest
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("フレーム読み取りエラー: %w", err)
		}
	}
}

// nextJPEG は data から最初の完全なJPEGフレームを取り出す
// 完全なフレームがない場合は SOI 以前の不要なデータを捨てた残りを返す
func nextJPEG(data []byte) (frame, rest []byte, ok bool) {
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		// 末尾の0xFFはマーカーの前半の可能性がある
		if len(data) > 0 && data[len(data)-1] == 0xFF {
			return nil, data[len(data)-1:], false
		}
		return nil, nil, false
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end == -1 {
		return nil, data[start:], false
	}
	end += start + 2 + 2

	frame = make([]byte, end-start)
	copy(frame, data[start:end])
	return frame, data[end:], true
}
