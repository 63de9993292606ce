package camera

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// V4L2Driver はffmpegとv4l2-ctlを使うDriver実装
type V4L2Driver struct {
	device  string
	fps     int
	catalog ResolutionList

	mu         sync.RWMutex
	resolution Resolution
	capturer   *V4L2Capturer
	running    bool // Start済みでStopされていない
	streaming  bool // ストリーミングゴルーチンが動いている

	// ストリーミング制御用
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// 最新フレーム保持用（静止画用）
	latestFrame []byte
	latestReady chan struct{} // 最初のフレームが届くとcloseされる
	latestMutex sync.RWMutex
}

// firstFrameTimeout はストリーム再開後に最初のフレームを待つ上限
var firstFrameTimeout = 3 * time.Second

// V4L2Options はV4L2Driverの生成オプション
type V4L2Options struct {
	Device     string         // デバイスパス。空ならDiscoveryで検出する
	FPS        int            // ストリームのフレームレート
	Catalog    ResolutionList // 空ならv4l2-ctlから取得する
	Resolution Resolution     // 起動時の解像度
}

// NewV4L2Driver は新しいV4L2Driverを作成する
func NewV4L2Driver(ctx context.Context, opts V4L2Options, discovery Discovery) (*V4L2Driver, error) {
	device := opts.Device
	if device == "" {
		found, err := FirstDevice(ctx, discovery)
		if err != nil {
			return nil, fmt.Errorf("カメラデバイスの検出に失敗: %w", err)
		}
		device = found
		log.Printf("カメラデバイスを検出しました: %s", device)
	}

	catalog := opts.Catalog
	if len(catalog) == 0 {
		lister := NewV4L2Capturer(device, opts.Resolution, opts.FPS)
		list, err := lister.ListResolutions(ctx)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("デバイス %s に離散フレームサイズがありません", device)
		}
		catalog = list
	}

	resolution := opts.Resolution
	if !catalog.Contains(resolution) {
		resolution = catalog[0]
	}

	return &V4L2Driver{
		device:      device,
		fps:         opts.FPS,
		catalog:     catalog,
		resolution:  resolution,
		capturer:    NewV4L2Capturer(device, resolution, opts.FPS),
		latestReady: make(chan struct{}),
	}, nil
}

// Resolutions は解像度カタログを返す
func (d *V4L2Driver) Resolutions() ResolutionList {
	return d.catalog
}

// Start はカメラを開始する
func (d *V4L2Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	if err := d.capturer.TestCapture(ctx); err != nil {
		return fmt.Errorf("カメラのテストキャプチャに失敗: %w", err)
	}

	d.startStreamLocked()
	d.running = true
	return nil
}

// Stop はカメラを停止する
func (d *V4L2Driver) Stop(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.stopStreamLocked()
	d.running = false
	return nil
}

// ChangeResolution はffmpegパイプラインを新しい解像度で再起動する
// 失敗しても以前の解像度には戻さない。失敗後もStop前なら次の変更でストリームを再開する
func (d *V4L2Driver) ChangeResolution(ctx context.Context, r Resolution) error {
	if !d.catalog.Contains(r) {
		return fmt.Errorf("%w: %s", ErrUnsupportedResolution, r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopStreamLocked()

	d.resolution = r
	d.capturer = NewV4L2Capturer(d.device, r, d.fps)
	d.setLatest(nil)

	if err := d.capturer.TestCapture(ctx); err != nil {
		return fmt.Errorf("解像度 %s でのキャプチャに失敗: %w", r, err)
	}

	if d.running {
		d.startStreamLocked()
	}
	return nil
}

// Capture は最新フレームを返す
// ストリーム再開直後でまだフレームがなければ最初のフレームを待つ
func (d *V4L2Driver) Capture(ctx context.Context) ([]byte, error) {
	d.mu.RLock()
	streaming := d.streaming
	d.mu.RUnlock()

	if !streaming {
		return nil, ErrNotStarted
	}

	d.latestMutex.RLock()
	frame := d.latestFrame
	ready := d.latestReady
	d.latestMutex.RUnlock()
	if frame != nil {
		return frame, nil
	}

	timer := time.NewTimer(firstFrameTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%s からフレームが届きません", d.device)
	}

	d.latestMutex.RLock()
	frame = d.latestFrame
	d.latestMutex.RUnlock()
	if frame == nil {
		// 待っている間に解像度が変わった
		return nil, fmt.Errorf("%s のストリームが再起動されました", d.device)
	}
	return frame, nil
}

// startStreamLocked はストリーミングゴルーチンを開始する。d.mu を保持して呼ぶ
func (d *V4L2Driver) startStreamLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.streaming = true
	capturer := d.capturer

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			if err := capturer.StartStream(ctx, d.setLatest); err != nil {
				log.Printf("ストリームエラー (%s): %v", d.device, err)
			}

			// ffmpegが落ちた場合は少し待って再起動
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()
}

// stopStreamLocked はストリーミングゴルーチンを停止する。d.mu を保持して呼ぶ
func (d *V4L2Driver) stopStreamLocked() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.streaming = false
}

// setLatest は最新フレームを更新する。nil を渡すと待機用チャネルも作り直す
func (d *V4L2Driver) setLatest(frame []byte) {
	d.latestMutex.Lock()
	defer d.latestMutex.Unlock()

	if d.latestReady == nil {
		d.latestReady = make(chan struct{})
	}

	if frame == nil {
		if d.latestFrame != nil {
			d.latestReady = make(chan struct{})
		}
		d.latestFrame = nil
		return
	}

	if d.latestFrame == nil {
		close(d.latestReady)
	}
	d.latestFrame = frame
}
