package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"sync"
)

const tileSize = 32

// TestPatternDriver は合成画像を返すDriver実装
// 開発用とテスト用のモックを兼ねる
type TestPatternDriver struct {
	catalog ResolutionList

	mu         sync.RWMutex
	resolution Resolution
	started    bool
	changes    int

	// テスト制御用
	shouldFailChange  bool
	shouldFailCapture bool
}

// NewTestPatternDriver は新しいTestPatternDriverを作成する
func NewTestPatternDriver(catalog ResolutionList, initial Resolution) *TestPatternDriver {
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}
	if !catalog.Contains(initial) {
		initial = catalog[0]
	}
	return &TestPatternDriver{
		catalog:    catalog,
		resolution: initial,
	}
}

// Start は合成カメラを開始する
func (d *TestPatternDriver) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	return nil
}

// Stop は合成カメラを停止する
func (d *TestPatternDriver) Stop(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	return nil
}

// Resolutions は解像度カタログを返す
func (d *TestPatternDriver) Resolutions() ResolutionList {
	return d.catalog
}

// ChangeResolution は解像度を変更する
func (d *TestPatternDriver) ChangeResolution(_ context.Context, r Resolution) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.shouldFailChange {
		return fmt.Errorf("モック: 解像度 %s への変更に失敗", r)
	}
	if !d.catalog.Contains(r) {
		return fmt.Errorf("%w: %s", ErrUnsupportedResolution, r)
	}

	d.resolution = r
	d.changes++
	return nil
}

// Capture は現在の解像度でタイル模様のJPEGを生成する
func (d *TestPatternDriver) Capture(_ context.Context) ([]byte, error) {
	d.mu.RLock()
	r := d.resolution
	started := d.started
	failing := d.shouldFailCapture
	d.mu.RUnlock()

	if !started {
		return nil, ErrNotStarted
	}
	if failing {
		return nil, fmt.Errorf("モック: キャプチャに失敗")
	}

	img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	for x := 0; x < r.Width; x += tileSize {
		for y := 0; y < r.Height; y += tileSize {
			gray := color.Gray{Y: uint8(rand.Intn(256))}
			for i := x; i < x+tileSize && i < r.Width; i++ {
				for j := y; j < y+tileSize && j < r.Height; j++ {
					img.SetGray(i, j, gray)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// CurrentResolution はドライバーが保持している解像度を返す
func (d *TestPatternDriver) CurrentResolution() Resolution {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.resolution
}

// Changes は成功した解像度変更の回数を返す
func (d *TestPatternDriver) Changes() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.changes
}

// SetShouldFailChange はテスト用に解像度変更の失敗を設定する
func (d *TestPatternDriver) SetShouldFailChange(shouldFail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shouldFailChange = shouldFail
}

// SetShouldFailCapture はテスト用にキャプチャの失敗を設定する
func (d *TestPatternDriver) SetShouldFailCapture(shouldFail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shouldFailCapture = shouldFail
}
