package camera

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"testing"
)

func TestTestPatternDriver_Capture(t *testing.T) {
	ctx := context.Background()
	driver := NewTestPatternDriver(nil, Resolution{320, 240})

	// 開始前はエラー
	if _, err := driver.Capture(ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Expected ErrNotStarted, got %v", err)
	}

	if err := driver.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame, err := driver.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("Expected valid JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
		t.Errorf("Expected 320x240 image, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestTestPatternDriver_ChangeResolution(t *testing.T) {
	ctx := context.Background()
	driver := NewTestPatternDriver(nil, Resolution{1024, 768})
	if err := driver.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := driver.ChangeResolution(ctx, Resolution{160, 120}); err != nil {
		t.Fatalf("ChangeResolution failed: %v", err)
	}
	if driver.CurrentResolution() != (Resolution{160, 120}) {
		t.Errorf("Expected 160x120, got %s", driver.CurrentResolution())
	}

	frame, err := driver.Capture(ctx)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("DecodeConfig failed: %v", err)
	}
	if cfg.Width != 160 || cfg.Height != 120 {
		t.Errorf("Expected 160x120 frame, got %dx%d", cfg.Width, cfg.Height)
	}

	// カタログにない解像度
	err = driver.ChangeResolution(ctx, Resolution{1920, 1080})
	if !errors.Is(err, ErrUnsupportedResolution) {
		t.Errorf("Expected ErrUnsupportedResolution, got %v", err)
	}
	if driver.Changes() != 1 {
		t.Errorf("Expected 1 change, got %d", driver.Changes())
	}
}

func TestTestPatternDriver_Failures(t *testing.T) {
	ctx := context.Background()
	driver := NewTestPatternDriver(nil, Resolution{640, 480})
	_ = driver.Start(ctx)

	driver.SetShouldFailChange(true)
	if err := driver.ChangeResolution(ctx, Resolution{320, 240}); err == nil {
		t.Error("Expected change to fail")
	}
	if driver.CurrentResolution() != (Resolution{640, 480}) {
		t.Errorf("Expected resolution to stay 640x480, got %s", driver.CurrentResolution())
	}

	driver.SetShouldFailCapture(true)
	if _, err := driver.Capture(ctx); err == nil {
		t.Error("Expected capture to fail")
	}

	driver.SetShouldFailCapture(false)
	if _, err := driver.Capture(ctx); err != nil {
		t.Errorf("Capture should succeed now: %v", err)
	}

	if err := driver.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestNewTestPatternDriver_InitialNotInCatalog(t *testing.T) {
	catalog := ResolutionList{{320, 240}, {640, 480}}
	driver := NewTestPatternDriver(catalog, Resolution{1920, 1080})

	if driver.CurrentResolution() != (Resolution{320, 240}) {
		t.Errorf("Expected fallback to first catalog entry, got %s", driver.CurrentResolution())
	}
}
