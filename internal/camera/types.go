package camera

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotStarted はドライバーが開始されていないことを表す
	ErrNotStarted = errors.New("カメラが開始されていません")
	// ErrUnsupportedResolution はカタログにない解像度が指定されたことを表す
	ErrUnsupportedResolution = errors.New("サポートされていない解像度")
)

// Resolution はカメラの解像度を表す
type Resolution struct {
	Width  int // 幅
	Height int // 高さ
}

// IsValid は幅と高さが正の値かを返す
func (r Resolution) IsValid() bool {
	return r.Width > 0 && r.Height > 0
}

// String は "640x480" 形式で解像度を返す
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Compare は解像度の大小を比較する。画素数で比較し、同じ場合は幅で比較する
func (r Resolution) Compare(o Resolution) int {
	a, b := r.Width*r.Height, o.Width*o.Height
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	case r.Width < o.Width:
		return -1
	case r.Width > o.Width:
		return 1
	}
	return 0
}

// Less は r が o より小さいかを返す
func (r Resolution) Less(o Resolution) bool { return r.Compare(o) < 0 }

// Greater は r が o より大きいかを返す
func (r Resolution) Greater(o Resolution) bool { return r.Compare(o) > 0 }

// ParseResolution は "WIDTHxHEIGHT" 形式の文字列を解析する
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("無効な解像度: %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Resolution{}, fmt.Errorf("無効な幅: %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Resolution{}, fmt.Errorf("無効な高さ: %q", s)
	}
	r := Resolution{Width: width, Height: height}
	if !r.IsValid() {
		return Resolution{}, fmt.Errorf("無効な解像度: %q", s)
	}
	return r, nil
}

// ResolutionList はドライバーが列挙する解像度カタログ（小さい順）
type ResolutionList []Resolution

// Find は width x height 以上を満たす最小の解像度を返す。見つからなければ無効な値を返す
func (l ResolutionList) Find(width, height int) Resolution {
	var found Resolution
	for _, r := range l {
		if r.Width < width || r.Height < height {
			continue
		}
		if !found.IsValid() || r.Less(found) {
			found = r
		}
	}
	return found
}

// Contains は r がカタログに含まれるかを返す
func (l ResolutionList) Contains(r Resolution) bool {
	for _, c := range l {
		if c == r {
			return true
		}
	}
	return false
}

// Largest はカタログ内で最大の解像度を返す
func (l ResolutionList) Largest() Resolution {
	var largest Resolution
	for _, r := range l {
		if r.Greater(largest) {
			largest = r
		}
	}
	return largest
}

// DefaultCatalog はOV2640センサーのフレームサイズ一覧
var DefaultCatalog = ResolutionList{
	{96, 96},
	{160, 120},
	{176, 144},
	{240, 176},
	{240, 240},
	{320, 240},
	{400, 296},
	{480, 320},
	{640, 480},
	{800, 600},
	{1024, 768},
	{1280, 720},
	{1280, 1024},
	{1600, 1200},
}

// Driver はカメラセンサーの制御を担うインターフェース
type Driver interface {
	// Start はキャプチャを開始する
	Start(ctx context.Context) error

	// Stop はキャプチャを停止する
	Stop(ctx context.Context) error

	// Resolutions はサポートされる解像度カタログを返す
	Resolutions() ResolutionList

	// ChangeResolution はセンサーの解像度を変更する
	ChangeResolution(ctx context.Context, r Resolution) error

	// Capture は現在の解像度で1フレームをJPEGとして取得する
	Capture(ctx context.Context) ([]byte, error)
}

// Discovery はカメラデバイスの検出機能を提供する
type Discovery interface {
	// ScanDevices はシステム内の利用可能なカメラデバイスをスキャンする
	ScanDevices(ctx context.Context) ([]string, error)

	// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
	IsDeviceAvailable(ctx context.Context, device string) bool
}
