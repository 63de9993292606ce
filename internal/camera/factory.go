package camera

import (
	"context"
	"fmt"
	"sort"
)

// DriverConfig はドライバー作成設定
type DriverConfig struct {
	Device     string         // デバイスパス（V4L2の場合）
	FPS        int            // フレームレート
	Catalog    ResolutionList // 解像度カタログの上書き
	Resolution Resolution     // 起動時の解像度
}

// DriverCreator はドライバー作成関数の型
type DriverCreator func(ctx context.Context, config DriverConfig) (Driver, error)

// DriverFactory は名前からドライバーを作成する
type DriverFactory struct {
	creators map[string]DriverCreator
}

// NewDriverFactory は標準のドライバーを登録したファクトリーを作成する
func NewDriverFactory() *DriverFactory {
	factory := &DriverFactory{
		creators: make(map[string]DriverCreator),
	}

	factory.Register("v4l2", func(ctx context.Context, config DriverConfig) (Driver, error) {
		driver, err := NewV4L2Driver(ctx, V4L2Options(config), NewLinuxDiscovery())
		if err != nil {
			return nil, err
		}
		return driver, nil
	})
	factory.Register("testpattern", func(_ context.Context, config DriverConfig) (Driver, error) {
		return NewTestPatternDriver(config.Catalog, config.Resolution), nil
	})

	return factory
}

// Register はドライバー作成関数を登録する
func (f *DriverFactory) Register(name string, creator DriverCreator) {
	f.creators[name] = creator
}

// Create はドライバーを作成する
func (f *DriverFactory) Create(ctx context.Context, name string, config DriverConfig) (Driver, error) {
	creator, exists := f.creators[name]
	if !exists {
		return nil, fmt.Errorf("サポートされていないドライバー: %s", name)
	}

	return creator(ctx, config)
}

// SupportedDrivers は登録済みのドライバー名を返す
func (f *DriverFactory) SupportedDrivers() []string {
	names := make([]string, 0, len(f.creators))
	for name := range f.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
