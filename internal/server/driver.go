package server

import (
	"context"
	"fmt"

	"snapsend/internal/camera"
	"snapsend/internal/config"
)

// NewDriver は設定に従ってカメラドライバーを作成する
func NewDriver(ctx context.Context, cfg *config.Config) (camera.Driver, error) {
	var catalog camera.ResolutionList
	for _, s := range cfg.Camera.Resolutions {
		r, err := camera.ParseResolution(s)
		if err != nil {
			return nil, fmt.Errorf("解像度カタログの解析に失敗: %w", err)
		}
		catalog = append(catalog, r)
	}

	return camera.NewDriverFactory().Create(ctx, cfg.Camera.Driver, camera.DriverConfig{
		Device:  cfg.Camera.Device,
		FPS:     cfg.Camera.FPS,
		Catalog: catalog,
		Resolution: camera.Resolution{
			Width:  cfg.Camera.DefaultWidth,
			Height: cfg.Camera.DefaultHeight,
		},
	})
}
