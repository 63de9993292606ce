package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ドライバー名
const (
	DriverV4L2        = "v4l2"
	DriverTestPattern = "testpattern"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server ServerConfig `yaml:"server"`
	Camera CameraConfig `yaml:"camera"`
	Upload UploadConfig `yaml:"upload"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// CameraConfig はカメラ関連の設定
type CameraConfig struct {
	Driver string `yaml:"driver"` // "v4l2" または "testpattern"
	Device string `yaml:"device"` // デバイスパス。空なら自動検出

	// 起動時の解像度。カタログにない場合はそれ以上の最小解像度を使う
	DefaultWidth  int `yaml:"default_width"`
	DefaultHeight int `yaml:"default_height"`

	FPS int `yaml:"fps"` // ストリームのフレームレート

	// 解像度カタログの上書き（"640x480" 形式）。空ならドライバーから取得
	Resolutions []string `yaml:"resolutions"`
}

// UploadConfig は画像送信先の設定
type UploadConfig struct {
	URL     string        `yaml:"url"`     // 送信先。空なら送信機能は無効
	Timeout time.Duration `yaml:"timeout"` // 送信タイムアウト
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Camera: CameraConfig{
			Driver:        DriverV4L2,
			DefaultWidth:  1024,
			DefaultHeight: 768,
			FPS:           10,
		},
		Upload: UploadConfig{
			Timeout: 15 * time.Second,
		},
	}
}

// Load は設定を読み込む
// path が空でなければYAMLファイルを読み、その後に環境変数で上書きする
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsIntOrDefault("PORT", cfg.Server.Port)
	cfg.Camera.Driver = getEnvOrDefault("CAMERA_DRIVER", cfg.Camera.Driver)
	cfg.Camera.Device = getEnvOrDefault("CAMERA_DEVICE", cfg.Camera.Device)
	cfg.Upload.URL = getEnvOrDefault("UPLOAD_URL", cfg.Upload.URL)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("無効なポート番号: %d", c.Server.Port))
	}
	if c.Server.WriteTimeout < 0 || c.Server.ReadTimeout < 0 {
		errs = append(errs, errors.New("タイムアウトが負の値です"))
	}

	switch c.Camera.Driver {
	case DriverV4L2, DriverTestPattern:
	default:
		errs = append(errs, fmt.Errorf("不明なカメラドライバー: %q", c.Camera.Driver))
	}
	if c.Camera.DefaultWidth <= 0 || c.Camera.DefaultHeight <= 0 {
		errs = append(errs, fmt.Errorf("無効なデフォルト解像度: %dx%d", c.Camera.DefaultWidth, c.Camera.DefaultHeight))
	}
	if c.Camera.FPS <= 0 || c.Camera.FPS > 60 {
		errs = append(errs, fmt.Errorf("無効なFPS値: %d", c.Camera.FPS))
	}

	if c.Upload.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("無効な送信タイムアウト: %s", c.Upload.Timeout))
	}

	return errors.Join(errs...)
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
