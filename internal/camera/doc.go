// Package camera カメラセンサーの制御と画像配信を担う
//
// # 責務
// - 解像度カタログの列挙と検索
// - センサー解像度の変更
// - 静止画（JPEG）のキャプチャ
// - MJPEGストリームの配信
//
// # 仕様
// - Driver: センサー制御の抽象。V4L2Driver と TestPatternDriver を提供する
// - V4L2Driver: ffmpeg経由での連続キャプチャ。最新フレームを静止画に使う
// - TestPatternDriver: 合成画像を返す開発・テスト用ドライバー
// - StillHandler / Streamer: /cam.jpg と /cam.mjpeg のHTTPハンドラ
// - Thread-safe な操作をサポート
//
// # 前提要件
//   - v4l-utils: 解像度一覧の取得に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: 画像キャプチャとストリーミングに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
