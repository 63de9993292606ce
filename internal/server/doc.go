// Package server は、カメラ操作用のHTTPサーバーを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// 解像度状態の管理、カメラ画像の配信を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - フロントページの配信
//   - 解像度変更リクエストの処理
//   - 静止画・MJPEG・WebSocketでの画像配信
//   - キャプチャ画像の外部サーバーへの中継
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - WebSocketはgorilla/websocketを使用
//   - 現在の解像度はStateが保持し、変更はロックで直列化する
package server
