// Package page はカメラ操作用のフロントページを生成します。
//
// フロントページは埋め込みHTMLで、%NAME% 形式のプレースホルダを
// リクエストごとに置換します。
//
// 仕様:
//   - RESOLUTION_OPTIONS: 解像度カタログの <option> 一覧
//   - UPLOAD_URL: ブラウザから画像を送信する先のURL
//   - 未知のプレースホルダは空文字列に置換する
//   - "%%" は "%" として出力する
package page
