// Package upload はキャプチャ画像を外部のレポートサーバーへ送信する。
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// ErrDisabled は送信先が設定されていないことを表す
var ErrDisabled = errors.New("送信先が設定されていません")

// StatusError は送信先が2xx以外を返したことを表す
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("送信先がステータス %d を返しました: %s", e.Code, e.Body)
}

// Result は送信結果
type Result struct {
	CaptureID string // X-Capture-Id として送ったID
	Body      string // 送信先のレスポンス本文
}

// Client はmultipart/form-dataで画像を送信するクライアント
type Client struct {
	url  string
	http *resty.Client
}

// NewClient は新しいClientを作成する
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: resty.New().SetTimeout(timeout),
	}
}

// URL は送信先を返す
func (c *Client) URL() string {
	return c.url
}

// Enabled は送信先が設定されているかを返す
func (c *Client) Enabled() bool {
	return c.url != ""
}

// Send はJPEG画像をフィールド "image"、ファイル名 "capture.jpg" で送信する
func (c *Client) Send(ctx context.Context, jpeg []byte) (*Result, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	id := uuid.NewString()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Capture-Id", id).
		SetFileReader("image", "capture.jpg", bytes.NewReader(jpeg)).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("画像の送信に失敗: %w", err)
	}

	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: resp.String()}
	}

	return &Result{CaptureID: id, Body: resp.String()}, nil
}
