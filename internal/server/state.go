package server

import (
	"context"
	"sync"

	"snapsend/internal/camera"
)

// State は起動時の解像度と現在の解像度を保持する
// current は常にドライバーのカタログに含まれる
type State struct {
	// changeMu はドライバーへの解像度変更を直列化する
	changeMu sync.Mutex

	mu      sync.RWMutex
	initial camera.Resolution
	current camera.Resolution
}

// NewState は新しいStateを作成する
func NewState(initial camera.Resolution) *State {
	return &State{initial: initial, current: initial}
}

// Initial は起動時の解像度（UIで選択できる上限）を返す
func (s *State) Initial() camera.Resolution {
	return s.initial
}

// Current は現在の解像度を返す
func (s *State) Current() camera.Resolution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Change は apply が成功した場合のみ現在の解像度を r に更新する
// 解像度変更は互いに直列化される
func (s *State) Change(ctx context.Context, r camera.Resolution, apply func(context.Context, camera.Resolution) error) error {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	if err := apply(ctx, r); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = r
	s.mu.Unlock()
	return nil
}

// selectInitial はデフォルト解像度からカタログ上の起動解像度を決める
// 完全一致がなければそれ以上の最小解像度、それもなければ最大解像度を使う
func selectInitial(catalog camera.ResolutionList, width, height int) camera.Resolution {
	if r := catalog.Find(width, height); r.IsValid() {
		return r
	}
	return catalog.Largest()
}
