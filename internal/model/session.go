// Package model はドメインモデルを定義する。
package model

import "time"

// Session はベアラートークンのペイロードから導出した認証済みユーザーを表す。
// トークンのデコードに成功した場合のみ生成され、変更されることはない
// （破棄と再生成のみ）。
type Session struct {
	SubjectID   int64
	DisplayName string
	Email       string
	RawToken    string
	// ExpiresAt はexpクレームに対応する有効期限。
	// expクレームが存在しないトークンではゼロ値となり、ローカルでは失効しない。
	ExpiresAt time.Time
}

// Expired はセッションが時刻nowの時点で失効しているかどうかを返す。
// 有効期限が未設定（expクレームなし）の場合は常にfalseを返す。
func (s *Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}
