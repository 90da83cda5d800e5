package model

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnreachable はバックエンドAPIへの接続自体が失敗したことを示す。
// リトライは行わず、ユーザーには汎用の接続エラーメッセージを表示する。
var ErrUpstreamUnreachable = errors.New("バックエンドAPIに接続できません")

// ErrTokenMalformed はトークンの構造が不正でデコードできないことを示す。
var ErrTokenMalformed = errors.New("トークンの形式が不正です")

// ErrTokenExpired はトークンのexpクレームが既に過去であることを示す。
var ErrTokenExpired = errors.New("トークンの有効期限が切れています")

// UpstreamError はバックエンドAPIが返した非2xxレスポンスを表す。
// Messageはレスポンスボディのerrorフィールドをそのまま保持する。
// ボディがパースできなかった場合は空文字列となり、
// 呼び出し元が操作ごとのフォールバックメッセージを補う。
type UpstreamError struct {
	Status  int
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("バックエンドAPIがステータス %d を返しました", e.Status)
	}
	return fmt.Sprintf("バックエンドAPIがステータス %d を返しました: %s", e.Status, e.Message)
}

// MessageOr はバックエンドのエラーメッセージを返す。
// メッセージが空（ボディがパース不能だった）の場合はfallbackを返す。
func (e *UpstreamError) MessageOr(fallback string) string {
	if e.Message == "" {
		return fallback
	}
	return e.Message
}

// AsUpstreamError はerrからUpstreamErrorを取り出す。
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
