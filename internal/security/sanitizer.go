// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はバックエンドAPIから受け取った表示用テキスト
// （カテゴリー名、商品説明、入出庫メモなど）からマークアップを除去し、
// 画面に埋め込む前にXSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリのStrictPolicyを使用し、タグを一切許可しない。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService は表示用テキストのサニタイズ機能のインターフェースを定義する。
// バックエンドからの応答を画面のビューモデルに詰める際に使用される。
type TextSanitizerService interface {
	// Sanitize はテキストからすべてのHTMLタグを除去して返す。
	// プレーンテキストはそのまま通過する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはタグも属性も一切許可せず、テキストノードのみを残す。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからすべてのHTMLタグを除去して返す。
// サニタイズ後の前後空白は取り除く。
func (s *textSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
