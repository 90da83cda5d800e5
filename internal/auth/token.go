// Package auth はベアラートークンのデコードとセッション導出を提供する。
//
// トークンはヘッダー・ペイロード・署名の3セグメントからなるコンパクト形式で、
// このレイヤーはペイロードのクレームから表示用のユーザー情報と有効期限のみを
// 導出する。署名の検証は行わない。リクエストごとの正当性の判断は鍵を持つ
// バックエンドが担い、ここでの検査は起動時（リクエスト受付時）の一度きりで、
// 失効の継続監視はしない。
package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/stockman/internal/model"
)

// tokenSegments はコンパクト形式トークンのセグメント数（header.payload.signature）。
const tokenSegments = 3

// claims はペイロードから読み取るクレームの集合。
// 未知のクレームは無視する。
type claims struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Exp   int64  `json:"exp"`
}

// Decode はベアラートークンをデコードしてSessionを導出する。
// 以下の場合はエラーを返し、Sessionは生成されない:
//   - トークンが空、またはセグメント数が3でない（model.ErrTokenMalformed）
//   - ペイロードのbase64デコードまたはJSONパースに失敗（model.ErrTokenMalformed）
//   - expクレームが存在し、now時点で既に失効している（model.ErrTokenExpired）
//
// expクレームが存在しないトークンは有効期限なしのSessionとして扱う。
func Decode(raw string, now time.Time) (*model.Session, error) {
	if raw == "" {
		return nil, fmt.Errorf("トークンが空です: %w", model.ErrTokenMalformed)
	}

	parts := strings.Split(raw, ".")
	if len(parts) != tokenSegments {
		return nil, fmt.Errorf("セグメント数が不正です（%d個）: %w", len(parts), model.ErrTokenMalformed)
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("ペイロードのbase64デコードに失敗しました: %w", model.ErrTokenMalformed)
	}

	var c claims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("ペイロードのJSONパースに失敗しました: %w", model.ErrTokenMalformed)
	}

	// expはエポック秒。存在する場合のみ失効を検査する。
	var expiresAt time.Time
	if c.Exp != 0 {
		expiresAt = time.Unix(c.Exp, 0)
		if !now.Before(expiresAt) {
			return nil, model.ErrTokenExpired
		}
	}

	return &model.Session{
		SubjectID:   c.ID,
		DisplayName: c.Name,
		Email:       c.Email,
		RawToken:    raw,
		ExpiresAt:   expiresAt,
	}, nil
}

// decodeSegment はトークンセグメントをbase64デコードする。
// URL-safe形式を優先し、標準形式のセグメントにもフォールバックする。
// パディングの有無は問わない。
func decodeSegment(seg string) ([]byte, error) {
	trimmed := strings.TrimRight(seg, "=")
	if b, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(trimmed)
}
