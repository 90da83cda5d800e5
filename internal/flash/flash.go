// Package flash は画面遷移をまたぐ一回限りの通知を提供する。
//
// 通知はCookieに保持され、次の画面描画時に取り出されると同時に消える。
// 同一ブラウザで複数の通知が連続発行された場合は最後のものだけが残る。
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

// Severity は通知の種別を表す。
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// AutoDismissMillis は画面側で通知を自動的に消すまでのミリ秒数。
// テンプレートのdata属性として描画される。
const AutoDismissMillis = 4000

// cookieの寿命。次のリクエストで取り出される前提なので短くてよい。
const cookieMaxAge = int(5 * time.Minute / time.Second)

const cookieName = "flash"

// Flash は一回限りの通知を表す。
type Flash struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

// Publish は通知をCookieに書き込む。
// 既存の未読通知があっても上書きする（最後の通知が勝つ）。
func Publish(w http.ResponseWriter, text string, severity Severity) {
	payload, err := json.Marshal(Flash{Text: text, Severity: severity})
	if err != nil {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Success は成功通知を発行する。
func Success(w http.ResponseWriter, text string) {
	Publish(w, text, SeveritySuccess)
}

// Error は失敗通知を発行する。
func Error(w http.ResponseWriter, text string) {
	Publish(w, text, SeverityError)
}

// Take は未読通知を取り出し、Cookieを消去する。
// 通知がない場合はnilとfalseを返す。
func Take(w http.ResponseWriter, r *http.Request) (*Flash, bool) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return nil, false
	}

	// 読み出したら即座に消す
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	payload, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil, false
	}

	var f Flash
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, false
	}

	return &f, true
}
