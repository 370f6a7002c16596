// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// OTPサインアップとGoogleログインの両経路で作成され、emailで同一人物として扱う。
type User struct {
	ID        string
	Name      string
	Email     string
	GoogleID  *string // Googleのsubject。OTPのみで登録したユーザーはnil
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasGoogleID はGoogleアカウントが紐付いているかを返す。
func (u *User) HasGoogleID() bool {
	return u.GoogleID != nil && *u.GoogleID != ""
}

// PublicUser はクライアントに返すユーザー情報。
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Public はUserから公開用の情報のみを取り出す。
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}

// OTP はユーザーごとに最大1件だけ有効なワンタイムパスコードを表す。
type OTP struct {
	UserID    string
	Code      string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired は指定時刻で期限切れかどうかを返す。
func (o *OTP) IsExpired(now time.Time) bool {
	return !o.ExpiresAt.After(now)
}
