// Package model はドメインモデルを定義する。
package model

import "time"

// Note はユーザーが作成したメモを表す。
type Note struct {
	ID        string
	UserID    string
	Content   string
	CreatedAt time.Time
}
