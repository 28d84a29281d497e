// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountLink は外部IdPアカウント連携を表す。
// OAuthコールバック成功時にリフレッシュトークンを保存するために使用する。
// (UserEmail, Provider)の組ごとに最大1件のみ存在する（UPSERTで上書き）。
type AccountLink struct {
	UserEmail         string
	Provider          string // "google" 等
	RefreshCredential string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
