// Package model はドメインモデルを定義する。
package model

// User はフィードを所有するサービス利用ユーザーを表す。
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
}
