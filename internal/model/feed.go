// Package model はドメインモデルを定義する。
package model

// Feed はユーザーが登録したRSS/Atomフィードの購読を表す。
// URLのグローバルな一意性は保証しない。(url, user_id)の事実上の一意性は
// サービス層で担保する。
type Feed struct {
	ID     int64
	URL    string
	UserID int64
}
