// Package models 定義 gateway 儲存在資料庫中的模型。
package models

// All 回傳需要自動遷移的所有模型
func All() []interface{} {
	return []interface{}{&User{}, &Room{}, &Participant{}, &Message{}, &ReadState{}}
}
