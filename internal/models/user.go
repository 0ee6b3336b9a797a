package models

import (
	"gorm.io/gorm"
)

// User 表示系統中的用戶
type User struct {
	gorm.Model           // 內嵌 gorm.Model，提供 ID、CreatedAt、UpdatedAt 和 DeletedAt 字段
	Username    string   `gorm:"uniqueIndex;not null" json:"username"` // 用戶名，必須唯一
	Password    string   `gorm:"not null" json:"-"`                    // 密碼，json 序列化時會被忽略
	DisplayName string   `json:"display_name"`
	Role        UserRole `gorm:"not null" json:"role"` // 用戶角色
}

// UserRole 定義用戶角色的類型
type UserRole string

const (
	RoleResident UserRole = "resident" // 住戶
	RoleManager  UserRole = "manager"  // 管理員
	RoleStaff    UserRole = "staff"    // 物業人員
)

// Valid 回報是否為已知角色
func (r UserRole) Valid() bool {
	switch r {
	case RoleResident, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Name 回傳顯示名稱，未設定時使用用戶名
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
