package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Parent  UserRole = "parent"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;unique;not null" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Role      UserRole  `gorm:"type:enum('student','teacher','parent','admin');default:'student'" json:"role"`
	Avatar    string    `gorm:"size:255" json:"avatar"`
	Disabled  bool      `gorm:"default:false" json:"disabled"`
	LastLogin time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastLogin"`
	LastSeen  time.Time `gorm:"default:CURRENT_TIMESTAMP(3)" json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}

// ParentLink connects a parent account to one of their children.
// A student may be linked to more than one parent and vice versa.
type ParentLink struct {
	BaseModel
	ParentID  uint `gorm:"type:bigint unsigned;not null;uniqueIndex:idx_parent_student" json:"parentId"`
	StudentID uint `gorm:"type:bigint unsigned;not null;uniqueIndex:idx_parent_student" json:"studentId"`
}

func (ParentLink) TableName() string {
	return "parent_links"
}
