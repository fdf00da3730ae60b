package model

import "time"

// SchoolMember запись справочника школ, заполняется из данных identity
type SchoolMember struct {
	UserID      string `gorm:"primaryKey;size:64"`
	SchoolID    string `gorm:"size:64;not null;index"`
	DisplayName string
	UpdatedAt   time.Time
}
