package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification kinds
const (
	NotificationProcessingComplete = "yearbook_processing_complete"
	NotificationClaimApproved      = "claim_approved"
	NotificationClaimRejected      = "claim_rejected"
)

type Notification struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index" json:"user_id"`
	User        User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Type        string         `gorm:"type:varchar(50)" json:"type" validate:"oneof=yearbook_processing_complete claim_approved claim_rejected"`
	Content     string         `gorm:"type:text" json:"content"`
	IsRead      bool           `gorm:"default:false" json:"is_read"`
	ReferenceID uint           `json:"reference_id"` // ID of the object the notification refers to
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// MarkAsRead marks a notification as read
func (n *Notification) MarkAsRead(db *gorm.DB) error {
	n.IsRead = true
	return db.Model(n).Update("is_read", true).Error
}

// CreateNotification creates a new notification
func CreateNotification(db *gorm.DB, userID uint, notificationType string, content string, referenceID uint) error {
	notification := Notification{
		UserID:      userID,
		Type:        notificationType,
		Content:     content,
		ReferenceID: referenceID,
		IsRead:      false,
	}

	return db.Create(&notification).Error
}
