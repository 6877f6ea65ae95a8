package models

import (
	"time"

	"gorm.io/gorm"
)

type School struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null;index" json:"name" validate:"required,min=2,max=255"`
	City      string         `gorm:"type:varchar(150)" json:"city"`
	Country   string         `gorm:"type:varchar(2)" json:"country"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
