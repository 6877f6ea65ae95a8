package models

import (
	"time"

	"gorm.io/gorm"
)

// PageFace is a detected face region on a page. The embedding column is a
// placeholder for a future recognition model and stays null until one is
// wired in. SuggestedName is advisory only; it never establishes identity.
type PageFace struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	PageID        uint          `gorm:"index;not null" json:"page_id"`
	Page          *YearbookPage `gorm:"foreignKey:PageID" json:"page,omitempty"`
	X             int           `gorm:"type:int;not null" json:"x"`
	Y             int           `gorm:"type:int;not null" json:"y"`
	Width         int           `gorm:"type:int;not null" json:"width"`
	Height        int           `gorm:"type:int;not null" json:"height"`
	Confidence    float64       `gorm:"type:decimal(4,3)" json:"confidence"`
	Embedding     []byte        `gorm:"type:blob" json:"-"`
	SuggestedName *string       `gorm:"type:varchar(255)" json:"suggested_name,omitempty"`
	ClaimedBy     *uint         `gorm:"index" json:"claimed_by,omitempty"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeCreate rejects rectangles that violate the pixel convention
func (f *PageFace) BeforeCreate(tx *gorm.DB) error {
	return validateBoundingBox(f.X, f.Y, f.Width, f.Height)
}

// FindFacesByPageID returns all detected faces for a page
func FindFacesByPageID(db *gorm.DB, pageID uint) ([]PageFace, error) {
	var faces []PageFace
	err := db.Where("page_id = ?", pageID).Find(&faces).Error
	return faces, err
}
