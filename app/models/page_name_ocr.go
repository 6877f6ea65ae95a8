package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrInvalidBoundingBox is returned when a detection rectangle is outside
// the absolute-pixel convention (non-negative origin, positive extent).
var ErrInvalidBoundingBox = errors.New("bounding box must have non-negative origin and positive extent")

// PageNameOCR is one recognized text run on a page. Bounding boxes are
// absolute pixel rectangles; providers reporting normalized coordinates
// must convert before persisting.
type PageNameOCR struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	PageID    uint          `gorm:"index;not null" json:"page_id"`
	Page      *YearbookPage `gorm:"foreignKey:PageID" json:"page,omitempty"`
	Text      string        `gorm:"type:varchar(255);not null" json:"text"`
	X         int           `gorm:"type:int;not null" json:"x"`
	Y         int           `gorm:"type:int;not null" json:"y"`
	Width     int           `gorm:"type:int;not null" json:"width"`
	Height    int           `gorm:"type:int;not null" json:"height"`
	ClaimedBy *uint         `gorm:"index" json:"claimed_by,omitempty"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// TableName keeps the table singular; the plural of OCR reads badly
func (PageNameOCR) TableName() string {
	return "page_name_ocr"
}

// BeforeCreate rejects rectangles that violate the pixel convention
func (n *PageNameOCR) BeforeCreate(tx *gorm.DB) error {
	return validateBoundingBox(n.X, n.Y, n.Width, n.Height)
}

func validateBoundingBox(x, y, w, h int) error {
	if x < 0 || y < 0 || w <= 0 || h <= 0 {
		return ErrInvalidBoundingBox
	}
	return nil
}
