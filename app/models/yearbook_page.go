package models

import (
	"time"

	"gorm.io/gorm"
)

// TileManifest describes the deep-zoom tile pyramid generated for a page.
// Stored as JSON on the page row and served verbatim to the viewer.
type TileManifest struct {
	TileSize      int    `json:"tile_size"`
	Overlap       int    `json:"overlap"`
	Format        string `json:"format"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Levels        int    `json:"levels"`
	WatermarkText string `json:"watermark_text,omitempty"`
}

type YearbookPage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	YearbookID   uint      `gorm:"not null;index:idx_yearbook_page,unique" json:"yearbook_id"`
	Yearbook     *Yearbook `gorm:"foreignKey:YearbookID" json:"yearbook,omitempty"`
	PageNumber   int       `gorm:"type:int;not null;index:idx_yearbook_page,unique" json:"page_number"`
	OriginalPath string    `gorm:"type:varchar(255);not null" json:"original_path"`
	PreviewPath  string    `gorm:"type:varchar(255)" json:"preview_path"`
	Width        int       `gorm:"type:int" json:"width"`
	Height       int       `gorm:"type:int" json:"height"`
	Manifest     *JSON     `gorm:"type:json" json:"manifest,omitempty"`
	// scan metadata read from EXIF at ingestion, when present
	ScannerModel *string        `gorm:"type:varchar(255)" json:"scanner_model,omitempty"`
	ScannedAt    *time.Time     `gorm:"type:datetime" json:"scanned_at,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// FindPagesByYearbookID returns all pages of a yearbook in page order
func FindPagesByYearbookID(db *gorm.DB, yearbookID uint) ([]YearbookPage, error) {
	var pages []YearbookPage
	err := db.Where("yearbook_id = ?", yearbookID).Order("page_number ASC").Find(&pages).Error
	return pages, err
}
