package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/internal/pkg/shortener"
)

// JSON stores raw JSON documents in a database column
type JSON json.RawMessage

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON("{}")
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	*j = JSON(bytes)
	return nil
}

// MarshalJSON implements the json.Marshaler interface
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = JSON(data)
	return nil
}

// Yearbook processing states
const (
	YearbookStatusPending     = "pending"
	YearbookStatusClean       = "clean"
	YearbookStatusFlagged     = "flagged"
	YearbookStatusReady       = "ready"
	YearbookStatusQuarantined = "quarantined"
)

// Yearbook visibility
const (
	VisibilityAlumniOnly = "alumni_only"
	VisibilityPublic     = "public"
)

// ErrInvalidTransition is returned when a status change would move the
// yearbook backwards in its lifecycle.
var ErrInvalidTransition = errors.New("invalid yearbook status transition")

// legalTransitions encodes the forward-only lifecycle. Quarantine is a
// moderator override reachable from any non-terminal state.
var legalTransitions = map[string][]string{
	YearbookStatusPending: {YearbookStatusClean, YearbookStatusFlagged},
	YearbookStatusClean:   {YearbookStatusReady, YearbookStatusQuarantined},
	YearbookStatusFlagged: {YearbookStatusQuarantined},
	YearbookStatusReady:   {YearbookStatusQuarantined},
}

// CanTransitionYearbookStatus reports whether moving from one processing
// status to another is legal.
func CanTransitionYearbookStatus(from, to string) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Yearbook struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	UUID        string  `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	SchoolID    uint    `gorm:"index;not null" json:"school_id"`
	School      *School `gorm:"foreignKey:SchoolID" json:"school,omitempty"`
	UploaderID  uint    `gorm:"index;not null" json:"uploader_id"`
	Uploader    *User   `gorm:"foreignKey:UploaderID" json:"uploader,omitempty"`
	Title       string  `gorm:"type:varchar(255)" json:"title"`
	Year        int     `gorm:"type:int;not null" json:"year"`
	StoragePath string  `gorm:"type:varchar(255);not null" json:"storage_path"`
	Status      string  `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	OcrDone     bool    `gorm:"default:false" json:"ocr_done"`
	FaceDone    bool    `gorm:"default:false" json:"face_done"`
	Visibility  string  `gorm:"type:varchar(20);default:'alumni_only'" json:"visibility"`
	ShareLink   string  `gorm:"type:varchar(255) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex" json:"share_link"`
	PageCount   int     `gorm:"type:int;default:0" json:"page_count"`
	ViewCount   int     `gorm:"default:0" json:"view_count"`
	// Stage leases: set when a sweeper claims the yearbook for a stage so
	// that two worker instances never pick the same row.
	SafetyLockedAt *time.Time `gorm:"type:datetime;default:null" json:"-"`
	OcrLockedAt    *time.Time `gorm:"type:datetime;default:null" json:"-"`
	FaceLockedAt   *time.Time `gorm:"type:datetime;default:null" json:"-"`
	TileLockedAt   *time.Time `gorm:"type:datetime;default:null" json:"-"`
	// relations
	Pages     []YearbookPage `gorm:"foreignKey:YearbookID" json:"pages,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate generates identifiers before the row is written
func (y *Yearbook) BeforeCreate(tx *gorm.DB) error {
	if y.UUID == "" {
		y.UUID = uuid.New().String()
	}
	if y.ShareLink == "" {
		slug, err := shortener.GenerateSecureSlug(10)
		if err != nil {
			return err
		}
		y.ShareLink = slug
	}
	if y.Status == "" {
		y.Status = YearbookStatusPending
	}
	return nil
}

// IsPublic reports whether the yearbook is visible beyond verified alumni.
func (y *Yearbook) IsPublic() bool {
	return y.Visibility == VisibilityPublic
}

// WatermarkText builds the mark applied to public tile renditions.
func (y *Yearbook) WatermarkText() string {
	name := ""
	if y.School != nil {
		name = y.School.Name
	}
	return fmt.Sprintf("%s · %d", name, y.Year)
}

// TransitionStatus applies a guarded status change. Stage flags are never
// reset here; the update touches only the status column.
func (y *Yearbook) TransitionStatus(db *gorm.DB, to string) error {
	if !CanTransitionYearbookStatus(y.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, y.Status, to)
	}
	// Conditional update so a concurrent writer cannot race us past the
	// state machine: the row must still be in the status we saw.
	res := db.Model(&Yearbook{}).
		Where("id = ? AND status = ?", y.ID, y.Status).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: yearbook %d no longer in status %s", ErrInvalidTransition, y.ID, y.Status)
	}
	y.Status = to
	return nil
}

// FindYearbookByUUID looks up a yearbook by its public UUID
func FindYearbookByUUID(db *gorm.DB, uuid string) (*Yearbook, error) {
	var yearbook Yearbook
	result := db.Where("uuid = ?", uuid).First(&yearbook)
	return &yearbook, result.Error
}
