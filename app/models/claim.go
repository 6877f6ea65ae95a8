package models

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// Claim states
const (
	ClaimStatusPending  = "pending"
	ClaimStatusApproved = "approved"
	ClaimStatusRejected = "rejected"
)

var (
	// ErrClaimTargetInvalid is returned when a claim does not reference
	// exactly one of a face or an OCR name.
	ErrClaimTargetInvalid = errors.New("claim must reference exactly one of page_face_id or page_name_ocr_id")
	// ErrClaimNotPending is returned when a moderator decision targets a
	// claim that already reached a terminal state.
	ErrClaimNotPending = errors.New("claim is not pending")
	// ErrTargetAlreadyClaimed is returned when an approval would overwrite
	// an existing claimed_by on the target. First approval wins.
	ErrTargetAlreadyClaimed = errors.New("target is already claimed by another user")
)

// Claim is a user's assertion that a detected face or recognized name is
// them. Exactly one target reference is set; moderators move it to a
// terminal state.
type Claim struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	ClaimantID      uint         `gorm:"index;not null" json:"claimant_id"`
	Claimant        *User        `gorm:"foreignKey:ClaimantID" json:"claimant,omitempty"`
	PageFaceID      *uint        `gorm:"index:idx_claim_face" json:"page_face_id,omitempty"`
	PageFace        *PageFace    `gorm:"foreignKey:PageFaceID" json:"page_face,omitempty"`
	PageNameOCRID   *uint        `gorm:"index:idx_claim_name" json:"page_name_ocr_id,omitempty"`
	PageNameOCR     *PageNameOCR `gorm:"foreignKey:PageNameOCRID" json:"page_name_ocr,omitempty"`
	Status          string       `gorm:"type:varchar(20);default:'pending';index" json:"status" validate:"oneof=pending approved rejected"`
	RejectionReason string       `gorm:"type:text" json:"rejection_reason,omitempty"`
	DecidedByID     *uint        `gorm:"index" json:"decided_by_id,omitempty"`
	DecidedBy       *User        `gorm:"foreignKey:DecidedByID" json:"decided_by,omitempty"`
	DecidedAt       *time.Time   `json:"decided_at,omitempty"`
	CreatedAt       time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// Validate checks struct tags plus the one-target invariant
func (c *Claim) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	return c.validateTarget()
}

func (c *Claim) validateTarget() error {
	hasFace := c.PageFaceID != nil
	hasName := c.PageNameOCRID != nil
	if hasFace == hasName {
		return ErrClaimTargetInvalid
	}
	return nil
}

// BeforeCreate enforces the exactly-one-target invariant at the write
// boundary, so a malformed claim can never land in the table.
func (c *Claim) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = ClaimStatusPending
	}
	return c.validateTarget()
}

// BeforeUpdate keeps the invariant on updates as well
func (c *Claim) BeforeUpdate(tx *gorm.DB) error {
	return c.validateTarget()
}
