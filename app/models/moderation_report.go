package models

import (
	"time"

	"gorm.io/gorm"
)

// ModerationReport states
const (
	ReportStatusOpen      = "open"
	ReportStatusInReview  = "in_review"
	ReportStatusResolved  = "resolved"
	ReportStatusDismissed = "dismissed"
)

// ModerationReport priorities
const (
	ReportPriorityLow    = "low"
	ReportPriorityNormal = "normal"
	ReportPriorityHigh   = "high"
	ReportPriorityUrgent = "urgent"
)

// Report target kinds
const (
	ReportTargetYearbook = "yearbook"
	ReportTargetPage     = "page"
	ReportTargetFace     = "face"
	ReportTargetClaim    = "claim"
)

// Moderation action kinds
const (
	ActionApprove = "approve"
	ActionWarn    = "warn"
	ActionDismiss = "dismiss"
)

type ModerationReport struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	ReporterID   *uint          `gorm:"index" json:"reporter_id,omitempty"`
	Reporter     *User          `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	TargetKind   string         `gorm:"type:varchar(20);not null;index" json:"target_kind"`
	TargetID     uint           `gorm:"not null;index" json:"target_id"`
	Reason       string         `gorm:"type:varchar(50);not null" json:"reason"`
	Details      string         `gorm:"type:text" json:"details"`
	Priority     string         `gorm:"type:varchar(20);default:'normal';index" json:"priority"`
	Status       string         `gorm:"type:varchar(20);default:'open';index" json:"status"`
	AssignedToID *uint          `gorm:"index" json:"assigned_to_id,omitempty"`
	AssignedTo   *User          `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	ReporterIPv4 string         `gorm:"type:varchar(15);default:null" json:"-"`
	ReporterIPv6 string         `gorm:"type:varchar(45);default:null" json:"-"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// ModerationAction is an append-only record of what a moderator did with
// a report. Actions are never updated or deleted.
type ModerationAction struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	ReportID    uint              `gorm:"index;not null" json:"report_id"`
	Report      *ModerationReport `gorm:"foreignKey:ReportID" json:"report,omitempty"`
	ModeratorID uint              `gorm:"index;not null" json:"moderator_id"`
	Moderator   *User             `gorm:"foreignKey:ModeratorID" json:"moderator,omitempty"`
	Action      string            `gorm:"type:varchar(20);not null" json:"action"`
	Note        string            `gorm:"type:text" json:"note"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// StatusAfterAction maps a recorded action to the report status it implies.
func StatusAfterAction(action string) string {
	switch action {
	case ActionApprove, ActionWarn:
		return ReportStatusResolved
	case ActionDismiss:
		return ReportStatusDismissed
	default:
		return ReportStatusInReview
	}
}
