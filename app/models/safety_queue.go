package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// SafetyQueueEntry states
const (
	SafetyStatusPending    = "pending"
	SafetyStatusProcessing = "processing"
	SafetyStatusClean      = "clean"
	SafetyStatusFlagged    = "flagged"
)

// Synthetic finding categories recorded by the scanner. Both count as
// unsafe; a failed or impossible scan is never dropped.
const (
	// SafetyFindingErrorCategory marks a page whose scan call failed.
	SafetyFindingErrorCategory = "scan_error"
	// SafetyFindingReviewCategory marks a page scanned without a
	// configured classifier; content goes to manual review instead of
	// being assumed safe.
	SafetyFindingReviewCategory = "manual_review_required"
)

// SafetyFinding is one per-page verdict detail from the safety scanner.
type SafetyFinding struct {
	PageNumber int     `json:"page_number"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Severity   string  `json:"severity"`
}

// SafetyQueueEntry tracks the safety scan of one yearbook. Created at
// ingestion, moved exactly once to a terminal state by the scanner.
type SafetyQueueEntry struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	YearbookID uint       `gorm:"uniqueIndex;not null" json:"yearbook_id"`
	Yearbook   *Yearbook  `gorm:"foreignKey:YearbookID" json:"yearbook,omitempty"`
	Status     string     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Findings   *JSON      `gorm:"type:json" json:"findings,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SetFindings serializes the finding list onto the entry
func (e *SafetyQueueEntry) SetFindings(findings []SafetyFinding) error {
	data, err := json.Marshal(findings)
	if err != nil {
		return err
	}
	raw := JSON(data)
	e.Findings = &raw
	return nil
}

// GetFindings deserializes the stored finding list
func (e *SafetyQueueEntry) GetFindings() ([]SafetyFinding, error) {
	if e.Findings == nil {
		return nil, nil
	}
	var findings []SafetyFinding
	if err := json.Unmarshal(*e.Findings, &findings); err != nil {
		return nil, err
	}
	return findings, nil
}

// FindSafetyEntryByYearbookID returns the scan record for a yearbook
func FindSafetyEntryByYearbookID(db *gorm.DB, yearbookID uint) (*SafetyQueueEntry, error) {
	var entry SafetyQueueEntry
	result := db.Where("yearbook_id = ?", yearbookID).First(&entry)
	return &entry, result.Error
}
