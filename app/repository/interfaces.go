package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
}

// YearbookRepository defines the interface for yearbook-related database
// operations, including the per-stage claim used by the pipeline sweeps.
type YearbookRepository interface {
	Create(yearbook *models.Yearbook) error
	GetByID(id uint) (*models.Yearbook, error)
	GetByUUID(uuid string) (*models.Yearbook, error)
	GetByShareLink(shareLink string) (*models.Yearbook, error)
	ListBySchool(schoolID uint, offset, limit int) ([]models.Yearbook, error)
	Update(yearbook *models.Yearbook) error
	Quarantine(id uint) error

	// Stage claims. Each returns the oldest eligible yearbook after
	// atomically taking its stage lock, or nil when nothing is due.
	ClaimOldestForSafety(lease time.Duration) (*models.Yearbook, error)
	ClaimOldestForOCR(lease time.Duration) (*models.Yearbook, error)
	ClaimOldestForFaces(lease time.Duration) (*models.Yearbook, error)
	ClaimOldestForTiling(lease time.Duration) (*models.Yearbook, error)
}

// ClaimRepository defines the interface for identity-claim operations
type ClaimRepository interface {
	Create(claim *models.Claim) error
	GetByID(id uint) (*models.Claim, error)
	ListByClaimant(claimantID uint, offset, limit int) ([]models.Claim, error)
	ListPending(offset, limit int) ([]models.Claim, int64, error)
	Approve(claimID, moderatorID uint) (*models.Claim, error)
	Reject(claimID, moderatorID uint, reason string) (*models.Claim, error)
}

// ReportFilter narrows moderation report listings
type ReportFilter struct {
	Status   string
	Priority string
	Offset   int
	Limit    int
}

// ModerationRepository defines the interface for report and action operations
type ModerationRepository interface {
	CreateReport(report *models.ModerationReport) error
	GetReportByID(id uint) (*models.ModerationReport, error)
	ListReports(filter ReportFilter) ([]models.ModerationReport, int64, error)
	UpdateReport(report *models.ModerationReport) error
	BatchUpdateReports(ids []uint, status string, assignedToID *uint) (int64, error)
	RecordAction(reportID, moderatorID uint, action, note string) (*models.ModerationAction, error)
	ListActions(reportID uint) ([]models.ModerationAction, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User       UserRepository
	Yearbook   YearbookRepository
	Claim      ClaimRepository
	Moderation ModerationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:       NewUserRepository(db),
		Yearbook:   NewYearbookRepository(db),
		Claim:      NewClaimRepository(db),
		Moderation: NewModerationRepository(db),
	}
}
