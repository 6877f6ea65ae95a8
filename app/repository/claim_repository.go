package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/app/models"
)

// claimRepository implements the ClaimRepository interface
type claimRepository struct {
	db *gorm.DB
}

// NewClaimRepository creates a new claim repository instance
func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db}
}

// Create stores a new pending claim. The model hooks reject claims that
// do not reference exactly one target.
func (r *claimRepository) Create(claim *models.Claim) error {
	return r.db.Create(claim).Error
}

// GetByID retrieves a claim with its target rows preloaded
func (r *claimRepository) GetByID(id uint) (*models.Claim, error) {
	var claim models.Claim
	err := r.db.Preload("PageFace").Preload("PageNameOCR").First(&claim, id).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// ListByClaimant retrieves a user's own claims, newest first
func (r *claimRepository) ListByClaimant(claimantID uint, offset, limit int) ([]models.Claim, error) {
	var claims []models.Claim
	err := r.db.Where("claimant_id = ?", claimantID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&claims).Error
	return claims, err
}

// ListPending retrieves pending claims for the moderation queue, oldest
// first, with the total pending count.
func (r *claimRepository) ListPending(offset, limit int) ([]models.Claim, int64, error) {
	var total int64
	if err := r.db.Model(&models.Claim{}).Where("status = ?", models.ClaimStatusPending).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var claims []models.Claim
	err := r.db.Preload("PageFace").Preload("PageNameOCR").
		Where("status = ?", models.ClaimStatusPending).
		Order("created_at ASC").Offset(offset).Limit(limit).Find(&claims).Error
	return claims, total, err
}

// Approve moves a pending claim to approved and stamps the claimant onto
// the target row. The target write is conditional on claimed_by still
// being empty, so the first approval wins and later ones fail loudly.
func (r *claimRepository) Approve(claimID, moderatorID uint) (*models.Claim, error) {
	var approved *models.Claim
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var claim models.Claim
		if err := tx.First(&claim, claimID).Error; err != nil {
			return err
		}
		if claim.Status != models.ClaimStatusPending {
			return fmt.Errorf("%w: claim %d is %s", models.ErrClaimNotPending, claim.ID, claim.Status)
		}

		var res *gorm.DB
		switch {
		case claim.PageFaceID != nil:
			res = tx.Model(&models.PageFace{}).
				Where("id = ? AND claimed_by IS NULL", *claim.PageFaceID).
				Update("claimed_by", claim.ClaimantID)
		case claim.PageNameOCRID != nil:
			res = tx.Model(&models.PageNameOCR{}).
				Where("id = ? AND claimed_by IS NULL", *claim.PageNameOCRID).
				Update("claimed_by", claim.ClaimantID)
		default:
			return models.ErrClaimTargetInvalid
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrTargetAlreadyClaimed
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":        models.ClaimStatusApproved,
			"decided_by_id": moderatorID,
			"decided_at":    now,
		}
		if err := tx.Model(&models.Claim{}).Where("id = ?", claim.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := models.CreateNotification(tx, claim.ClaimantID, models.NotificationClaimApproved,
			"Your identity claim has been approved.", claim.ID); err != nil {
			return err
		}

		claim.Status = models.ClaimStatusApproved
		claim.DecidedByID = &moderatorID
		claim.DecidedAt = &now
		approved = &claim
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// Reject moves a pending claim to rejected, storing the moderator's
// reason verbatim. The target row is not touched.
func (r *claimRepository) Reject(claimID, moderatorID uint, reason string) (*models.Claim, error) {
	var rejected *models.Claim
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var claim models.Claim
		if err := tx.First(&claim, claimID).Error; err != nil {
			return err
		}
		if claim.Status != models.ClaimStatusPending {
			return fmt.Errorf("%w: claim %d is %s", models.ErrClaimNotPending, claim.ID, claim.Status)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":           models.ClaimStatusRejected,
			"rejection_reason": reason,
			"decided_by_id":    moderatorID,
			"decided_at":       now,
		}
		if err := tx.Model(&models.Claim{}).Where("id = ?", claim.ID).Updates(updates).Error; err != nil {
			return err
		}

		content := "Your identity claim has been rejected."
		if reason != "" {
			content = fmt.Sprintf("Your identity claim has been rejected: %s", reason)
		}
		if err := models.CreateNotification(tx, claim.ClaimantID, models.NotificationClaimRejected, content, claim.ID); err != nil {
			return err
		}

		claim.Status = models.ClaimStatusRejected
		claim.RejectionReason = reason
		claim.DecidedByID = &moderatorID
		claim.DecidedAt = &now
		rejected = &claim
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}
