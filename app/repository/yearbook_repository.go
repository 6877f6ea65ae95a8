package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/app/models"
)

// yearbookRepository implements the YearbookRepository interface
type yearbookRepository struct {
	db *gorm.DB
}

// NewYearbookRepository creates a new yearbook repository instance
func NewYearbookRepository(db *gorm.DB) YearbookRepository {
	return &yearbookRepository{db: db}
}

// Create creates a new yearbook in the database
func (r *yearbookRepository) Create(yearbook *models.Yearbook) error {
	return r.db.Create(yearbook).Error
}

// GetByID retrieves a yearbook by its ID
func (r *yearbookRepository) GetByID(id uint) (*models.Yearbook, error) {
	var yearbook models.Yearbook
	err := r.db.Preload("School").First(&yearbook, id).Error
	if err != nil {
		return nil, err
	}
	return &yearbook, nil
}

// GetByUUID retrieves a yearbook by its public UUID
func (r *yearbookRepository) GetByUUID(uuid string) (*models.Yearbook, error) {
	var yearbook models.Yearbook
	err := r.db.Preload("School").Where("uuid = ?", uuid).First(&yearbook).Error
	if err != nil {
		return nil, err
	}
	return &yearbook, nil
}

// GetByShareLink retrieves a yearbook by its share slug
func (r *yearbookRepository) GetByShareLink(shareLink string) (*models.Yearbook, error) {
	var yearbook models.Yearbook
	err := r.db.Preload("School").Where("share_link = ?", shareLink).First(&yearbook).Error
	if err != nil {
		return nil, err
	}
	return &yearbook, nil
}

// ListBySchool retrieves ready yearbooks for one school, newest class year first
func (r *yearbookRepository) ListBySchool(schoolID uint, offset, limit int) ([]models.Yearbook, error) {
	var yearbooks []models.Yearbook
	err := r.db.Where("school_id = ? AND status = ?", schoolID, models.YearbookStatusReady).
		Order("year DESC").Offset(offset).Limit(limit).Find(&yearbooks).Error
	return yearbooks, err
}

// Update updates an existing yearbook in the database
func (r *yearbookRepository) Update(yearbook *models.Yearbook) error {
	return r.db.Save(yearbook).Error
}

// Quarantine forces a yearbook out of circulation regardless of its
// current status. This is the one moderator override that bypasses the
// normal transition table, so it writes the status column directly.
func (r *yearbookRepository) Quarantine(id uint) error {
	return r.db.Model(&models.Yearbook{}).Where("id = ?", id).
		Update("status", models.YearbookStatusQuarantined).Error
}

// ClaimOldestForSafety claims the oldest yearbook still awaiting its
// safety scan.
func (r *yearbookRepository) ClaimOldestForSafety(lease time.Duration) (*models.Yearbook, error) {
	return r.claimOldest("status = ?", []interface{}{models.YearbookStatusPending}, "safety_locked_at", lease)
}

// ClaimOldestForOCR claims the oldest clean yearbook without OCR results.
func (r *yearbookRepository) ClaimOldestForOCR(lease time.Duration) (*models.Yearbook, error) {
	return r.claimOldest("status = ? AND ocr_done = ?", []interface{}{models.YearbookStatusClean, false}, "ocr_locked_at", lease)
}

// ClaimOldestForFaces claims the oldest yearbook with OCR done but no
// face detection results.
func (r *yearbookRepository) ClaimOldestForFaces(lease time.Duration) (*models.Yearbook, error) {
	return r.claimOldest("status = ? AND ocr_done = ? AND face_done = ?", []interface{}{models.YearbookStatusClean, true, false}, "face_locked_at", lease)
}

// ClaimOldestForTiling claims the oldest yearbook that finished face
// detection but has not been tiled into the ready state.
func (r *yearbookRepository) ClaimOldestForTiling(lease time.Duration) (*models.Yearbook, error) {
	return r.claimOldest("status = ? AND face_done = ?", []interface{}{models.YearbookStatusClean, true}, "tile_locked_at", lease)
}

// claimOldest is a two-step claim: select the oldest candidate whose
// stage lock is free or expired, then take the lock with a conditional
// update. Losing the conditional update means another sweeper got there
// first; that is not an error, there is simply nothing to do.
func (r *yearbookRepository) claimOldest(where string, args []interface{}, lockColumn string, lease time.Duration) (*models.Yearbook, error) {
	now := time.Now()
	cutoff := now.Add(-lease)

	var candidate models.Yearbook
	err := r.db.Where(where, args...).
		Where(lockColumn+" IS NULL OR "+lockColumn+" < ?", cutoff).
		Order("created_at ASC").
		First(&candidate).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	res := r.db.Model(&models.Yearbook{}).
		Where("id = ?", candidate.ID).
		Where(lockColumn+" IS NULL OR "+lockColumn+" < ?", cutoff).
		Update(lockColumn, now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race to a concurrent sweeper.
		return nil, nil
	}

	return &candidate, nil
}
