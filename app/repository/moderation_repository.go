package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/app/models"
)

// moderationRepository implements the ModerationRepository interface
type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository creates a new moderation repository instance
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

// CreateReport stores a new report in the open state
func (r *moderationRepository) CreateReport(report *models.ModerationReport) error {
	return r.db.Create(report).Error
}

// GetReportByID retrieves a report by its ID
func (r *moderationRepository) GetReportByID(id uint) (*models.ModerationReport, error) {
	var report models.ModerationReport
	err := r.db.Preload("AssignedTo").First(&report, id).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ListReports retrieves reports matching the filter with the total match
// count for pagination. Urgent work floats to the top.
func (r *moderationRepository) ListReports(filter ReportFilter) ([]models.ModerationReport, int64, error) {
	query := r.db.Model(&models.ModerationReport{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var reports []models.ModerationReport
	err := query.
		Order("CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END").
		Order("created_at ASC").
		Offset(filter.Offset).Limit(limit).
		Find(&reports).Error
	return reports, total, err
}

// UpdateReport updates an existing report
func (r *moderationRepository) UpdateReport(report *models.ModerationReport) error {
	return r.db.Save(report).Error
}

// BatchUpdateReports applies a status and optional assignee to many
// reports at once, returning how many rows changed.
func (r *moderationRepository) BatchUpdateReports(ids []uint, status string, assignedToID *uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]interface{}{}
	if status != "" {
		updates["status"] = status
		if status == models.ReportStatusResolved || status == models.ReportStatusDismissed {
			updates["resolved_at"] = time.Now()
		}
	}
	if assignedToID != nil {
		updates["assigned_to_id"] = *assignedToID
	}
	if len(updates) == 0 {
		return 0, nil
	}
	res := r.db.Model(&models.ModerationReport{}).Where("id IN ?", ids).Updates(updates)
	return res.RowsAffected, res.Error
}

// RecordAction appends a moderator action and advances the report status
// it implies in the same transaction.
func (r *moderationRepository) RecordAction(reportID, moderatorID uint, action, note string) (*models.ModerationAction, error) {
	entry := models.ModerationAction{
		ReportID:    reportID,
		ModeratorID: moderatorID,
		Action:      action,
		Note:        note,
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var report models.ModerationReport
		if err := tx.First(&report, reportID).Error; err != nil {
			return err
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		status := models.StatusAfterAction(action)
		updates := map[string]interface{}{"status": status}
		if status == models.ReportStatusResolved || status == models.ReportStatusDismissed {
			updates["resolved_at"] = time.Now()
		}
		return tx.Model(&models.ModerationReport{}).Where("id = ?", reportID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListActions returns a report's action log in the order it was written
func (r *moderationRepository) ListActions(reportID uint) ([]models.ModerationAction, error) {
	var actions []models.ModerationAction
	err := r.db.Where("report_id = ?", reportID).Order("created_at ASC").Find(&actions).Error
	return actions, err
}
