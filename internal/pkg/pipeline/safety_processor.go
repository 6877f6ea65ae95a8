package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/vision"
)

// Finding categories recorded by the scanner itself, in addition to what
// the classification service reports. Both count as unsafe.
const (
	findingSeverityHigh = "high"
)

// ProcessSafetyScan runs the content-safety stage for one yearbook.
// The yearbook is clean only if every page is clean; any flagged page or
// scan failure flags the whole yearbook, findings retained for review.
func (w *StageWorker) ProcessSafetyScan(ctx context.Context, payload *StageJobPayload) error {
	yearbook, err := w.loadYearbook(payload)
	if err != nil {
		return err
	}
	defer w.releaseLock(yearbook.ID, "safety_locked_at")

	if yearbook.Status != models.YearbookStatusPending {
		log.Infof("[SafetyScan] Yearbook %s already past safety scan (status=%s)", yearbook.UUID, yearbook.Status)
		return nil
	}

	entry, err := models.FindSafetyEntryByYearbookID(w.db, yearbook.ID)
	if err != nil {
		return fmt.Errorf("failed to load safety entry for yearbook %s: %w", yearbook.UUID, err)
	}

	now := time.Now()
	if err := w.db.Model(entry).Updates(map[string]interface{}{
		"status":     models.SafetyStatusProcessing,
		"started_at": now,
	}).Error; err != nil {
		return fmt.Errorf("failed to mark safety entry processing: %w", err)
	}

	_ = SetStage(yearbook.UUID, STAGE_SCANNING)

	pages, err := models.FindPagesByYearbookID(w.db, yearbook.ID)
	if err != nil {
		return fmt.Errorf("failed to load pages for yearbook %s: %w", yearbook.UUID, err)
	}

	var findings []models.SafetyFinding

	for _, page := range pages {
		if err := w.throttle.Wait(ctx); err != nil {
			return fmt.Errorf("safety scan cancelled: %w", err)
		}

		verdict, scanErr := w.scanPage(ctx, &page)
		if scanErr != nil {
			// A failed scan is recorded as an unsafe finding, never dropped.
			category := models.SafetyFindingErrorCategory
			if errors.Is(scanErr, vision.ErrNotConfigured) {
				// Fail closed: no classifier configured means manual review.
				category = models.SafetyFindingReviewCategory
			}
			log.Errorf("[SafetyScan] Page %d of yearbook %s failed: %v", page.PageNumber, yearbook.UUID, scanErr)
			findings = append(findings, models.SafetyFinding{
				PageNumber: page.PageNumber,
				Category:   category,
				Confidence: 1.0,
				Severity:   findingSeverityHigh,
			})
			continue
		}

		if !verdict.IsSafe {
			for _, flag := range verdict.Flags {
				findings = append(findings, models.SafetyFinding{
					PageNumber: page.PageNumber,
					Category:   flag.Category,
					Confidence: flag.Confidence,
					Severity:   flag.Severity,
				})
			}
			// A flagged verdict without detail still counts
			if len(verdict.Flags) == 0 {
				findings = append(findings, models.SafetyFinding{
					PageNumber: page.PageNumber,
					Category:   "unspecified",
					Confidence: 1.0,
					Severity:   findingSeverityHigh,
				})
			}
		}
	}

	clean := len(findings) == 0

	entryStatus := models.SafetyStatusClean
	yearbookStatus := models.YearbookStatusClean
	if !clean {
		entryStatus = models.SafetyStatusFlagged
		yearbookStatus = models.YearbookStatusFlagged
	}

	if err := entry.SetFindings(findings); err != nil {
		return fmt.Errorf("failed to serialize findings: %w", err)
	}
	finished := time.Now()
	if err := w.db.Model(entry).Updates(map[string]interface{}{
		"status":      entryStatus,
		"findings":    entry.Findings,
		"finished_at": finished,
	}).Error; err != nil {
		return fmt.Errorf("failed to store scan result: %w", err)
	}

	if err := yearbook.TransitionStatus(w.db, yearbookStatus); err != nil {
		return fmt.Errorf("failed to advance yearbook %s: %w", yearbook.UUID, err)
	}

	if clean {
		log.Infof("[SafetyScan] Yearbook %s clean (%d pages)", yearbook.UUID, len(pages))
		w.enqueueNext(JobTypeOCR, yearbook)
	} else {
		log.Warnf("[SafetyScan] Yearbook %s flagged with %d findings", yearbook.UUID, len(findings))
		_ = SetStage(yearbook.UUID, STAGE_FLAGGED)
	}

	return nil
}

// scanPage presigns the original and asks the classifier for a verdict
func (w *StageWorker) scanPage(ctx context.Context, page *models.YearbookPage) (*vision.SafetyVerdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, vision.DefaultRequestTimeout)
	defer cancel()

	imageURL, err := w.store.PresignGet(callCtx, w.store.OriginalsBucket(), page.OriginalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to presign page %d: %w", page.PageNumber, err)
	}

	return w.providers.Safety.Scan(callCtx, imageURL)
}
