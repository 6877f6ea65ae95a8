package pipeline

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/vision"
)

// ProcessOCR runs text extraction for one clean yearbook. A single
// page's failure is logged and skipped; the stage completes for the
// remaining pages. Recognized boxes are stored as absolute pixels.
func (w *StageWorker) ProcessOCR(ctx context.Context, payload *StageJobPayload) error {
	yearbook, err := w.loadYearbook(payload)
	if err != nil {
		return err
	}
	defer w.releaseLock(yearbook.ID, "ocr_locked_at")

	if yearbook.Status != models.YearbookStatusClean || yearbook.OcrDone {
		log.Infof("[OCR] Yearbook %s not eligible (status=%s, ocr_done=%t)", yearbook.UUID, yearbook.Status, yearbook.OcrDone)
		return nil
	}

	_ = SetStage(yearbook.UUID, STAGE_OCR)

	pages, err := models.FindPagesByYearbookID(w.db, yearbook.ID)
	if err != nil {
		return fmt.Errorf("failed to load pages for yearbook %s: %w", yearbook.UUID, err)
	}

	for _, page := range pages {
		if err := w.throttle.Wait(ctx); err != nil {
			return fmt.Errorf("ocr cancelled: %w", err)
		}

		if err := w.ocrPage(ctx, &page); err != nil {
			log.Errorf("[OCR] Page %d of yearbook %s failed: %v", page.PageNumber, yearbook.UUID, err)
			continue
		}
	}

	// Stage flags only ever move forward; a restarted stage re-runs pages
	// but never resets the flag.
	if err := w.db.Model(&models.Yearbook{}).Where("id = ?", yearbook.ID).
		Update("ocr_done", true).Error; err != nil {
		return fmt.Errorf("failed to set ocr_done for yearbook %s: %w", yearbook.UUID, err)
	}

	log.Infof("[OCR] Yearbook %s done (%d pages)", yearbook.UUID, len(pages))
	w.enqueueNext(JobTypeFaceDetection, yearbook)
	return nil
}

// ocrPage extracts and persists text runs for one page. Existing rows
// for the page are replaced so a re-run after a crash stays idempotent.
func (w *StageWorker) ocrPage(ctx context.Context, page *models.YearbookPage) error {
	callCtx, cancel := context.WithTimeout(ctx, vision.DefaultRequestTimeout)
	defer cancel()

	imageURL, err := w.store.PresignGet(callCtx, w.store.OriginalsBucket(), page.OriginalPath)
	if err != nil {
		return fmt.Errorf("failed to presign page %d: %w", page.PageNumber, err)
	}

	result, err := w.providers.OCR.Recognize(callCtx, imageURL)
	if err != nil {
		return fmt.Errorf("text recognition failed: %w", err)
	}

	if page.Width <= 0 || page.Height <= 0 {
		return fmt.Errorf("page %d has no pixel dimensions; cannot convert boxes", page.PageNumber)
	}

	if err := w.db.Where("page_id = ?", page.ID).Delete(&models.PageNameOCR{}).Error; err != nil {
		return fmt.Errorf("failed to clear previous OCR rows: %w", err)
	}

	for _, box := range result.Boxes {
		x, y, bw, bh := vision.ToAbsolute(box.X, box.Y, box.Width, box.Height, page.Width, page.Height)
		row := models.PageNameOCR{
			PageID: page.ID,
			Text:   box.Text,
			X:      x,
			Y:      y,
			Width:  bw,
			Height: bh,
		}
		if err := w.db.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to store OCR row: %w", err)
		}
	}

	return nil
}
