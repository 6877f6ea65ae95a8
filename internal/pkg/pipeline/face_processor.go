package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/names"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/vision"
)

// ProcessFaceDetection runs face detection for one yearbook whose OCR
// pass is complete. Detected boxes arrive normalized and are converted
// to absolute pixels using the page dimensions captured at ingestion.
func (w *StageWorker) ProcessFaceDetection(ctx context.Context, payload *StageJobPayload) error {
	yearbook, err := w.loadYearbook(payload)
	if err != nil {
		return err
	}
	defer w.releaseLock(yearbook.ID, "face_locked_at")

	if !yearbook.OcrDone || yearbook.FaceDone {
		log.Infof("[FaceDetect] Yearbook %s not eligible (ocr_done=%t, face_done=%t)", yearbook.UUID, yearbook.OcrDone, yearbook.FaceDone)
		return nil
	}

	_ = SetStage(yearbook.UUID, STAGE_FACES)

	pages, err := models.FindPagesByYearbookID(w.db, yearbook.ID)
	if err != nil {
		return fmt.Errorf("failed to load pages for yearbook %s: %w", yearbook.UUID, err)
	}

	for _, page := range pages {
		if err := w.throttle.Wait(ctx); err != nil {
			return fmt.Errorf("face detection cancelled: %w", err)
		}

		if err := w.detectPageFaces(ctx, &page); err != nil {
			log.Errorf("[FaceDetect] Page %d of yearbook %s failed: %v", page.PageNumber, yearbook.UUID, err)
			continue
		}
	}

	if err := w.db.Model(&models.Yearbook{}).Where("id = ?", yearbook.ID).
		Update("face_done", true).Error; err != nil {
		return fmt.Errorf("failed to set face_done for yearbook %s: %w", yearbook.UUID, err)
	}

	log.Infof("[FaceDetect] Yearbook %s done (%d pages)", yearbook.UUID, len(pages))
	w.enqueueNext(JobTypeTiling, yearbook)
	return nil
}

// detectPageFaces detects and persists face regions for one page,
// attaching a weak name suggestion from the page's OCR text.
func (w *StageWorker) detectPageFaces(ctx context.Context, page *models.YearbookPage) error {
	callCtx, cancel := context.WithTimeout(ctx, vision.DefaultRequestTimeout)
	defer cancel()

	imageURL, err := w.store.PresignGet(callCtx, w.store.OriginalsBucket(), page.OriginalPath)
	if err != nil {
		return fmt.Errorf("failed to presign page %d: %w", page.PageNumber, err)
	}

	faces, err := w.providers.Faces.Detect(callCtx, imageURL)
	if err != nil {
		return fmt.Errorf("face detection failed: %w", err)
	}

	if page.Width <= 0 || page.Height <= 0 {
		return fmt.Errorf("page %d has no pixel dimensions; cannot convert boxes", page.PageNumber)
	}

	// Candidate names come from the OCR rows already stored for this page.
	suggestions := w.pageNameSuggestions(page.ID)

	if err := w.db.Where("page_id = ?", page.ID).Delete(&models.PageFace{}).Error; err != nil {
		return fmt.Errorf("failed to clear previous face rows: %w", err)
	}

	for i, face := range faces {
		x, y, fw, fh := vision.ToAbsolute(face.X, face.Y, face.Width, face.Height, page.Width, page.Height)
		row := models.PageFace{
			PageID:     page.ID,
			X:          x,
			Y:          y,
			Width:      fw,
			Height:     fh,
			Confidence: face.Confidence,
		}
		// Advisory only: pair faces with name candidates in page order.
		// There is no confidence linking a specific face to a specific name.
		if i < len(suggestions) {
			suggestion := suggestions[i]
			row.SuggestedName = &suggestion
		}
		if err := w.db.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to store face row: %w", err)
		}
	}

	return nil
}

// pageNameSuggestions runs the proper-name heuristic over a page's OCR text
func (w *StageWorker) pageNameSuggestions(pageID uint) []string {
	var rows []models.PageNameOCR
	if err := w.db.Where("page_id = ?", pageID).Order("y ASC, x ASC").Find(&rows).Error; err != nil {
		log.Errorf("[FaceDetect] Failed to load OCR rows for page %d: %v", pageID, err)
		return nil
	}

	var lines []string
	for _, row := range rows {
		lines = append(lines, row.Text)
	}
	return names.SuggestFromText(strings.Join(lines, "\n"))
}
