package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/storage"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/tiler"
)

// downloadTimeout bounds a single original fetch from object storage.
const downloadTimeout = 2 * time.Minute

// ProcessTiling is the final stage. It builds the deep-zoom manifest and
// WebP preview for every page, then moves the yearbook to ready and
// notifies the uploader. A page that cannot be decoded is skipped; the
// viewer falls back to the original for pages without a manifest.
func (w *StageWorker) ProcessTiling(ctx context.Context, payload *StageJobPayload) error {
	yearbook, err := w.loadYearbook(payload)
	if err != nil {
		return err
	}
	defer w.releaseLock(yearbook.ID, "tile_locked_at")

	if yearbook.Status != models.YearbookStatusClean || !yearbook.FaceDone {
		log.Infof("[Tiler] Yearbook %s not eligible (status=%s, face_done=%t)", yearbook.UUID, yearbook.Status, yearbook.FaceDone)
		return nil
	}

	_ = SetStage(yearbook.UUID, STAGE_TILING)

	pages, err := models.FindPagesByYearbookID(w.db, yearbook.ID)
	if err != nil {
		return fmt.Errorf("failed to load pages for yearbook %s: %w", yearbook.UUID, err)
	}

	// Watermarks mark public renditions only; alumni-visible copies stay clean.
	watermark := ""
	if yearbook.IsPublic() {
		watermark = yearbook.WatermarkText()
	}

	for _, page := range pages {
		if err := w.throttle.Wait(ctx); err != nil {
			return fmt.Errorf("tiling cancelled: %w", err)
		}

		if err := w.tilePage(ctx, yearbook, &page, watermark); err != nil {
			log.Errorf("[Tiler] Page %d of yearbook %s failed: %v", page.PageNumber, yearbook.UUID, err)
			continue
		}
	}

	if err := yearbook.TransitionStatus(w.db, models.YearbookStatusReady); err != nil {
		return fmt.Errorf("failed to mark yearbook %s ready: %w", yearbook.UUID, err)
	}

	_ = SetStage(yearbook.UUID, STAGE_READY)

	content := fmt.Sprintf("Your yearbook for class year %d has finished processing and is now available.", yearbook.Year)
	if err := w.notifier.Notify(yearbook.UploaderID, models.NotificationProcessingComplete, content, yearbook.ID); err != nil {
		log.Errorf("[Tiler] Completion notification for yearbook %s failed: %v", yearbook.UUID, err)
	}

	log.Infof("[Tiler] Yearbook %s ready (%d pages)", yearbook.UUID, len(pages))
	return nil
}

func (w *StageWorker) tilePage(ctx context.Context, yearbook *models.Yearbook, page *models.YearbookPage, watermark string) error {
	callCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	data, err := w.store.Download(callCtx, w.store.OriginalsBucket(), page.OriginalPath)
	if err != nil {
		return fmt.Errorf("failed to download original: %w", err)
	}

	img, err := tiler.DecodePage(data)
	if err != nil {
		return fmt.Errorf("failed to decode page image: %w", err)
	}

	bounds := img.Bounds()
	manifest, err := tiler.BuildManifest(bounds.Dx(), bounds.Dy(), watermark)
	if err != nil {
		return fmt.Errorf("failed to build tile manifest: %w", err)
	}

	preview, err := tiler.RenderPreview(img)
	if err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}

	previewKey := storage.PreviewKey(yearbook.UUID, page.PageNumber)
	if err := w.store.UploadBytes(callCtx, w.store.PreviewsBucket(), previewKey, preview); err != nil {
		return fmt.Errorf("failed to upload preview: %w", err)
	}

	raw, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	manifestJSON := models.JSON(raw)

	updates := map[string]interface{}{
		"manifest":     manifestJSON,
		"preview_path": previewKey,
		"width":        bounds.Dx(),
		"height":       bounds.Dy(),
	}
	if err := w.db.Model(&models.YearbookPage{}).Where("id = ?", page.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to store manifest for page %d: %w", page.PageNumber, err)
	}

	return nil
}
