package controllers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/app/repository"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/database"
	metrics "github.com/AlumniConnect/YearbookConnect/internal/pkg/metrics/counter"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/pipeline"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/scanmeta"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/storage"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/upload"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/usercontext"
)

const (
	maxPagesPerYearbook = 500
	maxPageBytes        = 50 << 20
	minClassYear        = 1900
)

// pageStore is the slice of the storage client ingestion needs.
type pageStore interface {
	Upload(ctx context.Context, bucket, objectKey string, body io.Reader, size int64) error
	OriginalsBucket() string
}

var ingestStore pageStore

func getIngestStore() pageStore {
	if ingestStore != nil {
		return ingestStore
	}
	return storage.GetClient()
}

// SetIngestStoreForTest overrides the ingestion storage backend
func SetIngestStoreForTest(store pageStore) {
	ingestStore = store
}

// stageEnqueuer lets tests intercept the job handoff
var stageEnqueuer func(jobType pipeline.JobType, payload pipeline.StageJobPayload) error

func enqueueStage(jobType pipeline.JobType, payload pipeline.StageJobPayload) error {
	if stageEnqueuer != nil {
		return stageEnqueuer(jobType, payload)
	}
	_, err := pipeline.GetManager().GetQueue().EnqueueStage(jobType, payload)
	return err
}

// SetStageEnqueuerForTest overrides the job queue handoff
func SetStageEnqueuerForTest(fn func(pipeline.JobType, pipeline.StageJobPayload) error) {
	stageEnqueuer = fn
}

// HandleCreateYearbook accepts a multipart yearbook upload: form fields
// plus the scanned pages in order. Pages are validated, stored to the
// originals bucket, and the safety scan is queued.
func HandleCreateYearbook(c *fiber.Ctx) error {
	user := usercontext.GetUserContext(c)
	if !user.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	schoolID, err := strconv.ParseUint(c.FormValue("school_id"), 10, 64)
	if err != nil || schoolID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "school_id is required"})
	}
	year, err := strconv.Atoi(c.FormValue("year"))
	if err != nil || year < minClassYear || year > time.Now().Year() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("year must be between %d and %d", minClassYear, time.Now().Year())})
	}

	visibility := c.FormValue("visibility", models.VisibilityAlumniOnly)
	if visibility != models.VisibilityAlumniOnly && visibility != models.VisibilityPublic {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "visibility must be alumni_only or public"})
	}

	db := database.GetDB()
	var school models.School
	if err := db.First(&school, schoolID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown school"})
		}
		log.Errorf("[Yearbook] School lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "multipart form expected"})
	}
	files := form.File["pages"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "at least one page is required"})
	}
	if len(files) > maxPagesPerYearbook {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("at most %d pages per yearbook", maxPagesPerYearbook)})
	}

	yearbook := models.Yearbook{
		SchoolID:   uint(schoolID),
		UploaderID: user.UserID,
		Title:      strings.TrimSpace(c.FormValue("title")),
		Year:       year,
		Visibility: visibility,
		PageCount:  len(files),
	}
	if err := db.Create(&yearbook).Error; err != nil {
		log.Errorf("[Yearbook] Failed to create yearbook: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	yearbook.StoragePath = fmt.Sprintf("yearbooks/%s", yearbook.UUID)
	if err := db.Model(&models.Yearbook{}).Where("id = ?", yearbook.ID).
		Update("storage_path", yearbook.StoragePath).Error; err != nil {
		log.Errorf("[Yearbook] Failed to set storage path: %v", err)
	}

	store := getIngestStore()
	for i, fileHeader := range files {
		pageNumber := i + 1
		data, err := readMultipartFile(fileHeader)
		if err != nil {
			cleanupYearbook(db, &yearbook)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("page %d: %v", pageNumber, err)})
		}

		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		if _, err := upload.ValidatePageBySniff(fileHeader.Filename, head); err != nil {
			cleanupYearbook(db, &yearbook)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("page %d: %v", pageNumber, err)})
		}

		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			cleanupYearbook(db, &yearbook)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("page %d: unreadable image", pageNumber)})
		}

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		objectKey := storage.OriginalKey(yearbook.UUID, pageNumber, ext)
		if err := store.Upload(c.Context(), store.OriginalsBucket(), objectKey, bytes.NewReader(data), int64(len(data))); err != nil {
			log.Errorf("[Yearbook] Upload of page %d failed: %v", pageNumber, err)
			cleanupYearbook(db, &yearbook)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "page upload failed"})
		}

		page := models.YearbookPage{
			YearbookID:   yearbook.ID,
			PageNumber:   pageNumber,
			OriginalPath: objectKey,
			Width:        cfg.Width,
			Height:       cfg.Height,
		}
		scanmeta.Extract(&page, data)
		if err := db.Create(&page).Error; err != nil {
			log.Errorf("[Yearbook] Failed to store page %d: %v", pageNumber, err)
			cleanupYearbook(db, &yearbook)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
		}
	}

	entry := models.SafetyQueueEntry{YearbookID: yearbook.ID}
	if err := db.Create(&entry).Error; err != nil {
		log.Errorf("[Yearbook] Failed to create safety queue entry: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	payload := pipeline.StageJobPayload{YearbookID: yearbook.ID, YearbookUUID: yearbook.UUID}
	if err := enqueueStage(pipeline.JobTypeSafetyScan, payload); err != nil {
		// The stage sweep picks the yearbook up from the database later.
		log.Errorf("[Yearbook] Failed to enqueue safety scan for %s: %v", yearbook.UUID, err)
	}
	_ = pipeline.SetStage(yearbook.UUID, pipeline.STAGE_QUEUED)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"uuid":       yearbook.UUID,
		"share_link": yearbook.ShareLink,
		"status":     yearbook.Status,
		"page_count": yearbook.PageCount,
	})
}

// HandleYearbookStatus reports where a yearbook sits in the pipeline.
// The Redis stage cache answers the hot path; the database is the
// fallback for evicted entries.
func HandleYearbookStatus(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	if uuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "uuid missing"})
	}

	yearbook, err := repository.GetGlobalRepositories().Yearbook.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		log.Errorf("[Yearbook] Status lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	stage, err := pipeline.GetStage(uuid)
	if err != nil || stage == "" {
		stage = stageFromStatus(yearbook)
	}

	return c.JSON(fiber.Map{
		"uuid":      yearbook.UUID,
		"status":    yearbook.Status,
		"stage":     stage,
		"ocr_done":  yearbook.OcrDone,
		"face_done": yearbook.FaceDone,
	})
}

// stageFromStatus reconstructs the coarse stage from persistent state
// when the cache entry has expired.
func stageFromStatus(yearbook *models.Yearbook) string {
	switch yearbook.Status {
	case models.YearbookStatusReady:
		return pipeline.STAGE_READY
	case models.YearbookStatusFlagged, models.YearbookStatusQuarantined:
		return pipeline.STAGE_FLAGGED
	case models.YearbookStatusClean:
		switch {
		case yearbook.FaceDone:
			return pipeline.STAGE_TILING
		case yearbook.OcrDone:
			return pipeline.STAGE_FACES
		default:
			return pipeline.STAGE_OCR
		}
	default:
		return pipeline.STAGE_QUEUED
	}
}

// HandleGetYearbook returns yearbook metadata with its pages. Each view
// bumps the counter; the flush worker batches them into the database.
func HandleGetYearbook(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	if uuid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "uuid missing"})
	}

	yearbook, err := repository.GetGlobalRepositories().Yearbook.GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		log.Errorf("[Yearbook] Lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if yearbook.Status == models.YearbookStatusQuarantined {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": "this yearbook has been removed"})
	}

	pages, err := models.FindPagesByYearbookID(database.GetDB(), yearbook.ID)
	if err != nil {
		log.Errorf("[Yearbook] Failed to load pages: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if err := metrics.AddYearbookView(yearbook.ID); err != nil {
		log.Warnf("[Yearbook] View counter for %s failed: %v", yearbook.UUID, err)
	}

	return c.JSON(fiber.Map{
		"yearbook": yearbook,
		"pages":    pages,
	})
}

func readMultipartFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, errors.New("could not open uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPageBytes+1))
	if err != nil {
		return nil, errors.New("could not read uploaded file")
	}
	if len(data) > maxPageBytes {
		return nil, fmt.Errorf("page exceeds the %d MB limit", maxPageBytes>>20)
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	return data, nil
}

// cleanupYearbook removes a half-ingested yearbook so a failed upload
// leaves nothing behind. Originals already pushed to storage are left
// for the bucket lifecycle policy.
func cleanupYearbook(db *gorm.DB, yearbook *models.Yearbook) {
	if err := db.Where("yearbook_id = ?", yearbook.ID).Delete(&models.YearbookPage{}).Error; err != nil {
		log.Errorf("[Yearbook] Cleanup of pages for %s failed: %v", yearbook.UUID, err)
	}
	if err := db.Delete(yearbook).Error; err != nil {
		log.Errorf("[Yearbook] Cleanup of yearbook %s failed: %v", yearbook.UUID, err)
	}
}
