package pipeline

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/mail"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/vision"
)

// ObjectStore is the slice of the storage client the pipeline needs.
// Kept narrow so stage tests can run against an in-memory fake.
type ObjectStore interface {
	PresignGet(ctx context.Context, bucket, objectKey string) (string, error)
	Download(ctx context.Context, bucket, objectKey string) ([]byte, error)
	UploadBytes(ctx context.Context, bucket, objectKey string, data []byte) error
	OriginalsBucket() string
	PreviewsBucket() string
}

// Enqueuer hands a follow-up stage job to the queue. The queue itself
// implements it; tests substitute a recorder.
type Enqueuer interface {
	EnqueueStage(jobType JobType, payload StageJobPayload) (*Job, error)
}

// Notifier delivers a user notification at the end of the pipeline and
// on claim decisions.
type Notifier interface {
	Notify(userID uint, kind string, content string, referenceID uint) error
}

// DBNotifier persists notifications and sends a best-effort email copy.
type DBNotifier struct {
	DB *gorm.DB
}

// Notify implements Notifier
func (n *DBNotifier) Notify(userID uint, kind string, content string, referenceID uint) error {
	if err := models.CreateNotification(n.DB, userID, kind, content, referenceID); err != nil {
		return err
	}

	// Email delivery is best-effort; a down SMTP relay never fails the stage.
	var user models.User
	if err := n.DB.First(&user, userID).Error; err == nil && user.Email != "" {
		if err := mail.SendMail(user.Email, "YearbookConnect", content); err != nil {
			log.Warnf("[Pipeline] Email notification to user %d failed: %v", userID, err)
		}
	}
	return nil
}

// StageWorker executes the four pipeline stages for one yearbook at a
// time. Pages are processed sequentially; the throttle paces calls to
// external services.
type StageWorker struct {
	db        *gorm.DB
	store     ObjectStore
	providers *vision.Providers
	throttle  *Throttle
	notifier  Notifier
	enqueuer  Enqueuer
}

// NewStageWorker wires a worker with its collaborators
func NewStageWorker(db *gorm.DB, store ObjectStore, providers *vision.Providers, throttle *Throttle, notifier Notifier) *StageWorker {
	return &StageWorker{
		db:        db,
		store:     store,
		providers: providers,
		throttle:  throttle,
		notifier:  notifier,
	}
}

// SetEnqueuer attaches the queue used for stage fan-out. Set after the
// queue is constructed because the queue also holds the worker.
func (w *StageWorker) SetEnqueuer(e Enqueuer) {
	w.enqueuer = e
}

// loadYearbook fetches the yearbook with its school for a stage run
func (w *StageWorker) loadYearbook(payload *StageJobPayload) (*models.Yearbook, error) {
	var yearbook models.Yearbook
	if err := w.db.Preload("School").Where("uuid = ?", payload.YearbookUUID).First(&yearbook).Error; err != nil {
		return nil, fmt.Errorf("failed to find yearbook %s: %w", payload.YearbookUUID, err)
	}
	return &yearbook, nil
}

// enqueueNext fans out the follow-up stage for a yearbook
func (w *StageWorker) enqueueNext(jobType JobType, yearbook *models.Yearbook) {
	if w.enqueuer == nil {
		return
	}
	payload := StageJobPayload{YearbookID: yearbook.ID, YearbookUUID: yearbook.UUID}
	if _, err := w.enqueuer.EnqueueStage(jobType, payload); err != nil {
		// The DB sweep will pick the yearbook up again; fan-out is an optimization.
		log.Errorf("[Pipeline] Failed to enqueue %s for yearbook %s: %v", jobType, yearbook.UUID, err)
	}
}

// releaseLock clears a stage lease column
func (w *StageWorker) releaseLock(yearbookID uint, lockColumn string) {
	if err := w.db.Model(&models.Yearbook{}).Where("id = ?", yearbookID).
		Update(lockColumn, nil).Error; err != nil {
		log.Errorf("[Pipeline] Failed to release %s for yearbook %d: %v", lockColumn, yearbookID, err)
	}
}
