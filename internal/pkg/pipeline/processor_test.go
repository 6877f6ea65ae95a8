package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/vision"
)

// fakeStore is an in-memory ObjectStore. Presigned URLs embed the object
// key so the stub vision provider can react to path markers.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) PresignGet(ctx context.Context, bucket, objectKey string) (string, error) {
	return "https://cdn.test/" + bucket + "/" + objectKey, nil
}

func (s *fakeStore) Download(ctx context.Context, bucket, objectKey string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+objectKey]
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", bucket, objectKey)
	}
	return data, nil
}

func (s *fakeStore) UploadBytes(ctx context.Context, bucket, objectKey string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+objectKey] = data
	return nil
}

func (s *fakeStore) OriginalsBucket() string { return "yearbook-originals" }
func (s *fakeStore) PreviewsBucket() string  { return "yearbook-previews" }

func (s *fakeStore) put(bucket, objectKey string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+objectKey] = data
}

// fakeEnqueuer records stage fan-out instead of touching Redis
type fakeEnqueuer struct {
	jobs []JobType
}

func (e *fakeEnqueuer) EnqueueStage(jobType JobType, payload StageJobPayload) (*Job, error) {
	e.jobs = append(e.jobs, jobType)
	return &Job{ID: "test", Type: jobType, Status: JobStatusPending, Payload: payload.ToMap()}, nil
}

// fakeNotifier records delivered notifications
type fakeNotifier struct {
	kinds []string
	users []uint
}

func (n *fakeNotifier) Notify(userID uint, kind string, content string, referenceID uint) error {
	n.kinds = append(n.kinds, kind)
	n.users = append(n.users, userID)
	return nil
}

// failingRecognizer fails text recognition for URLs containing a marker
// and delegates everything else to the stub.
type failingRecognizer struct {
	*vision.StubProvider
	marker string
}

func (f *failingRecognizer) Recognize(ctx context.Context, imageURL string) (*vision.OCRResult, error) {
	if strings.Contains(imageURL, f.marker) {
		return nil, fmt.Errorf("recognizer unavailable")
	}
	return f.StubProvider.Recognize(ctx, imageURL)
}

// unconfiguredScanner mimics a provider without credentials
type unconfiguredScanner struct{}

func (unconfiguredScanner) Scan(ctx context.Context, imageURL string) (*vision.SafetyVerdict, error) {
	return nil, vision.ErrNotConfigured
}

type pipelineTestEnv struct {
	db       *gorm.DB
	store    *fakeStore
	enqueuer *fakeEnqueuer
	notifier *fakeNotifier
	worker   *StageWorker
	uploader *models.User
}

func newPipelineTestEnv(t *testing.T, providers *vision.Providers) *pipelineTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{}, &models.School{}, &models.Yearbook{}, &models.YearbookPage{},
		&models.PageNameOCR{}, &models.PageFace{}, &models.SafetyQueueEntry{},
		&models.Notification{},
	)
	require.NoError(t, err)

	store := newFakeStore()
	enqueuer := &fakeEnqueuer{}
	notifier := &fakeNotifier{}
	worker := NewStageWorker(db, store, providers, NewThrottle(0, 1), notifier)
	worker.SetEnqueuer(enqueuer)

	uploader := models.User{Name: "Uploader", Email: fmt.Sprintf("%s@example.com", t.Name()), Password: "x"}
	require.NoError(t, db.Create(&uploader).Error)

	return &pipelineTestEnv{
		db:       db,
		store:    store,
		enqueuer: enqueuer,
		notifier: notifier,
		worker:   worker,
		uploader: &uploader,
	}
}

// seedYearbook creates a yearbook with pages whose original paths follow
// the given pattern; %d is the page number.
func (e *pipelineTestEnv) seedYearbook(t *testing.T, pageCount int, pathPattern string) *models.Yearbook {
	t.Helper()

	school := models.School{Name: "Lakeside School"}
	require.NoError(t, e.db.Create(&school).Error)

	yearbook := models.Yearbook{
		SchoolID:   school.ID,
		UploaderID: e.uploader.ID,
		Year:       1957,
		PageCount:  pageCount,
	}
	require.NoError(t, e.db.Create(&yearbook).Error)
	yearbook.School = &school

	for i := 1; i <= pageCount; i++ {
		page := models.YearbookPage{
			YearbookID:   yearbook.ID,
			PageNumber:   i,
			OriginalPath: fmt.Sprintf(pathPattern, i),
			Width:        1000,
			Height:       1400,
		}
		require.NoError(t, e.db.Create(&page).Error)
	}

	entry := models.SafetyQueueEntry{YearbookID: yearbook.ID, Status: models.SafetyStatusPending}
	require.NoError(t, e.db.Create(&entry).Error)

	return &yearbook
}

func (e *pipelineTestEnv) payload(yearbook *models.Yearbook) *StageJobPayload {
	return &StageJobPayload{YearbookID: yearbook.ID, YearbookUUID: yearbook.UUID}
}

func (e *pipelineTestEnv) reload(t *testing.T, yearbook *models.Yearbook) *models.Yearbook {
	t.Helper()
	var stored models.Yearbook
	require.NoError(t, e.db.First(&stored, yearbook.ID).Error)
	return &stored
}

func stubProviders() *vision.Providers {
	stub := vision.NewStubProvider()
	return &vision.Providers{Safety: stub, OCR: stub, Faces: stub}
}

func TestSafetyScanCleanYearbook(t *testing.T) {
	env := newPipelineTestEnv(t, stubProviders())
	yearbook := env.seedYearbook(t, 2, "pages/%03d.jpg")

	err := env.worker.ProcessSafetyScan(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	stored := env.reload(t, yearbook)
	assert.Equal(t, models.YearbookStatusClean, stored.Status)
	assert.Nil(t, stored.SafetyLockedAt)

	entry, err := models.FindSafetyEntryByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SafetyStatusClean, entry.Status)
	assert.NotNil(t, entry.StartedAt)
	assert.NotNil(t, entry.FinishedAt)

	findings, err := entry.GetFindings()
	require.NoError(t, err)
	assert.Empty(t, findings)

	require.Len(t, env.enqueuer.jobs, 1)
	assert.Equal(t, JobTypeOCR, env.enqueuer.jobs[0])
}

func TestSafetyScanFlagsUnsafePage(t *testing.T) {
	stub := &vision.StubProvider{UnsafeSubstrings: []string{"page-2"}}
	env := newPipelineTestEnv(t, &vision.Providers{Safety: stub, OCR: stub, Faces: stub})
	yearbook := env.seedYearbook(t, 3, "pages/page-%d.jpg")

	err := env.worker.ProcessSafetyScan(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	stored := env.reload(t, yearbook)
	assert.Equal(t, models.YearbookStatusFlagged, stored.Status)

	entry, err := models.FindSafetyEntryByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SafetyStatusFlagged, entry.Status)

	findings, err := entry.GetFindings()
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, 2, findings[0].PageNumber)
	assert.Equal(t, "explicit_content", findings[0].Category)

	// a flagged yearbook never reaches OCR
	assert.Empty(t, env.enqueuer.jobs)
}

func TestSafetyScanFailsClosedWithoutClassifier(t *testing.T) {
	stub := vision.NewStubProvider()
	env := newPipelineTestEnv(t, &vision.Providers{Safety: unconfiguredScanner{}, OCR: stub, Faces: stub})
	yearbook := env.seedYearbook(t, 1, "pages/%03d.jpg")

	err := env.worker.ProcessSafetyScan(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	stored := env.reload(t, yearbook)
	assert.Equal(t, models.YearbookStatusFlagged, stored.Status)

	entry, err := models.FindSafetyEntryByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)
	findings, err := entry.GetFindings()
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, models.SafetyFindingReviewCategory, findings[0].Category)
}

func TestSafetyScanSkipsNonPendingYearbook(t *testing.T) {
	env := newPipelineTestEnv(t, stubProviders())
	yearbook := env.seedYearbook(t, 1, "pages/%03d.jpg")
	require.NoError(t, env.db.Model(yearbook).Update("status", models.YearbookStatusClean).Error)

	err := env.worker.ProcessSafetyScan(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	entry, err := models.FindSafetyEntryByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SafetyStatusPending, entry.Status)
	assert.Empty(t, env.enqueuer.jobs)
}

func TestProcessOCRStoresAbsoluteBoxes(t *testing.T) {
	env := newPipelineTestEnv(t, stubProviders())
	yearbook := env.seedYearbook(t, 2, "pages/%03d.jpg")
	require.NoError(t, env.db.Model(yearbook).Update("status", models.YearbookStatusClean).Error)
	yearbook.Status = models.YearbookStatusClean

	err := env.worker.ProcessOCR(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	stored := env.reload(t, yearbook)
	assert.True(t, stored.OcrDone)
	assert.Nil(t, stored.OcrLockedAt)

	pages, err := models.FindPagesByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)
	for _, page := range pages {
		var rows []models.PageNameOCR
		require.NoError(t, env.db.Where("page_id = ?", page.ID).Find(&rows).Error)
		require.Len(t, rows, 2)
		for _, row := range rows {
			assert.Greater(t, row.Width, 0)
			assert.Greater(t, row.Height, 0)
			assert.LessOrEqual(t, row.X+row.Width, page.Width)
			assert.LessOrEqual(t, row.Y+row.Height, page.Height)
		}
	}

	require.Len(t, env.enqueuer.jobs, 1)
	assert.Equal(t, JobTypeFaceDetection, env.enqueuer.jobs[0])
}

func TestProcessOCRToleratesPageFailure(t *testing.T) {
	recognizer := &failingRecognizer{StubProvider: vision.NewStubProvider(), marker: "page-1"}
	env := newPipelineTestEnv(t, &vision.Providers{Safety: recognizer.StubProvider, OCR: recognizer, Faces: recognizer.StubProvider})
	yearbook := env.seedYearbook(t, 2, "pages/page-%d.jpg")
	require.NoError(t, env.db.Model(yearbook).Update("status", models.YearbookStatusClean).Error)
	yearbook.Status = models.YearbookStatusClean

	err := env.worker.ProcessOCR(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	// the stage completes even though one page failed
	stored := env.reload(t, yearbook)
	assert.True(t, stored.OcrDone)

	pages, err := models.FindPagesByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)

	var firstRows, secondRows []models.PageNameOCR
	require.NoError(t, env.db.Where("page_id = ?", pages[0].ID).Find(&firstRows).Error)
	require.NoError(t, env.db.Where("page_id = ?", pages[1].ID).Find(&secondRows).Error)
	assert.Empty(t, firstRows)
	assert.Len(t, secondRows, 2)
}

func TestProcessOCRSkipsCompletedYearbook(t *testing.T) {
	env := newPipelineTestEnv(t, stubProviders())
	yearbook := env.seedYearbook(t, 1, "pages/%03d.jpg")
	require.NoError(t, env.db.Model(yearbook).
		Updates(map[string]interface{}{"status": models.YearbookStatusClean, "ocr_done": true}).Error)

	err := env.worker.ProcessOCR(context.Background(), env.payload(yearbook))
	require.NoError(t, err)
	assert.Empty(t, env.enqueuer.jobs)
}

func TestProcessFaceDetectionPairsNameSuggestions(t *testing.T) {
	env := newPipelineTestEnv(t, stubProviders())
	yearbook := env.seedYearbook(t, 1, "pages/%03d.jpg")
	require.NoError(t, env.db.Model(yearbook).
		Updates(map[string]interface{}{"status": models.YearbookStatusClean, "ocr_done": true}).Error)

	pages, err := models.FindPagesByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)
	page := pages[0]

	// OCR rows the previous stage would have written
	require.NoError(t, env.db.Create(&models.PageNameOCR{
		PageID: page.ID, Text: "Margaret Atwood", X: 100, Y: 280, Width: 300, Height: 56,
	}).Error)
	require.NoError(t, env.db.Create(&models.PageNameOCR{
		PageID: page.ID, Text: "Class of 1957", X: 100, Y: 364, Width: 250, Height: 56,
	}).Error)

	err = env.worker.ProcessFaceDetection(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	stored := env.reload(t, yearbook)
	assert.True(t, stored.FaceDone)
	assert.Nil(t, stored.FaceLockedAt)

	faces, err := models.FindFacesByPageID(env.db, page.ID)
	require.NoError(t, err)
	require.Len(t, faces, 1)
	face := faces[0]
	assert.Greater(t, face.Width, 0)
	assert.Greater(t, face.Height, 0)
	assert.LessOrEqual(t, face.X+face.Width, page.Width)
	require.NotNil(t, face.SuggestedName)
	assert.Equal(t, "Margaret Atwood", *face.SuggestedName)

	require.Len(t, env.enqueuer.jobs, 1)
	assert.Equal(t, JobTypeTiling, env.enqueuer.jobs[0])
}

func TestProcessFaceDetectionReplacesPreviousRows(t *testing.T) {
	env := newPipelineTestEnv(t, stubProviders())
	yearbook := env.seedYearbook(t, 1, "pages/%03d.jpg")
	require.NoError(t, env.db.Model(yearbook).
		Updates(map[string]interface{}{"status": models.YearbookStatusClean, "ocr_done": true}).Error)

	pages, err := models.FindPagesByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)
	page := pages[0]

	// leftover from a crashed earlier run
	require.NoError(t, env.db.Create(&models.PageFace{
		PageID: page.ID, X: 1, Y: 1, Width: 10, Height: 10, Confidence: 0.5,
	}).Error)

	err = env.worker.ProcessFaceDetection(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	faces, err := models.FindFacesByPageID(env.db, page.ID)
	require.NoError(t, err)
	assert.Len(t, faces, 1)
}

func testPagePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 10 {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.Gray{Y: 128})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessTilingMarksYearbookReady(t *testing.T) {
	env := newPipelineTestEnv(t, stubProviders())
	yearbook := env.seedYearbook(t, 2, "pages/%03d.png")
	require.NoError(t, env.db.Model(yearbook).
		Updates(map[string]interface{}{"status": models.YearbookStatusClean, "ocr_done": true, "face_done": true}).Error)
	yearbook.Status = models.YearbookStatusClean
	yearbook.FaceDone = true

	data := testPagePNG(t, 640, 480)
	env.store.put("yearbook-originals", "pages/001.png", data)
	env.store.put("yearbook-originals", "pages/002.png", data)

	err := env.worker.ProcessTiling(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	stored := env.reload(t, yearbook)
	assert.Equal(t, models.YearbookStatusReady, stored.Status)
	assert.Nil(t, stored.TileLockedAt)

	pages, err := models.FindPagesByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)
	for _, page := range pages {
		require.NotNil(t, page.Manifest)
		var manifest models.TileManifest
		require.NoError(t, json.Unmarshal(*page.Manifest, &manifest))
		assert.Equal(t, 640, manifest.Width)
		assert.Equal(t, 480, manifest.Height)
		assert.Equal(t, 2, manifest.Levels)
		assert.Empty(t, manifest.WatermarkText)

		assert.NotEmpty(t, page.PreviewPath)
		preview, err := env.store.Download(context.Background(), "yearbook-previews", page.PreviewPath)
		require.NoError(t, err)
		assert.NotEmpty(t, preview)
	}

	// exactly one completion notification to the uploader
	require.Len(t, env.notifier.kinds, 1)
	assert.Equal(t, models.NotificationProcessingComplete, env.notifier.kinds[0])
	assert.Equal(t, env.uploader.ID, env.notifier.users[0])
}

func TestProcessTilingWatermarksPublicYearbooks(t *testing.T) {
	env := newPipelineTestEnv(t, stubProviders())
	yearbook := env.seedYearbook(t, 1, "pages/%03d.png")
	require.NoError(t, env.db.Model(yearbook).Updates(map[string]interface{}{
		"status": models.YearbookStatusClean, "ocr_done": true, "face_done": true,
		"visibility": models.VisibilityPublic,
	}).Error)

	env.store.put("yearbook-originals", "pages/001.png", testPagePNG(t, 640, 480))

	err := env.worker.ProcessTiling(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	pages, err := models.FindPagesByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)
	require.NotNil(t, pages[0].Manifest)
	var manifest models.TileManifest
	require.NoError(t, json.Unmarshal(*pages[0].Manifest, &manifest))
	assert.Equal(t, "Lakeside School · 1957", manifest.WatermarkText)
}

func TestProcessTilingSkipsFlaggedYearbook(t *testing.T) {
	env := newPipelineTestEnv(t, stubProviders())
	yearbook := env.seedYearbook(t, 1, "pages/%03d.png")
	require.NoError(t, env.db.Model(yearbook).
		Updates(map[string]interface{}{"status": models.YearbookStatusFlagged, "face_done": true}).Error)

	err := env.worker.ProcessTiling(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	stored := env.reload(t, yearbook)
	assert.Equal(t, models.YearbookStatusFlagged, stored.Status)
	assert.Empty(t, env.notifier.kinds)
}

func TestProcessTilingToleratesUndecodablePage(t *testing.T) {
	env := newPipelineTestEnv(t, stubProviders())
	yearbook := env.seedYearbook(t, 2, "pages/%03d.png")
	require.NoError(t, env.db.Model(yearbook).
		Updates(map[string]interface{}{"status": models.YearbookStatusClean, "ocr_done": true, "face_done": true}).Error)
	yearbook.Status = models.YearbookStatusClean

	env.store.put("yearbook-originals", "pages/001.png", []byte("not an image"))
	env.store.put("yearbook-originals", "pages/002.png", testPagePNG(t, 640, 480))

	err := env.worker.ProcessTiling(context.Background(), env.payload(yearbook))
	require.NoError(t, err)

	// the yearbook still goes ready; the broken page has no manifest
	stored := env.reload(t, yearbook)
	assert.Equal(t, models.YearbookStatusReady, stored.Status)

	pages, err := models.FindPagesByYearbookID(env.db, yearbook.ID)
	require.NoError(t, err)
	assert.Nil(t, pages[0].Manifest)
	assert.NotNil(t, pages[1].Manifest)
}
