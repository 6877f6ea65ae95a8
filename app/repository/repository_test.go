package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AlumniConnect/YearbookConnect/app/models"
)

// testEnv bundles the database and the rows most tests need
type testEnv struct {
	db        *gorm.DB
	repos     *Repositories
	school    *models.School
	uploader  *models.User
	claimant  *models.User
	moderator *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{}, &models.School{}, &models.Yearbook{}, &models.YearbookPage{},
		&models.PageNameOCR{}, &models.PageFace{}, &models.Claim{},
		&models.SafetyQueueEntry{}, &models.ModerationReport{}, &models.ModerationAction{},
		&models.Notification{},
	)
	require.NoError(t, err)

	school := models.School{Name: "Lakeside School", City: "Seattle", Country: "US"}
	require.NoError(t, db.Create(&school).Error)

	uploader := models.User{Name: "Uploader", Email: fmt.Sprintf("up-%s@example.com", t.Name()), Password: "x"}
	require.NoError(t, db.Create(&uploader).Error)
	claimant := models.User{Name: "Claimant", Email: fmt.Sprintf("cl-%s@example.com", t.Name()), Password: "x"}
	require.NoError(t, db.Create(&claimant).Error)
	moderator := models.User{Name: "Moderator", Email: fmt.Sprintf("mod-%s@example.com", t.Name()), Password: "x", Role: models.ROLE_MODERATOR}
	require.NoError(t, db.Create(&moderator).Error)

	return &testEnv{
		db:        db,
		repos:     NewRepositories(db),
		school:    &school,
		uploader:  &uploader,
		claimant:  &claimant,
		moderator: &moderator,
	}
}

func (e *testEnv) createYearbook(t *testing.T, year int) *models.Yearbook {
	t.Helper()
	yearbook := models.Yearbook{
		SchoolID:   e.school.ID,
		UploaderID: e.uploader.ID,
		Year:       year,
		PageCount:  1,
	}
	require.NoError(t, e.db.Create(&yearbook).Error)
	return &yearbook
}

func (e *testEnv) createPageWithTargets(t *testing.T, yearbook *models.Yearbook) (*models.PageFace, *models.PageNameOCR) {
	t.Helper()
	page := models.YearbookPage{YearbookID: yearbook.ID, PageNumber: 1, OriginalPath: "p/001.jpg", Width: 1200, Height: 1600}
	require.NoError(t, e.db.Create(&page).Error)

	face := models.PageFace{PageID: page.ID, X: 10, Y: 20, Width: 80, Height: 90, Confidence: 0.9}
	require.NoError(t, e.db.Create(&face).Error)
	name := models.PageNameOCR{PageID: page.ID, Text: "Ada Lovelace", X: 5, Y: 400, Width: 200, Height: 30}
	require.NoError(t, e.db.Create(&name).Error)

	return &face, &name
}
