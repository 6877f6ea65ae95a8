package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&User{}, &School{}, &Yearbook{}, &YearbookPage{},
		&PageNameOCR{}, &PageFace{}, &Claim{},
		&SafetyQueueEntry{}, &ModerationReport{}, &ModerationAction{},
		&Notification{},
	)
	require.NoError(t, err)

	return db
}

// seedYearbook creates a school, uploader, and yearbook ready for use
func seedYearbook(t *testing.T, db *gorm.DB) *Yearbook {
	t.Helper()

	school := School{Name: "Ridgemont High", City: "Sacramento", Country: "US"}
	require.NoError(t, db.Create(&school).Error)

	uploader := User{Name: "Test Uploader", Email: fmt.Sprintf("%s@example.com", t.Name()), Password: "irrelevant"}
	require.NoError(t, db.Create(&uploader).Error)

	yearbook := Yearbook{
		SchoolID:   school.ID,
		UploaderID: uploader.ID,
		Year:       1987,
		PageCount:  1,
	}
	require.NoError(t, db.Create(&yearbook).Error)
	yearbook.School = &school
	return &yearbook
}
