package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedFaceAndName(t *testing.T, db *gorm.DB) (*PageFace, *PageNameOCR) {
	t.Helper()

	yearbook := seedYearbook(t, db)
	page := YearbookPage{YearbookID: yearbook.ID, PageNumber: 1, OriginalPath: "yearbooks/x/pages/001.jpg", Width: 1200, Height: 1600}
	require.NoError(t, db.Create(&page).Error)

	face := PageFace{PageID: page.ID, X: 100, Y: 120, Width: 80, Height: 90, Confidence: 0.9}
	require.NoError(t, db.Create(&face).Error)

	name := PageNameOCR{PageID: page.ID, Text: "Margaret Atwood", X: 40, Y: 400, Width: 220, Height: 30}
	require.NoError(t, db.Create(&name).Error)

	return &face, &name
}

func TestClaimRequiresExactlyOneTarget(t *testing.T) {
	db := newTestDB(t)
	face, name := seedFaceAndName(t, db)

	var claimant User
	require.NoError(t, db.First(&claimant).Error)

	t.Run("no target", func(t *testing.T) {
		claim := Claim{ClaimantID: claimant.ID}
		err := db.Create(&claim).Error
		assert.ErrorIs(t, err, ErrClaimTargetInvalid)
	})

	t.Run("both targets", func(t *testing.T) {
		claim := Claim{ClaimantID: claimant.ID, PageFaceID: &face.ID, PageNameOCRID: &name.ID}
		err := db.Create(&claim).Error
		assert.ErrorIs(t, err, ErrClaimTargetInvalid)
	})

	t.Run("face target", func(t *testing.T) {
		claim := Claim{ClaimantID: claimant.ID, PageFaceID: &face.ID}
		require.NoError(t, db.Create(&claim).Error)
		assert.Equal(t, ClaimStatusPending, claim.Status)
	})

	t.Run("name target", func(t *testing.T) {
		claim := Claim{ClaimantID: claimant.ID, PageNameOCRID: &name.ID}
		require.NoError(t, db.Create(&claim).Error)
		assert.Equal(t, ClaimStatusPending, claim.Status)
	})
}

func TestClaimUpdateKeepsTargetInvariant(t *testing.T) {
	db := newTestDB(t)
	face, name := seedFaceAndName(t, db)

	var claimant User
	require.NoError(t, db.First(&claimant).Error)

	claim := Claim{ClaimantID: claimant.ID, PageFaceID: &face.ID}
	require.NoError(t, db.Create(&claim).Error)

	claim.PageNameOCRID = &name.ID
	err := db.Save(&claim).Error
	assert.ErrorIs(t, err, ErrClaimTargetInvalid)
}

func TestBoundingBoxValidation(t *testing.T) {
	db := newTestDB(t)
	yearbook := seedYearbook(t, db)
	page := YearbookPage{YearbookID: yearbook.ID, PageNumber: 1, OriginalPath: "yearbooks/x/pages/001.jpg"}
	require.NoError(t, db.Create(&page).Error)

	tests := []struct {
		name          string
		x, y, w, h    int
		expectedError error
	}{
		{"valid box", 0, 0, 10, 10, nil},
		{"negative x", -1, 0, 10, 10, ErrInvalidBoundingBox},
		{"negative y", 0, -5, 10, 10, ErrInvalidBoundingBox},
		{"zero width", 0, 0, 0, 10, ErrInvalidBoundingBox},
		{"zero height", 0, 0, 10, 0, ErrInvalidBoundingBox},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ocr := PageNameOCR{PageID: page.ID, Text: "x", X: tt.x, Y: tt.y, Width: tt.w, Height: tt.h}
			err := db.Create(&ocr).Error
			if tt.expectedError == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expectedError)
			}

			faceRow := PageFace{PageID: page.ID, X: tt.x, Y: tt.y, Width: tt.w, Height: tt.h}
			err = db.Create(&faceRow).Error
			if tt.expectedError == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.expectedError)
			}
		})
	}
}

func TestSafetyFindingsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	yearbook := seedYearbook(t, db)

	entry := SafetyQueueEntry{YearbookID: yearbook.ID}
	require.NoError(t, db.Create(&entry).Error)

	var fresh SafetyQueueEntry
	require.NoError(t, db.First(&fresh, entry.ID).Error)
	assert.Equal(t, SafetyStatusPending, fresh.Status)

	findings := []SafetyFinding{
		{PageNumber: 3, Category: "explicit_content", Confidence: 0.91, Severity: "high"},
		{PageNumber: 7, Category: SafetyFindingErrorCategory, Confidence: 1.0, Severity: "high"},
	}
	require.NoError(t, entry.SetFindings(findings))
	require.NoError(t, db.Save(&entry).Error)

	var stored SafetyQueueEntry
	require.NoError(t, db.First(&stored, entry.ID).Error)
	loaded, err := stored.GetFindings()
	require.NoError(t, err)
	assert.Equal(t, findings, loaded)
}

func TestStatusAfterAction(t *testing.T) {
	assert.Equal(t, ReportStatusResolved, StatusAfterAction(ActionApprove))
	assert.Equal(t, ReportStatusResolved, StatusAfterAction(ActionWarn))
	assert.Equal(t, ReportStatusDismissed, StatusAfterAction(ActionDismiss))
	assert.Equal(t, ReportStatusInReview, StatusAfterAction("escalate"))
}
