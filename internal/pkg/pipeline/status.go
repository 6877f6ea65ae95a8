package pipeline

import (
	"fmt"
	"time"

	"github.com/AlumniConnect/YearbookConnect/internal/pkg/cache"
)

// Cache key formats for yearbook processing state
const (
	StatusKeyFormat          = "yearbook:stage:%s"           // yearbook:stage:<uuid>
	StatusTimestampKeyFormat = "yearbook:stage:timestamp:%s" // yearbook:stage:timestamp:<uuid>
)

// Processing stage names surfaced to the status endpoint. These are the
// live view of where a yearbook currently sits; the durable truth stays
// on the yearbook row.
const (
	STAGE_QUEUED   = "queued"
	STAGE_SCANNING = "scanning"
	STAGE_OCR      = "ocr"
	STAGE_FACES    = "faces"
	STAGE_TILING   = "tiling"
	STAGE_READY    = "ready"
	STAGE_FLAGGED  = "flagged"
)

// SetStage records the current processing stage of a yearbook in the cache
func SetStage(yearbookUUID string, stage string) error {
	key := fmt.Sprintf(StatusKeyFormat, yearbookUUID)
	// also record when the stage was entered
	tsKey := fmt.Sprintf(StatusTimestampKeyFormat, yearbookUUID)
	_ = cache.Set(tsKey, time.Now().Format(time.RFC3339), 24*time.Hour)
	return cache.Set(key, stage, 24*time.Hour)
}

// GetStage retrieves the current processing stage of a yearbook
func GetStage(yearbookUUID string) (string, error) {
	key := fmt.Sprintf(StatusKeyFormat, yearbookUUID)
	return cache.Get(key)
}

// GetStageTimestamp reports when the current stage was entered
func GetStageTimestamp(yearbookUUID string) (time.Time, error) {
	tsKey := fmt.Sprintf(StatusTimestampKeyFormat, yearbookUUID)
	raw, err := cache.Get(tsKey)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}
