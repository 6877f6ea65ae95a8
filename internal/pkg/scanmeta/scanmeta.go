package scanmeta

import (
	"bytes"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"

	"github.com/AlumniConnect/YearbookConnect/app/models"
)

func init() {
	// Register Nikon and Canon maker notes
	exif.RegisterParsers(mknote.All...)
}

// Extract pulls scanner metadata out of a page image's EXIF block and
// stores it on the page. Pages without EXIF data are common; that is
// not an error.
func Extract(page *models.YearbookPage, data []byte) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		log.Debugf("[ScanMeta] No EXIF data on page %d: %v", page.PageNumber, err)
		return
	}

	if m, err := x.Get(exif.Model); err == nil {
		model := strings.TrimSpace(strings.Trim(m.String(), `"`))
		if model != "" {
			page.ScannerModel = &model
		}
	}

	if dt, err := x.DateTime(); err == nil {
		page.ScannedAt = &dt
	}
}
