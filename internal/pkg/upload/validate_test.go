package upload

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeHead(t *testing.T, encode func(*bytes.Buffer) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, encode(&buf))
	head := buf.Bytes()
	if len(head) > 512 {
		head = head[:512]
	}
	return head
}

func TestValidatePageBySniffAcceptsScanFormats(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	jpegHead := encodeHead(t, func(buf *bytes.Buffer) error { return jpeg.Encode(buf, img, nil) })
	pngHead := encodeHead(t, func(buf *bytes.Buffer) error { return png.Encode(buf, img) })

	tests := []struct {
		filename string
		head     []byte
		wantMime string
	}{
		{"scan-001.jpg", jpegHead, "image/jpeg"},
		{"scan-001.JPEG", jpegHead, "image/jpeg"},
		{"scan-001.png", pngHead, "image/png"},
		{"scan-001.webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			mime, err := ValidatePageBySniff(tt.filename, tt.head)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMime, mime)
		})
	}
}

func TestValidatePageBySniffRejectsUnknownExtensions(t *testing.T) {
	for _, filename := range []string{"page.gif", "page.svg", "page.pdf", "page.exe", "page"} {
		t.Run(filename, func(t *testing.T) {
			_, err := ValidatePageBySniff(filename, []byte{0xFF, 0xD8, 0xFF})
			assert.Error(t, err)
		})
	}
}

func TestValidatePageBySniffRejectsScriptableContent(t *testing.T) {
	_, err := ValidatePageBySniff("page.png", []byte("<!DOCTYPE html><html><body>x</body></html>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTML")

	_, err = ValidatePageBySniff("page.jpg", []byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"></svg>`))
	assert.Error(t, err)
}

func TestValidatePageBySniffRejectsMismatchedContent(t *testing.T) {
	// a GIF renamed to .png sniffs as image/gif, which is not a scan format
	_, err := ValidatePageBySniff("page.png", []byte("GIF89a\x01\x00\x01\x00"))
	assert.Error(t, err)
}

func TestValidatePageBySniffAllowsTIFFAsOctetStream(t *testing.T) {
	// truncated TIFF headers can sniff as octet-stream; the extension decides
	mime, err := ValidatePageBySniff("page.tiff", []byte{0x49, 0x49, 0x00, 0x00})
	require.NoError(t, err)
	assert.NotEmpty(t, mime)
}
