package controllers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"filevault/models"
)

func serveRecorded(t *testing.T, file *models.FileRecord, content []byte, inline bool) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	serveFileStream(c, file, bytes.NewReader(content), inline)
	return w
}

func testRecord(contentType string, size int64) *models.FileRecord {
	return &models.FileRecord{
		Name:         "payload.bin",
		Type:         contentType,
		Size:         size,
		SizeUploaded: size,
		Hash:         "abc123",
		LastModified: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestServeFileStreamAttachment(t *testing.T) {
	content := []byte("decrypted bytes")
	w := serveRecorded(t, testRecord("application/zip", int64(len(content))), content, false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, `"abc123"`, w.Header().Get("ETag"))
	assert.Equal(t, "Sat, 01 Aug 2026 12:00:00 GMT", w.Header().Get("Last-Modified"))
	assert.Equal(t, content, w.Body.Bytes())
}

func TestServeFileStreamInlineMedia(t *testing.T) {
	content := []byte("png bytes")
	w := serveRecorded(t, testRecord("image/png", int64(len(content))), content, true)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inline")
	assert.Equal(t, content, w.Body.Bytes())
}

func TestServeFileStreamInlineNonMediaRejected(t *testing.T) {
	content := []byte("zip bytes")
	w := serveRecorded(t, testRecord("application/zip", int64(len(content))), content, true)

	// Asking to render a non-media type in the browser is a bad request, not
	// a silent downgrade to attachment.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.NotContains(t, w.Body.String(), "zip bytes")
	assert.Contains(t, w.Body.String(), "errorMsg")
}
