package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPresignedURL(t *testing.T) {
	t.Run("issues url and session-scoped key", func(t *testing.T) {
		td := newTestDeps()
		r := newTestRouter(td)

		w, body := doRequest(t, r, http.MethodPost, "/api/v1/upload/presigned-url", map[string]interface{}{
			"file_name": "report.pdf",
			"file_type": "application/pdf",
			"file_size": 1024,
		})

		require.Equal(t, http.StatusOK, w.Code)

		fileKey := body["file_key"].(string)
		assert.True(t, strings.HasPrefix(fileKey, "uploads/"+testSession+"/"), fileKey)
		assert.True(t, strings.HasSuffix(fileKey, "-report.pdf"), fileKey)
		assert.Equal(t, td.objects.uploadURL+"/"+fileKey, body["upload_url"])
		assert.Equal(t, "convert-files", body["bucket"])
		assert.Equal(t, "eu-north-1", body["region"])
		assert.EqualValues(t, 3600, body["expires_in"])
		assert.EqualValues(t, 10<<20, body["max_file_size"])
	})

	t.Run("sanitizes file name", func(t *testing.T) {
		td := newTestDeps()
		r := newTestRouter(td)

		w, body := doRequest(t, r, http.MethodPost, "/api/v1/upload/presigned-url", map[string]interface{}{
			"file_name": "my file (1)/../x.pdf",
			"file_type": "application/pdf",
			"file_size": 1024,
		})

		require.Equal(t, http.StatusOK, w.Code)
		fileKey := body["file_key"].(string)
		assert.NotContains(t, fileKey[len("uploads/"+testSession+"/"):], " ")
		assert.NotContains(t, fileKey[len("uploads/"+testSession+"/"):], "/")
		assert.NotContains(t, fileKey, "(")
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		td := newTestDeps()
		r := newTestRouter(td)

		w, body := doRequest(t, r, http.MethodPost, "/api/v1/upload/presigned-url", map[string]interface{}{
			"file_name": "huge.pdf",
			"file_type": "application/pdf",
			"file_size": 11 << 20,
		})

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, body["message"], "exceeds maximum allowed size")
	})

	t.Run("rejects disallowed file type", func(t *testing.T) {
		td := newTestDeps()
		r := newTestRouter(td)

		w, body := doRequest(t, r, http.MethodPost, "/api/v1/upload/presigned-url", map[string]interface{}{
			"file_name": "movie.mp4",
			"file_type": "video/mp4",
			"file_size": 1024,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, body["message"], "not allowed")
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		td := newTestDeps()
		r := newTestRouter(td)

		w, _ := doRequest(t, r, http.MethodPost, "/api/v1/upload/presigned-url", map[string]interface{}{
			"file_name": "report.pdf",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestConfirmUpload(t *testing.T) {
	t.Run("confirms existing object", func(t *testing.T) {
		td := newTestDeps()
		td.objects.sizes["uploads/test-session/x-a.pdf"] = 2048
		r := newTestRouter(td)

		w, body := doRequest(t, r, http.MethodPost, "/api/v1/upload/confirm-upload", map[string]string{
			"file_key": "uploads/test-session/x-a.pdf",
		})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "confirmed", body["status"])
		assert.EqualValues(t, 2048, body["file_size"])
	})

	t.Run("404 when object does not exist", func(t *testing.T) {
		td := newTestDeps()
		r := newTestRouter(td)

		w, body := doRequest(t, r, http.MethodPost, "/api/v1/upload/confirm-upload", map[string]string{
			"file_key": "uploads/test-session/never-uploaded.pdf",
		})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "file not found in storage", body["message"])
	})

	t.Run("idempotent for existing object", func(t *testing.T) {
		td := newTestDeps()
		td.objects.sizes["uploads/test-session/x-a.pdf"] = 2048
		r := newTestRouter(td)

		for i := 0; i < 3; i++ {
			w, _ := doRequest(t, r, http.MethodPost, "/api/v1/upload/confirm-upload", map[string]string{
				"file_key": "uploads/test-session/x-a.pdf",
			})
			require.Equal(t, http.StatusOK, w.Code)
		}
	})
}

func TestCleanupUpload(t *testing.T) {
	t.Run("deletes and is idempotent", func(t *testing.T) {
		td := newTestDeps()
		td.objects.sizes["uploads/test-session/x-a.pdf"] = 2048
		r := newTestRouter(td)

		// First delete removes the object, the second hits a missing key;
		// both succeed
		for i := 0; i < 2; i++ {
			w, body := doRequest(t, r, http.MethodDelete, "/api/v1/upload/cleanup-upload", map[string]string{
				"file_key": "uploads/test-session/x-a.pdf",
			})
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "deleted", body["status"])
		}

		assert.Len(t, td.objects.removed, 2)
	})
}

func TestGetUploadStatus(t *testing.T) {
	t.Run("uploaded", func(t *testing.T) {
		td := newTestDeps()
		td.objects.sizes["uploads/test-session/x-a.pdf"] = 2048
		r := newTestRouter(td)

		w, body := doRequest(t, r, http.MethodGet, "/api/v1/upload/status/uploads/test-session/x-a.pdf", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "uploaded", body["status"])
		assert.Equal(t, "uploads/test-session/x-a.pdf", body["file_key"])
		assert.EqualValues(t, 2048, body["file_size"])
	})

	t.Run("not_found is still 200", func(t *testing.T) {
		td := newTestDeps()
		r := newTestRouter(td)

		w, body := doRequest(t, r, http.MethodGet, "/api/v1/upload/status/uploads/test-session/missing.pdf", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "not_found", body["status"])
	})
}
