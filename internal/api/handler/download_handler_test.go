package handler

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndthanh/convert-be/internal/api/domain"
	"github.com/ndthanh/convert-be/internal/api/model"
)

func TestGetDownloadURL(t *testing.T) {
	baseJob := func(status string) *model.Job {
		return &model.Job{
			ID:        jobID,
			SessionID: testSession,
			ToolType:  "merge",
			Status:    status,
			CreatedAt: time.Now().UTC(),
		}
	}

	t.Run("rejects malformed id", func(t *testing.T) {
		td := newTestDeps()
		r := newTestRouter(td)

		w, _ := doRequest(t, r, http.MethodGet, "/api/v1/download/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("404 for unknown job", func(t *testing.T) {
		td := newTestDeps()
		r := newTestRouter(td)

		w, _ := doRequest(t, r, http.MethodGet, "/api/v1/download/"+jobID, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("400 while the job is not completed", func(t *testing.T) {
		for _, status := range []string{domain.JobStatusPending, domain.JobStatusProcessing, domain.JobStatusFailed} {
			t.Run(status, func(t *testing.T) {
				td := newTestDeps()
				require.NoError(t, td.store.CreateJob(nil, baseJob(status)))
				r := newTestRouter(td)

				w, body := doRequest(t, r, http.MethodGet, "/api/v1/download/"+jobID, nil)

				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Contains(t, body["message"], "job not completed. current status: "+status)
			})
		}
	})

	t.Run("404 when completed without a result key", func(t *testing.T) {
		td := newTestDeps()
		require.NoError(t, td.store.CreateJob(nil, baseJob(domain.JobStatusCompleted)))
		r := newTestRouter(td)

		w, body := doRequest(t, r, http.MethodGet, "/api/v1/download/"+jobID, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, body["message"], "no result file")
	})

	t.Run("signed url with the result's base name", func(t *testing.T) {
		td := newTestDeps()
		job := baseJob(domain.JobStatusCompleted)
		job.ResultKey = sql.NullString{String: "results/" + jobID + "/merged-document.pdf", Valid: true}
		require.NoError(t, td.store.CreateJob(nil, job))
		r := newTestRouter(td)

		w, body := doRequest(t, r, http.MethodGet, "/api/v1/download/"+jobID, nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "merged-document.pdf", body["file_name"])
		assert.Equal(t, td.objects.dlURL+"/"+job.ResultKey.String, body["download_url"])
		assert.EqualValues(t, 3600, body["expires_in"])

		require.Len(t, td.objects.dlNames, 1)
		assert.Equal(t, "merged-document.pdf", td.objects.dlNames[0], "file name forwarded for Content-Disposition")
	})
}
