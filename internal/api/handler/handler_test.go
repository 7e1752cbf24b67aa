package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/ndthanh/convert-be/internal/api/domain"
	"github.com/ndthanh/convert-be/internal/api/model"
	"github.com/ndthanh/convert-be/shared/objectstore"
)

const testSession = "test-session"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeObjects struct {
	sizes     map[string]int64
	statErr   error
	removed   []string
	removeErr error
	uploadURL string
	dlURL     string
	dlNames   []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{
		sizes:     make(map[string]int64),
		uploadURL: "https://storage.example/put",
		dlURL:     "https://storage.example/get",
	}
}

func (f *fakeObjects) PresignedUpload(ctx context.Context, key string) (string, error) {
	return f.uploadURL + "/" + key, nil
}

func (f *fakeObjects) PresignedDownload(ctx context.Context, key, fileName string) (string, error) {
	f.dlNames = append(f.dlNames, fileName)
	return f.dlURL + "/" + key, nil
}

func (f *fakeObjects) StatObject(ctx context.Context, key string) (int64, error) {
	if f.statErr != nil {
		return 0, f.statErr
	}
	size, ok := f.sizes[key]
	if !ok {
		return 0, objectstore.ErrObjectNotFound
	}
	return size, nil
}

func (f *fakeObjects) RemoveObject(ctx context.Context, key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, key)
	delete(f.sizes, key)
	return nil
}

func (f *fakeObjects) Bucket() string        { return "convert-files" }
func (f *fakeObjects) Region() string        { return "eu-north-1" }
func (f *fakeObjects) Expiry() time.Duration { return time.Hour }

type fakeJobStore struct {
	jobs      map[string]*model.Job
	order     []string // insertion order, newest last
	createErr error
	deleted   []string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*model.Job)}
}

func (f *fakeJobStore) CreateJob(ctx context.Context, job *model.Job) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *job
	f.jobs[job.ID] = &cp
	f.order = append(f.order, job.ID)
	return nil
}

func (f *fakeJobStore) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobStore) ListJobsBySession(ctx context.Context, sessionID string, limit int) ([]model.Job, error) {
	var out []model.Job
	for i := len(f.order) - 1; i >= 0 && len(out) < limit; i-- {
		job := f.jobs[f.order[i]]
		if job.SessionID == sessionID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeJobStore) DeleteJob(ctx context.Context, jobID string) error {
	if _, ok := f.jobs[jobID]; !ok {
		return domain.ErrJobNotFound
	}
	delete(f.jobs, jobID)
	f.deleted = append(f.deleted, jobID)
	return nil
}

type fakePublisher struct {
	published [][]byte
	err       error
}

func (f *fakePublisher) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, body)
	return nil
}

type fakeCache struct {
	views       map[string][]byte
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{views: make(map[string][]byte)}
}

func (f *fakeCache) GetJobView(ctx context.Context, jobID string) ([]byte, error) {
	if view, ok := f.views[jobID]; ok {
		return view, nil
	}
	return nil, nil
}

func (f *fakeCache) SetJobView(ctx context.Context, jobID string, view []byte) error {
	f.views[jobID] = view
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, jobID string) error {
	delete(f.views, jobID)
	f.invalidated = append(f.invalidated, jobID)
	return nil
}

// testDeps bundles the fakes behind a Dependencies value
type testDeps struct {
	deps    *Dependencies
	objects *fakeObjects
	store   *fakeJobStore
	queue   *fakePublisher
	cache   *fakeCache
}

func newTestDeps() *testDeps {
	objects := newFakeObjects()
	store := newFakeJobStore()
	queue := &fakePublisher{}
	cache := newFakeCache()

	return &testDeps{
		deps: &Dependencies{
			Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
			Store:            store,
			Objects:          objects,
			Queue:            queue,
			Cache:            cache,
			MaxFileSizeBytes: 10 << 20,
			AllowedFileTypes: []string{"application/pdf", "image/jpeg", "image/png", "image/webp"},
			MaxRetries:       3,
		},
		objects: objects,
		store:   store,
		queue:   queue,
		cache:   cache,
	}
}

// newTestRouter wires the handlers under the production paths with a stub
// session middleware
func newTestRouter(td *testDeps) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("session_id", testSession)
		c.Next()
	})

	uploadHandler := NewUploadHandler(td.deps)
	jobHandler := NewJobHandler(td.deps)
	downloadHandler := NewDownloadHandler(td.deps)

	v1 := r.Group("/api/v1")
	v1.POST("/upload/presigned-url", uploadHandler.GetPresignedURL)
	v1.POST("/upload/confirm-upload", uploadHandler.ConfirmUpload)
	v1.DELETE("/upload/cleanup-upload", uploadHandler.CleanupUpload)
	v1.GET("/upload/status/*file_key", uploadHandler.GetUploadStatus)
	v1.POST("/job/start", jobHandler.StartJob)
	v1.GET("/job/my-jobs", jobHandler.ListMyJobs)
	v1.GET("/job/:job_id/status", jobHandler.GetJobStatus)
	v1.DELETE("/job/:job_id", jobHandler.DeleteJob)
	v1.GET("/download/:job_id", downloadHandler.GetDownloadURL)

	return r
}

// doRequest performs a request against the router and decodes the JSON body
func doRequest(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}
