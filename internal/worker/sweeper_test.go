package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func publishedJobIDs(t *testing.T, pub *fakePublisher) []string {
	t.Helper()

	ids := make([]string, 0, len(pub.published))
	for _, body := range pub.published {
		var msg map[string]string
		require.NoError(t, json.Unmarshal(body, &msg))
		ids = append(ids, msg["job_id"])
	}
	return ids
}

func TestSweepStaleJobs(t *testing.T) {
	t.Run("fails exhausted claims and requeues the rest", func(t *testing.T) {
		store := &fakeJobStore{
			abandonedFailed:    []string{"dead-1"},
			abandonedReclaimed: []string{"lost-1", "lost-2"},
		}
		cache := &fakeStatusCache{}
		pub := &fakePublisher{}

		w := newTestWorker(store, &fakeObjectStore{}, cache)
		w.queue = pub

		w.sweepStaleJobs(context.Background())

		assert.ElementsMatch(t, []string{"lost-1", "lost-2"}, publishedJobIDs(t, pub),
			"reclaimed jobs get a fresh message; failed ones do not")
		assert.ElementsMatch(t, []string{"dead-1", "lost-1", "lost-2"}, cache.invalidated)

		require.Len(t, store.sweepCutoffs, 1)
		wantCutoff := time.Now().UTC().Add(-staleClaimFactor * w.heartbeatInterval)
		assert.WithinDuration(t, wantCutoff, store.sweepCutoffs[0], 5*time.Second)
	})

	t.Run("republishes stalled pending jobs", func(t *testing.T) {
		store := &fakeJobStore{stalledPending: []string{"orphan-1"}}
		cache := &fakeStatusCache{}
		pub := &fakePublisher{}

		w := newTestWorker(store, &fakeObjectStore{}, cache)
		w.queue = pub

		w.sweepStaleJobs(context.Background())

		assert.Equal(t, []string{"orphan-1"}, publishedJobIDs(t, pub))
		assert.Empty(t, cache.invalidated, "a stalled PENDING view is unchanged")
	})

	t.Run("publish failure leaves the job for the next pass", func(t *testing.T) {
		store := &fakeJobStore{abandonedReclaimed: []string{"lost-1"}}
		pub := &fakePublisher{err: errors.New("broker down")}

		w := newTestWorker(store, &fakeObjectStore{}, &fakeStatusCache{})
		w.queue = pub

		w.sweepStaleJobs(context.Background())

		assert.Empty(t, pub.published)
	})
}
