package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tactico/go-matchintake/internal/client"
	"github.com/tactico/go-matchintake/internal/config"
	"github.com/tactico/go-matchintake/internal/models"
	"github.com/tactico/go-matchintake/internal/pkg/xerr"
)

// chunkRecorder is a fake chunk endpoint. It records received indices in
// arrival order, reassembles the payload and can be told to fail a given
// index a number of times.
type chunkRecorder struct {
	mu        sync.Mutex
	indices   []int
	body      []byte
	failures  map[int]int
	delay     time.Duration
	uploaded  int
	lastTotal int
}

func (r *chunkRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, req.ParseMultipartForm(1<<20))
		index, err := strconv.Atoi(req.FormValue("chunk_index"))
		require.NoError(t, err)
		total, err := strconv.Atoi(req.FormValue("total_chunks"))
		require.NoError(t, err)

		if r.delay > 0 {
			time.Sleep(r.delay)
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.failures[index] > 0 {
			r.failures[index]--
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(xerr.Response{Code: xerr.InternalServerErrorCode, Message: "boom"})
			return
		}

		file, _, err := req.FormFile("file")
		require.NoError(t, err)
		data, err := io.ReadAll(file)
		require.NoError(t, err)

		r.indices = append(r.indices, index)
		r.body = append(r.body, data...)
		r.uploaded = index + 1
		r.lastTotal = total

		json.NewEncoder(w).Encode(xerr.Response{
			Code: xerr.SuccessCode,
			Data: models.UploadChunkResponse{
				ChunkIndex:     index,
				TotalChunks:    total,
				UploadedChunks: index + 1,
			},
		})
	}
}

type captured struct {
	progress chan models.UploadSession
	complete chan models.UploadSession
	failed   chan models.UploadSession
}

func newUploaderForTest(t *testing.T, rec *chunkRecorder, cfg config.UploadConfig) (*Uploader, captured) {
	srv := httptest.NewServer(rec.handler(t))
	t.Cleanup(srv.Close)

	ev := captured{
		progress: make(chan models.UploadSession, 32),
		complete: make(chan models.UploadSession, 2),
		failed:   make(chan models.UploadSession, 2),
	}
	u := New(client.New(config.BackendConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}), cfg, Events{
		OnProgress: func(s models.UploadSession) { ev.progress <- s },
		OnComplete: func(s models.UploadSession) { ev.complete <- s },
		OnFailed:   func(s models.UploadSession) { ev.failed <- s },
	})
	return u, ev
}

func waitSession(t *testing.T, ch chan models.UploadSession) models.UploadSession {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for uploader event")
		return models.UploadSession{}
	}
}

func TestUploadThreeChunks(t *testing.T) {
	rec := &chunkRecorder{}
	u, ev := newUploaderForTest(t, rec, config.UploadConfig{
		ChunkSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond,
	})

	// 25 bytes with 10-byte chunks: 3 chunks, last one short.
	payload := bytes.Repeat([]byte("x"), 25)
	require.NoError(t, u.Begin(context.Background(), bytes.NewReader(payload), 25, "m1", "t1"))

	first := waitSession(t, ev.progress)
	assert.Equal(t, 1, first.UploadedChunks)
	assert.Equal(t, 33, first.Percentage())

	second := waitSession(t, ev.progress)
	assert.Equal(t, 2, second.UploadedChunks)
	assert.Equal(t, 66, second.Percentage())

	waitSession(t, ev.progress)
	done := waitSession(t, ev.complete)
	assert.Equal(t, models.SessionComplete, done.State)
	assert.Equal(t, 3, done.TotalChunks)
	assert.Equal(t, 100, done.Percentage())

	// Strict index order and exact byte coverage, no gaps or overlaps.
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, rec.indices)
	assert.Equal(t, payload, rec.body)
	assert.Equal(t, 3, rec.lastTotal)
}

func TestUploadRetriesTransientFailure(t *testing.T) {
	// Chunk 1 fails twice, succeeds on the third attempt.
	rec := &chunkRecorder{failures: map[int]int{1: 2}}
	u, ev := newUploaderForTest(t, rec, config.UploadConfig{
		ChunkSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond,
	})

	require.NoError(t, u.Begin(context.Background(), bytes.NewReader(make([]byte, 30)), 30, "m1", "t1"))
	done := waitSession(t, ev.complete)
	assert.Equal(t, models.SessionComplete, done.State)
	assert.Equal(t, 3, done.UploadedChunks)
}

func TestUploadFailsAfterRetryCeiling(t *testing.T) {
	// Chunk 0 always fails: the session must end failed with nothing
	// acknowledged and chunks 1 and 2 never attempted.
	rec := &chunkRecorder{failures: map[int]int{0: 100}}
	u, ev := newUploaderForTest(t, rec, config.UploadConfig{
		ChunkSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond,
	})

	require.NoError(t, u.Begin(context.Background(), bytes.NewReader(make([]byte, 30)), 30, "m1", "t1"))
	failed := waitSession(t, ev.failed)
	assert.Equal(t, models.SessionFailed, failed.State)
	assert.Equal(t, 0, failed.UploadedChunks)
	assert.NotEmpty(t, failed.LastError)

	select {
	case <-ev.complete:
		t.Fatal("failed session must not emit complete")
	case <-time.After(100 * time.Millisecond):
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Empty(t, rec.indices, "no chunk may be acknowledged after chunk 0 exhausts retries")
}

func TestUploadEmptyFileRejected(t *testing.T) {
	u, _ := newUploaderForTest(t, &chunkRecorder{}, config.UploadConfig{
		ChunkSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond,
	})
	err := u.Begin(context.Background(), bytes.NewReader(nil), 0, "m1", "t1")
	require.Error(t, err)
	assert.Equal(t, xerr.ValidationFailedCode, xerr.CodeOf(err))
}

func TestUploadBeginWhileUploadingRejected(t *testing.T) {
	rec := &chunkRecorder{delay: 50 * time.Millisecond}
	u, ev := newUploaderForTest(t, rec, config.UploadConfig{
		ChunkSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond,
	})
	require.NoError(t, u.Begin(context.Background(), bytes.NewReader(make([]byte, 30)), 30, "m1", "t1"))
	err := u.Begin(context.Background(), bytes.NewReader(make([]byte, 30)), 30, "m1", "t1")
	require.Error(t, err)
	waitSession(t, ev.complete)
}

func TestUploadCancelMidSession(t *testing.T) {
	rec := &chunkRecorder{delay: 30 * time.Millisecond}
	u, ev := newUploaderForTest(t, rec, config.UploadConfig{
		ChunkSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond,
	})

	require.NoError(t, u.Begin(context.Background(), bytes.NewReader(make([]byte, 50)), 50, "m1", "t1"))
	waitSession(t, ev.progress)
	u.Cancel()

	assert.Equal(t, models.SessionIdle, u.Session().State)
	assert.Equal(t, 0, u.Session().UploadedChunks)

	// Cancellation is not a terminal outcome: neither event may fire.
	select {
	case <-ev.complete:
		t.Fatal("cancelled session must not complete")
	case <-ev.failed:
		t.Fatal("cancelled session must not fail")
	case <-time.After(200 * time.Millisecond):
	}

	// Cancel is idempotent.
	u.Cancel()
	u.Reset()
	assert.Equal(t, models.SessionIdle, u.Session().State)
}
