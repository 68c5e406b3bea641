package wizard

import (
	"bytes"
	"context"
	"encoding/json"
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

// fakeBackend implements just enough of the backend contract to drive
// the wizard end to end: match creation, the chunk endpoint and a job
// endpoint that walks queued -> running -> completed once the final
// chunk has arrived.
type fakeBackend struct {
	mu          sync.Mutex
	matches     int
	chunks      []int
	totalChunks int
	jobPolls    int
	chunkDelay  time.Duration
	failChunks  bool
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/teams/{team}/matches", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.matches++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(xerr.Response{Code: xerr.SuccessCode, Data: models.CreateMatchResponse{MatchID: "m1", Status: "created"}})
	})

	mux.HandleFunc("POST /api/upload/video-chunk", func(w http.ResponseWriter, r *http.Request) {
		if f.chunkDelay > 0 {
			time.Sleep(f.chunkDelay)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failChunks {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(xerr.Response{Code: xerr.InternalServerErrorCode, Message: "boom"})
			return
		}
		r.ParseMultipartForm(1 << 20)
		index, _ := strconv.Atoi(r.FormValue("chunk_index"))
		total, _ := strconv.Atoi(r.FormValue("total_chunks"))
		f.chunks = append(f.chunks, index)
		f.totalChunks = total
		json.NewEncoder(w).Encode(xerr.Response{Code: xerr.SuccessCode, Data: models.UploadChunkResponse{
			ChunkIndex: index, TotalChunks: total, UploadedChunks: index + 1,
		}})
	})

	mux.HandleFunc("GET /api/matches/{match}/job", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		uploaded := len(f.chunks) == f.totalChunks && f.totalChunks > 0
		f.jobPolls++
		poll := f.jobPolls
		f.mu.Unlock()

		if !uploaded {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(xerr.Response{Code: xerr.JobNotFoundCode, Message: "no job found for this match"})
			return
		}
		job := models.JobStatusResponse{JobID: "j1", MatchID: "m1", Status: models.JobStatusRunning, Progress: 50}
		if poll >= 2 {
			job.Status = models.JobStatusCompleted
			job.Progress = 100
		}
		json.NewEncoder(w).Encode(xerr.Response{Code: xerr.SuccessCode, Data: job})
	})

	return mux
}

func newControllerForTest(t *testing.T, backend *fakeBackend) *Controller {
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Backend: config.BackendConfig{BaseURL: srv.URL, Timeout: 5 * time.Second},
		Upload:  config.UploadConfig{ChunkSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond},
		Poller:  config.PollerConfig{Interval: 15 * time.Millisecond},
	}
	ctrl := NewController(cfg, client.New(cfg.Backend))
	t.Cleanup(ctrl.Reset)
	return ctrl
}

func TestControllerHappyPath(t *testing.T) {
	backend := &fakeBackend{}
	ctrl := newControllerForTest(t, backend)

	assert.Equal(t, StepDetails, ctrl.State().Step)

	draft := models.MatchDraft{TeamID: "t1", Opponent: "UOP Tigers", Sport: "soccer", Date: "2025-03-01"}
	require.NoError(t, ctrl.SubmitDetails(context.Background(), draft))
	assert.Equal(t, StepUpload, ctrl.State().Step)
	assert.Equal(t, "m1", ctrl.State().MatchID)

	require.NoError(t, ctrl.StartUpload(context.Background(), bytes.NewReader(make([]byte, 25)), 25))

	require.Eventually(t, func() bool {
		return ctrl.State().Step == StepComplete
	}, 5*time.Second, 10*time.Millisecond)

	s := ctrl.State()
	assert.Equal(t, models.SessionComplete, s.Upload.State)
	assert.Equal(t, 100, s.Upload.Percentage())
	assert.Equal(t, models.JobStatusCompleted, s.Job.Status)
	assert.Equal(t, []int{0, 1, 2}, backend.chunks)
}

func TestControllerGuardsStepOrder(t *testing.T) {
	ctrl := newControllerForTest(t, &fakeBackend{})

	// Upload before Details is confirmed.
	err := ctrl.StartUpload(context.Background(), bytes.NewReader(make([]byte, 10)), 10)
	require.Error(t, err)
	assert.Equal(t, xerr.ValidationFailedCode, xerr.CodeOf(err))

	// Invalid draft blocks the Details exit and reaches no network.
	err = ctrl.SubmitDetails(context.Background(), models.MatchDraft{TeamID: "t1"})
	require.Error(t, err)
	assert.Equal(t, StepDetails, ctrl.State().Step)
}

func TestControllerSubmitDetailsTwiceRejected(t *testing.T) {
	ctrl := newControllerForTest(t, &fakeBackend{})
	draft := models.MatchDraft{TeamID: "t1", Opponent: "UOP Tigers", Sport: "soccer", Date: "2025-03-01"}
	require.NoError(t, ctrl.SubmitDetails(context.Background(), draft))
	require.Error(t, ctrl.SubmitDetails(context.Background(), draft))
}

func TestControllerUploadFailureKeepsStepAndAllowsRetry(t *testing.T) {
	backend := &fakeBackend{failChunks: true}
	ctrl := newControllerForTest(t, backend)

	draft := models.MatchDraft{TeamID: "t1", Opponent: "UOP Tigers", Sport: "soccer", Date: "2025-03-01"}
	require.NoError(t, ctrl.SubmitDetails(context.Background(), draft))
	require.NoError(t, ctrl.StartUpload(context.Background(), bytes.NewReader(make([]byte, 25)), 25))

	require.Eventually(t, func() bool {
		return ctrl.State().Upload.State == models.SessionFailed
	}, 5*time.Second, 10*time.Millisecond)

	s := ctrl.State()
	assert.Equal(t, StepUpload, s.Step)
	assert.NotEmpty(t, s.ErrText)

	// The backend recovers; retrying the same file completes the wizard.
	backend.mu.Lock()
	backend.failChunks = false
	backend.mu.Unlock()
	require.NoError(t, ctrl.RetryUpload(context.Background()))

	require.Eventually(t, func() bool {
		return ctrl.State().Step == StepComplete
	}, 5*time.Second, 10*time.Millisecond)
}

func TestControllerResetMidUpload(t *testing.T) {
	// Back-to-details mid upload discards the match and the session; a
	// fresh createMatch is required to proceed again.
	backend := &fakeBackend{chunkDelay: 30 * time.Millisecond}
	ctrl := newControllerForTest(t, backend)

	draft := models.MatchDraft{TeamID: "t1", Opponent: "UOP Tigers", Sport: "soccer", Date: "2025-03-01"}
	require.NoError(t, ctrl.SubmitDetails(context.Background(), draft))
	require.NoError(t, ctrl.StartUpload(context.Background(), bytes.NewReader(make([]byte, 30)), 30))

	require.Eventually(t, func() bool {
		return ctrl.State().Upload.UploadedChunks >= 1
	}, 5*time.Second, 5*time.Millisecond)

	ctrl.Reset()
	s := ctrl.State()
	assert.Equal(t, StepDetails, s.Step)
	assert.Empty(t, s.MatchID)
	assert.Equal(t, models.UploadSession{}, s.Upload)

	// No upload without confirming details again.
	require.Error(t, ctrl.StartUpload(context.Background(), bytes.NewReader(make([]byte, 30)), 30))

	require.NoError(t, ctrl.SubmitDetails(context.Background(), draft))
	backend.mu.Lock()
	matches := backend.matches
	backend.mu.Unlock()
	assert.Equal(t, 2, matches, "a second match record is created after the reset")
}

func TestControllerObserverSeesEveryTransition(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Backend: config.BackendConfig{BaseURL: srv.URL, Timeout: 5 * time.Second},
		Upload:  config.UploadConfig{ChunkSize: 10, MaxRetries: 3, RetryBackoff: time.Millisecond},
		Poller:  config.PollerConfig{Interval: 15 * time.Millisecond},
	}

	var mu sync.Mutex
	var steps []Step
	ctrl := NewController(cfg, client.New(cfg.Backend), WithOnChange(func(s State) {
		mu.Lock()
		if len(steps) == 0 || steps[len(steps)-1] != s.Step {
			steps = append(steps, s.Step)
		}
		mu.Unlock()
	}))
	t.Cleanup(ctrl.Reset)

	draft := models.MatchDraft{TeamID: "t1", Opponent: "UOP Tigers", Sport: "soccer", Date: "2025-03-01"}
	require.NoError(t, ctrl.SubmitDetails(context.Background(), draft))
	require.NoError(t, ctrl.StartUpload(context.Background(), bytes.NewReader(make([]byte, 25)), 25))

	require.Eventually(t, func() bool {
		return ctrl.State().Step == StepComplete
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Step{StepUpload, StepAnalysis, StepComplete}, steps, "steps advance linearly with no skips")
}
