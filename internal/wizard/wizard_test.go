package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tactico/go-matchintake/internal/models"
)

func validDraft() models.MatchDraft {
	return models.MatchDraft{TeamID: "t1", Opponent: "UC California Bears", Sport: "soccer", Date: "2025-03-01"}
}

func TestValidateDraft(t *testing.T) {
	assert.NoError(t, ValidateDraft(validDraft()))

	missingOpponent := validDraft()
	missingOpponent.Opponent = ""
	assert.Error(t, ValidateDraft(missingOpponent))

	missingDate := validDraft()
	missingDate.Date = ""
	assert.Error(t, ValidateDraft(missingDate))

	missingTeam := validDraft()
	missingTeam.TeamID = ""
	assert.Error(t, ValidateDraft(missingTeam))
}

func TestReduceMatchCreatedAdvancesToUpload(t *testing.T) {
	s := Reduce(State{Step: StepDetails}, MatchCreated{Draft: validDraft(), MatchID: "m1"})
	assert.Equal(t, StepUpload, s.Step)
	assert.Equal(t, "m1", s.MatchID)
}

func TestReduceMatchCreatedGuards(t *testing.T) {
	// Invalid draft never leaves Details.
	s := Reduce(State{Step: StepDetails}, MatchCreated{Draft: models.MatchDraft{TeamID: "t1"}, MatchID: "m1"})
	assert.Equal(t, StepDetails, s.Step)

	// No skipping into Upload from a later step.
	s = Reduce(State{Step: StepAnalysis, MatchID: "m1"}, MatchCreated{Draft: validDraft(), MatchID: "m2"})
	assert.Equal(t, StepAnalysis, s.Step)
	assert.Equal(t, "m1", s.MatchID)
}

func TestReduceUploadLifecycle(t *testing.T) {
	s := State{Step: StepUpload, MatchID: "m1"}

	s = Reduce(s, UploadProgressed{Session: models.UploadSession{MatchID: "m1", TotalChunks: 3, UploadedChunks: 1, State: models.SessionUploading}})
	assert.Equal(t, StepUpload, s.Step)
	assert.Equal(t, 1, s.Upload.UploadedChunks)

	failed := models.UploadSession{MatchID: "m1", TotalChunks: 3, State: models.SessionFailed, LastError: "chunk 1 failed after 3 attempts"}
	s = Reduce(s, UploadFailed{Session: failed})
	assert.Equal(t, StepUpload, s.Step, "failed upload holds the wizard in Upload")
	assert.Equal(t, "chunk 1 failed after 3 attempts", s.ErrText)

	complete := models.UploadSession{MatchID: "m1", TotalChunks: 3, UploadedChunks: 3, State: models.SessionComplete}
	s = Reduce(s, UploadCompleted{Session: complete})
	assert.Equal(t, StepAnalysis, s.Step)
	assert.Empty(t, s.ErrText, "forward progress clears the surfaced error")
}

func TestReduceIgnoresStaleSessionEvents(t *testing.T) {
	// Events for a different match (a discarded session) never mutate
	// the current context.
	s := State{Step: StepUpload, MatchID: "m2"}
	next := Reduce(s, UploadCompleted{Session: models.UploadSession{MatchID: "m1", State: models.SessionComplete}})
	assert.Equal(t, s, next)
}

func TestReduceJobObserved(t *testing.T) {
	base := State{Step: StepAnalysis, MatchID: "m1"}

	s := Reduce(base, JobObserved{Snapshot: models.JobSnapshot{MatchID: "m1", Status: models.JobStatusRunning, Progress: 40}})
	assert.Equal(t, StepAnalysis, s.Step)
	assert.Equal(t, 40, s.Job.Progress)

	s = Reduce(s, JobObserved{Snapshot: models.JobSnapshot{MatchID: "m1", Status: models.JobStatusFailed, ErrorMessage: "processing timeout"}})
	assert.Equal(t, StepAnalysis, s.Step, "failed analysis never auto-advances")
	assert.Equal(t, "processing timeout", s.ErrText)

	s = Reduce(s, JobObserved{Snapshot: models.JobSnapshot{MatchID: "m1", Status: models.JobStatusCancelled}})
	assert.Equal(t, StepAnalysis, s.Step)
	assert.Equal(t, "analysis cancelled", s.ErrText)

	s = Reduce(s, JobObserved{Snapshot: models.JobSnapshot{MatchID: "m1", Status: models.JobStatusCompleted, Progress: 100}})
	assert.Equal(t, StepComplete, s.Step)
}

func TestReduceJobObservedOutsideAnalysisIgnored(t *testing.T) {
	// A poller callback landing after a reset must not resurrect state.
	s := State{Step: StepDetails}
	next := Reduce(s, JobObserved{Snapshot: models.JobSnapshot{MatchID: "m1", Status: models.JobStatusCompleted}})
	assert.Equal(t, s, next)
}

func TestReduceResetDiscardsEverything(t *testing.T) {
	s := State{
		Step:    StepAnalysis,
		Draft:   validDraft(),
		MatchID: "m1",
		Upload:  models.UploadSession{MatchID: "m1", UploadedChunks: 1, TotalChunks: 3, State: models.SessionUploading},
		Job:     models.JobSnapshot{MatchID: "m1", Status: models.JobStatusRunning},
		ErrText: "whatever",
	}
	next := Reduce(s, ResetRequested{})
	assert.Equal(t, State{Step: StepDetails}, next)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "details", StepDetails.String())
	assert.Equal(t, "upload", StepUpload.String())
	assert.Equal(t, "analysis", StepAnalysis.String())
	assert.Equal(t, "complete", StepComplete.String())
	assert.Equal(t, "invalid", Step(42).String())
}
