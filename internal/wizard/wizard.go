package wizard

import (
	"errors"

	"github.com/tactico/go-matchintake/internal/models"
	"github.com/tactico/go-matchintake/internal/pkg/xerr"
)

// Step is a stage of the intake wizard. Steps are ordered and linear; the
// only backward move is the explicit full reset to StepDetails.
type Step int

const (
	StepDetails Step = iota
	StepUpload
	StepAnalysis
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepDetails:
		return "details"
	case StepUpload:
		return "upload"
	case StepAnalysis:
		return "analysis"
	case StepComplete:
		return "complete"
	default:
		return "invalid"
	}
}

// State is the wizard context. It is immutable from the outside; every
// transition goes through Reduce.
type State struct {
	Step    Step
	Draft   models.MatchDraft
	MatchID string
	Upload  models.UploadSession
	Job     models.JobSnapshot
	ErrText string // latest surfaced error, cleared on forward progress
}

// Event is a step-advancing or state-updating occurrence. Events are
// produced by the controller's callbacks and applied one at a time.
type Event interface {
	isEvent()
}

// MatchCreated fires once the backend has assigned a match ID.
type MatchCreated struct {
	Draft   models.MatchDraft
	MatchID string
}

// UploadProgressed carries an acknowledged-chunk update.
type UploadProgressed struct {
	Session models.UploadSession
}

// UploadCompleted is the uploader's terminal success event.
type UploadCompleted struct {
	Session models.UploadSession
}

// UploadFailed is the uploader's terminal failure event.
type UploadFailed struct {
	Session models.UploadSession
}

// JobObserved carries one poller snapshot.
type JobObserved struct {
	Snapshot models.JobSnapshot
}

// ResetRequested discards everything and returns to StepDetails.
type ResetRequested struct{}

func (MatchCreated) isEvent()     {}
func (UploadProgressed) isEvent() {}
func (UploadCompleted) isEvent()  {}
func (UploadFailed) isEvent()     {}
func (JobObserved) isEvent()      {}
func (ResetRequested) isEvent()   {}

// ValidateDraft checks the Details guard: opponent, date and team must be
// present before a match record may be created.
func ValidateDraft(draft models.MatchDraft) error {
	switch {
	case draft.TeamID == "":
		return xerr.NewCodeError(xerr.ValidationFailedCode, errors.New("team is required"))
	case draft.Opponent == "":
		return xerr.NewCodeError(xerr.ValidationFailedCode, errors.New("opponent is required"))
	case draft.Date == "":
		return xerr.NewCodeError(xerr.ValidationFailedCode, errors.New("match date is required"))
	}
	return nil
}

// Reduce applies one event to the wizard state and returns the next
// state. It is pure: no I/O, no timers, no mutation of its inputs. Events
// that are not legal in the current step leave the state unchanged, which
// also shields the machine from stale uploader or poller callbacks that
// land after a reset.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case MatchCreated:
		if s.Step != StepDetails || e.MatchID == "" || ValidateDraft(e.Draft) != nil {
			return s
		}
		s.Draft = e.Draft
		s.MatchID = e.MatchID
		s.Step = StepUpload
		s.ErrText = ""
		return s

	case UploadProgressed:
		if s.Step != StepUpload || e.Session.MatchID != s.MatchID {
			return s
		}
		s.Upload = e.Session
		return s

	case UploadCompleted:
		if s.Step != StepUpload || e.Session.MatchID != s.MatchID {
			return s
		}
		s.Upload = e.Session
		s.Step = StepAnalysis
		s.ErrText = ""
		return s

	case UploadFailed:
		// Stay in Upload; the user may retry with the same file.
		if s.Step != StepUpload || e.Session.MatchID != s.MatchID {
			return s
		}
		s.Upload = e.Session
		s.ErrText = e.Session.LastError
		return s

	case JobObserved:
		if s.Step != StepAnalysis || e.Snapshot.MatchID != s.MatchID {
			return s
		}
		s.Job = e.Snapshot
		switch e.Snapshot.Status {
		case models.JobStatusCompleted:
			s.Step = StepComplete
			s.ErrText = ""
		case models.JobStatusFailed, models.JobStatusCancelled:
			// Completion is reserved for "completed"; surface the error
			// and hold the step.
			s.ErrText = e.Snapshot.ErrorMessage
			if s.ErrText == "" {
				s.ErrText = "analysis " + string(e.Snapshot.Status)
			}
		}
		return s

	case ResetRequested:
		return State{Step: StepDetails}
	}

	return s
}
