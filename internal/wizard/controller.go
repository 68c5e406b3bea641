package wizard

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tactico/go-matchintake/internal/client"
	"github.com/tactico/go-matchintake/internal/config"
	"github.com/tactico/go-matchintake/internal/models"
	"github.com/tactico/go-matchintake/internal/pkg/logger"
	"github.com/tactico/go-matchintake/internal/pkg/xerr"
	"github.com/tactico/go-matchintake/internal/poller"
	"github.com/tactico/go-matchintake/internal/uploader"
	"go.uber.org/zap"
)

// Uploads is the slice of the uploader the controller depends on.
type Uploads interface {
	Begin(ctx context.Context, src io.ReaderAt, size int64, matchID, teamID string) error
	Cancel()
	Reset()
	Session() models.UploadSession
}

// Polls is the slice of the poller the controller depends on.
type Polls interface {
	Start(ctx context.Context, matchID string, scope models.JobScope, onSnapshot func(models.JobSnapshot))
	Stop()
}

// Controller composes the uploader and the poller into the four-step
// intake wizard. It exclusively owns the wizard State; the other two
// components reach it only through their emitted events, and every event
// is applied under one mutex, so step transitions are never processed
// concurrently.
type Controller struct {
	client   *client.Client
	uploads  Uploads
	analysis Polls
	scope    models.JobScope

	mu    sync.Mutex
	state State

	// retained so a failed upload can be retried without re-selecting the file
	src  io.ReaderAt
	size int64

	onChange func(State)
}

// Option customizes a Controller.
type Option func(*Controller)

// WithOnChange registers an observer invoked with a state copy after
// every applied event. Used by UIs; must not call back into the
// controller.
func WithOnChange(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithScope selects which analysis job kind the wizard tracks.
func WithScope(scope models.JobScope) Option {
	return func(c *Controller) { c.scope = scope }
}

// NewController wires a controller against a backend client using the
// configured upload and polling behavior.
func NewController(cfg *config.Config, api *client.Client, opts ...Option) *Controller {
	c := &Controller{
		client: api,
		scope:  models.ScopeEnhanced,
		state:  State{Step: StepDetails},
	}
	c.uploads = uploader.New(api, cfg.Upload, uploader.Events{
		OnProgress: func(s models.UploadSession) { c.apply(UploadProgressed{Session: s}) },
		OnComplete: c.handleUploadComplete,
		OnFailed:   func(s models.UploadSession) { c.apply(UploadFailed{Session: s}) },
	})
	c.analysis = poller.New(api, cfg.Poller)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the wizard state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// apply runs one event through the reducer and notifies the observer.
func (c *Controller) apply(ev Event) State {
	c.mu.Lock()
	next := Reduce(c.state, ev)
	changed := next != c.state
	c.state = next
	c.mu.Unlock()

	if changed && c.onChange != nil {
		c.onChange(next)
	}
	return next
}

// SubmitDetails validates the draft, creates the match record remotely
// and advances the wizard to Upload. This is the only transition that
// performs its side effect before the step change: the match ID is the
// Upload entry guard.
func (c *Controller) SubmitDetails(ctx context.Context, draft models.MatchDraft) error {
	c.mu.Lock()
	if c.state.Step != StepDetails {
		c.mu.Unlock()
		return xerr.NewCodeError(xerr.ValidationFailedCode, errors.New("match details already confirmed"))
	}
	c.mu.Unlock()

	if err := ValidateDraft(draft); err != nil {
		return err
	}
	if draft.Sport == "" {
		draft.Sport = "soccer"
	}

	resp, err := c.client.CreateMatch(ctx, draft)
	if err != nil {
		logger.Error("match creation failed", zap.String("opponent", draft.Opponent), zap.Error(err))
		return err
	}
	logger.Info("match created", zap.String("matchID", resp.MatchID), zap.String("opponent", draft.Opponent))

	c.apply(MatchCreated{Draft: draft, MatchID: resp.MatchID})
	return nil
}

// StartUpload hands the selected file to the uploader. Requires the
// wizard to be in Upload with a created match.
func (c *Controller) StartUpload(ctx context.Context, src io.ReaderAt, size int64) error {
	c.mu.Lock()
	if c.state.Step != StepUpload || c.state.MatchID == "" {
		c.mu.Unlock()
		return xerr.NewCodeError(xerr.ValidationFailedCode, errors.New("confirm match details before uploading"))
	}
	matchID, teamID := c.state.MatchID, c.state.Draft.TeamID
	c.src, c.size = src, size
	c.mu.Unlock()

	return c.uploads.Begin(ctx, src, size, matchID, teamID)
}

// RetryUpload re-runs the whole session with the previously selected
// file after a terminal upload failure. Per-chunk retries happen inside
// the uploader; this is the user-driven whole-session retry.
func (c *Controller) RetryUpload(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Step != StepUpload {
		c.mu.Unlock()
		return xerr.NewCodeError(xerr.ValidationFailedCode, errors.New("no upload to retry"))
	}
	if c.src == nil {
		c.mu.Unlock()
		return xerr.NewCodeError(xerr.ValidationFailedCode, errors.New("no file selected"))
	}
	matchID, teamID := c.state.MatchID, c.state.Draft.TeamID
	src, size := c.src, c.size
	c.mu.Unlock()

	c.uploads.Reset()
	return c.uploads.Begin(ctx, src, size, matchID, teamID)
}

// handleUploadComplete advances to Analysis and starts polling the
// analysis job created by the backend on receipt of the final chunk.
func (c *Controller) handleUploadComplete(s models.UploadSession) {
	next := c.apply(UploadCompleted{Session: s})
	if next.Step != StepAnalysis {
		return
	}
	c.analysis.Start(context.Background(), s.MatchID, c.scope, func(snap models.JobSnapshot) {
		c.apply(JobObserved{Snapshot: snap})
	})
}

// Reset performs the full backward transition: cancel any in-flight
// upload, stop polling and discard the whole wizard context. Used both
// for "back to details" and "analyze another".
func (c *Controller) Reset() {
	c.uploads.Cancel()
	c.analysis.Stop()

	c.mu.Lock()
	c.src, c.size = nil, 0
	c.mu.Unlock()

	c.apply(ResetRequested{})
	logger.Info("wizard reset")
}
