package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tactico/go-matchintake/internal/client"
	"github.com/tactico/go-matchintake/internal/config"
	"github.com/tactico/go-matchintake/internal/models"
	"github.com/tactico/go-matchintake/internal/pkg/logger"
	"github.com/tactico/go-matchintake/internal/pkg/xerr"
	"go.uber.org/zap"
)

// Poller observes one (match, scope) analysis job to completion. It polls
// at a fixed interval, normalizes every response into a JobSnapshot and
// stops itself after delivering a terminal status. A transport or decode
// error on a single tick is logged and skipped; the next tick proceeds on
// schedule.
type Poller struct {
	client *client.Client
	cfg    config.PollerConfig

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	snapshot models.JobSnapshot
}

func New(c *client.Client, cfg config.PollerConfig) *Poller {
	return &Poller{client: c, cfg: cfg}
}

// Snapshot returns a copy of the last delivered snapshot.
func (p *Poller) Snapshot() models.JobSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Start begins polling and invokes onSnapshot exactly once per tick,
// whether or not the status changed. Calling Start while already running
// is a no-op. The poller stops itself once a terminal status is observed.
func (p *Poller) Start(ctx context.Context, matchID string, scope models.JobScope, onSnapshot func(models.JobSnapshot)) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.snapshot = models.JobSnapshot{MatchID: matchID, Status: models.JobStatusUnknown}
	p.mu.Unlock()

	logger.Info("job polling started",
		zap.String("matchID", matchID),
		zap.String("scope", string(scope)),
		zap.Duration("interval", p.cfg.Interval))

	go p.loop(ctx, matchID, scope, onSnapshot, stopCh)
}

func (p *Poller) loop(ctx context.Context, matchID string, scope models.JobScope, onSnapshot func(models.JobSnapshot), stopCh chan struct{}) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	consecutiveErrors := 0
	for {
		snapshot, err := p.poll(ctx, matchID, scope)
		if err != nil {
			consecutiveErrors++
			logger.Warn("poll tick failed",
				zap.String("matchID", matchID),
				zap.Int("consecutive", consecutiveErrors),
				zap.Error(err))
			if p.cfg.MaxConsecutiveErrors > 0 && consecutiveErrors >= p.cfg.MaxConsecutiveErrors {
				logger.Error("poller giving up after repeated transport errors", zap.String("matchID", matchID))
				p.finish()
				return
			}
		} else {
			consecutiveErrors = 0

			p.mu.Lock()
			// The server enforces monotonic progress while running, but a
			// stale read must not regress what the user already saw.
			if snapshot.Status == models.JobStatusRunning && snapshot.Progress < p.snapshot.Progress {
				snapshot.Progress = p.snapshot.Progress
			}
			p.snapshot = snapshot
			p.mu.Unlock()

			onSnapshot(snapshot)

			if snapshot.Status.IsTerminal() {
				logger.Info("job reached terminal status",
					zap.String("matchID", matchID),
					zap.String("status", string(snapshot.Status)))
				p.finish()
				return
			}
		}

		select {
		case <-ticker.C:
		case <-stopCh:
			return
		case <-ctx.Done():
			p.finish()
			return
		}
	}
}

// poll issues one status request and normalizes the response. A missing
// job record is a normal pre-creation state, not an error.
func (p *Poller) poll(ctx context.Context, matchID string, scope models.JobScope) (models.JobSnapshot, error) {
	resp, err := p.client.GetJobStatus(ctx, matchID, scope)
	if err != nil {
		var ce *xerr.CodeError
		if errors.As(err, &ce) && ce.Code == xerr.JobNotFoundCode {
			return models.JobSnapshot{
				MatchID:    matchID,
				Status:     models.JobStatusUnknown,
				ObservedAt: time.Now(),
			}, nil
		}
		return models.JobSnapshot{}, err
	}

	snapshot := models.JobSnapshot{
		JobID:      resp.JobID,
		MatchID:    resp.MatchID,
		Status:     resp.Status,
		Progress:   resp.Progress,
		ObservedAt: time.Now(),
	}
	if resp.Error != nil {
		snapshot.ErrorMessage = *resp.Error
	}
	if snapshot.Progress < 0 {
		snapshot.Progress = 0
	}
	if snapshot.Progress > 100 {
		snapshot.Progress = 100
	}
	return snapshot, nil
}

func (p *Poller) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.running = false
		close(p.stopCh)
		p.stopCh = nil
	}
}

// Stop cancels the pending tick. Safe to call multiple times or when the
// poller is not running.
func (p *Poller) Stop() {
	p.finish()
}
