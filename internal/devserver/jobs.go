package devserver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tactico/go-matchintake/internal/pkg/logger"
	"go.uber.org/zap"
)

// processor simulates the analysis workers: queued jobs start running,
// running jobs gain progress every tick and finish with a canned
// analysis. The real algorithm lives in the production backend; the stub
// only exercises the status contract the intake client depends on.
type processor struct {
	store    *Store
	tick     time.Duration
	deadline time.Duration
}

// progressStep is how much a running job advances per tick.
const progressStep = 20

func (p *processor) run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.store.startQueuedJobs(ctx); err != nil {
				logger.Warn("job processor: start queued failed", zap.Error(err))
			}
			if err := p.store.advanceRunningJobs(ctx); err != nil {
				logger.Warn("job processor: advance running failed", zap.Error(err))
			}
		case <-sweep.C:
			n, err := p.store.failStaleJobs(ctx, p.deadline)
			if err != nil {
				logger.Warn("job processor: stale sweep failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("job processor: failed stale jobs", zap.Int64("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Store) startQueuedJobs(ctx context.Context) error {
	now := nowRFC3339()
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'running', started_at = ?, updated_at = ? WHERE status = 'queued'`,
		now, now)
	return err
}

func (s *Store) advanceRunningJobs(ctx context.Context) error {
	now := nowRFC3339()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress = MIN(progress + ?, 100), updated_at = ? WHERE status = 'running'`,
		progressStep, now); err != nil {
		return err
	}

	// Finish jobs that hit full progress and attach a canned analysis.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, match_id FROM jobs WHERE status = 'running' AND progress >= 100`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type done struct{ jobID, matchID string }
	var finished []done
	for rows.Next() {
		var d done
		if err := rows.Scan(&d.jobID, &d.matchID); err != nil {
			return err
		}
		finished = append(finished, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, d := range finished {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, now, d.jobID); err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO analyses (id, match_id, summary, created_at)
			 VALUES (?, ?, 'Simulated analysis: possession balanced, pressing effective in the final third.', ?)`,
			uuid.NewString(), d.matchID, now); err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE matches SET status = 'analyzed' WHERE id = ?`, d.matchID); err != nil {
			return err
		}
		logger.Info("job completed", zap.String("jobID", d.jobID), zap.String("matchID", d.matchID))
	}
	return nil
}

// failStaleJobs marks queued/running jobs older than the deadline as
// failed, so a crashed worker never leaves a client polling forever.
func (s *Store) failStaleJobs(ctx context.Context, deadline time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-deadline).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
		 SET status = 'failed', error_message = 'processing timeout', updated_at = ?
		 WHERE status IN ('queued', 'running') AND created_at < ?`,
		nowRFC3339(), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
