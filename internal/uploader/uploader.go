package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tactico/go-matchintake/internal/client"
	"github.com/tactico/go-matchintake/internal/config"
	"github.com/tactico/go-matchintake/internal/models"
	"github.com/tactico/go-matchintake/internal/pkg/logger"
	"github.com/tactico/go-matchintake/internal/pkg/xerr"
	"go.uber.org/zap"
)

// Events are the callbacks an upload session emits. Progress fires after
// every acknowledged chunk; exactly one of Complete or Failed fires per
// session. All callbacks receive a copy of the session.
type Events struct {
	OnProgress func(models.UploadSession)
	OnComplete func(models.UploadSession)
	OnFailed   func(models.UploadSession)
}

// Uploader transmits a video as an ordered sequence of bounded-size
// chunks. Chunks go out strictly in index order: the server is the single
// source of truth for "chunk i acknowledged", and a failed chunk is never
// skipped, otherwise the server-side reconstruction would contain a gap.
type Uploader struct {
	client *client.Client
	cfg    config.UploadConfig
	events Events

	mu      sync.Mutex
	session models.UploadSession
	cancel  context.CancelFunc
	gen     int // bumped on Begin/Cancel/Reset so a stale goroutine cannot mutate a discarded session
}

func New(c *client.Client, cfg config.UploadConfig, events Events) *Uploader {
	return &Uploader{
		client: c,
		cfg:    cfg,
		events: events,
		session: models.UploadSession{
			State: models.SessionIdle,
		},
	}
}

// Session returns a copy of the current session state.
func (u *Uploader) Session() models.UploadSession {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.session
}

// Begin starts transmitting src as chunks for the given match. It returns
// immediately; progress and the terminal outcome arrive via Events.
// Calling Begin while a session is uploading is an error.
func (u *Uploader) Begin(ctx context.Context, src io.ReaderAt, size int64, matchID, teamID string) error {
	if size <= 0 {
		return xerr.NewCodeError(xerr.ValidationFailedCode, errors.New("video file is empty"))
	}
	if matchID == "" || teamID == "" {
		return xerr.NewCodeError(xerr.ValidationFailedCode, errors.New("match and team identifiers are required"))
	}

	u.mu.Lock()
	if u.session.State == models.SessionUploading {
		u.mu.Unlock()
		return xerr.NewCodeError(xerr.ValidationFailedCode, errors.New("an upload is already in progress"))
	}

	totalChunks := int((size + u.cfg.ChunkSize - 1) / u.cfg.ChunkSize)
	u.gen++
	gen := u.gen
	u.session = models.UploadSession{
		MatchID:     matchID,
		TeamID:      teamID,
		FileSize:    size,
		ChunkSize:   u.cfg.ChunkSize,
		TotalChunks: totalChunks,
		State:       models.SessionUploading,
	}

	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.mu.Unlock()

	logger.Info("upload session started",
		zap.String("matchID", matchID),
		zap.String("size", humanize.Bytes(uint64(size))),
		zap.Int("totalChunks", totalChunks))

	go u.run(runCtx, gen, src, size, matchID, teamID, totalChunks)
	return nil
}

func (u *Uploader) run(ctx context.Context, gen int, src io.ReaderAt, size int64, matchID, teamID string, totalChunks int) {
	buf := make([]byte, u.cfg.ChunkSize)

	for index := 0; index < totalChunks; index++ {
		offset := int64(index) * u.cfg.ChunkSize
		length := u.cfg.ChunkSize
		if offset+length > size {
			length = size - offset
		}
		chunk := buf[:length]
		if _, err := src.ReadAt(chunk, offset); err != nil && err != io.EOF {
			u.fail(gen, fmt.Errorf("read chunk %d: %w", index, err))
			return
		}

		if err := u.sendWithRetry(ctx, matchID, teamID, index, totalChunks, chunk); err != nil {
			if ctx.Err() != nil {
				// Cancelled: Cancel() already reset the session, no terminal event.
				return
			}
			u.fail(gen, err)
			return
		}

		u.mu.Lock()
		if u.gen != gen {
			u.mu.Unlock()
			return
		}
		u.session.NextChunkIndex = index + 1
		u.session.UploadedChunks = index + 1
		session := u.session
		u.mu.Unlock()

		logger.Debug("chunk acknowledged",
			zap.String("matchID", matchID),
			zap.Int("index", index),
			zap.Int("percentage", session.Percentage()))
		if u.events.OnProgress != nil {
			u.events.OnProgress(session)
		}
	}

	u.mu.Lock()
	if u.gen != gen {
		u.mu.Unlock()
		return
	}
	u.session.State = models.SessionComplete
	session := u.session
	u.mu.Unlock()

	logger.Info("upload session complete", zap.String("matchID", matchID), zap.Int("chunks", totalChunks))
	if u.events.OnComplete != nil {
		u.events.OnComplete(session)
	}
}

// sendWithRetry transmits one chunk, retrying up to the configured ceiling
// with exponential backoff. It returns the last error once the ceiling is
// exceeded.
func (u *Uploader) sendWithRetry(ctx context.Context, matchID, teamID string, index, totalChunks int, data []byte) error {
	var lastErr error
	backoff := u.cfg.RetryBackoff

	for attempt := 1; attempt <= u.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := u.client.UploadChunk(ctx, matchID, teamID, index, totalChunks, data)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("chunk upload attempt failed",
			zap.String("matchID", matchID),
			zap.Int("index", index),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < u.cfg.MaxRetries {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
	}

	return xerr.NewCodeError(xerr.ChunkUploadExhaustedCode,
		fmt.Errorf("chunk %d failed after %d attempts: %w", index, u.cfg.MaxRetries, lastErr))
}

func (u *Uploader) fail(gen int, err error) {
	u.mu.Lock()
	if u.gen != gen {
		u.mu.Unlock()
		return
	}
	u.session.State = models.SessionFailed
	u.session.LastError = err.Error()
	session := u.session
	u.mu.Unlock()

	logger.Error("upload session failed", zap.String("matchID", session.MatchID), zap.Error(err))
	if u.events.OnFailed != nil {
		u.events.OnFailed(session)
	}
}

// Cancel aborts the in-flight chunk request if any and returns the
// session to idle. Idempotent; safe to call in any state.
func (u *Uploader) Cancel() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
	u.gen++
	u.session = models.UploadSession{State: models.SessionIdle}
}

// Reset returns the session to its pre-Begin state; callable in any state.
func (u *Uploader) Reset() {
	u.Cancel()
}
