package xerr

import "errors"

var (
	ErrInternalServer = errors.New("internal server error")

	// Client request errors.
	ErrInvalidParams    = errors.New("invalid request parameters")
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidChunk     = errors.New("chunk index out of range")
	ErrSportUnsupported = errors.New("sport must be 'soccer'")

	// Resource not found.
	ErrTeamNotFound  = errors.New("team not found")
	ErrMatchNotFound = errors.New("match not found")
	ErrJobNotFound   = errors.New("no job found for this match")

	// Upload / analysis lifecycle.
	ErrTransientNetwork     = errors.New("transient network failure")
	ErrChunkUploadExhausted = errors.New("chunk retry ceiling exceeded")
	ErrJobFailed            = errors.New("analysis job failed")
	ErrJobCancelled         = errors.New("analysis job cancelled")

	ErrDatabaseError = errors.New("database operation failed")
)
