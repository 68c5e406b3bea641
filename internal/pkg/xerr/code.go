package xerr

// Business status codes shared by the client and the dev backend.
const (
	SuccessCode = 20000

	// --- client request errors (400xx) ---
	InvalidParamsCode    = 40000 // malformed request parameters
	ValidationFailedCode = 40001 // wizard guard not satisfied (missing opponent/date/file)
	InvalidChunkCode     = 40002 // chunk index out of range or bad total
	SportUnsupportedCode = 40003 // only soccer is accepted

	// --- resource not found (404xx) ---
	NotFoundCode      = 40400
	TeamNotFoundCode  = 40401
	MatchNotFoundCode = 40402
	JobNotFoundCode   = 40403 // job record not created yet; pollers treat this as status "unknown"

	// --- transport / upload lifecycle (460xx) ---
	TransientNetworkCode     = 46000 // single chunk or poll tick failed; retried or skipped
	ChunkUploadExhaustedCode = 46001 // per-chunk retry ceiling hit, session failed
	JobFailedCode            = 46002 // server reported the analysis job failed
	JobCancelledCode         = 46003 // server reported the analysis job cancelled

	// --- server internal errors (500xx) ---
	InternalServerErrorCode = 50000
	DatabaseErrorCode       = 50001
)
