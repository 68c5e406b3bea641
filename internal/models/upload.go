package models

// SessionState is the lifecycle state of an upload session.
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionUploading SessionState = "uploading"
	SessionComplete  SessionState = "complete"
	SessionFailed    SessionState = "failed"
)

// UploadSession tracks one in-flight chunked upload. It is exclusively
// owned and mutated by the uploader; everyone else sees copies.
type UploadSession struct {
	MatchID        string       `json:"match_id"`
	TeamID         string       `json:"team_id"`
	FileSize       int64        `json:"file_size"`
	ChunkSize      int64        `json:"chunk_size"`
	TotalChunks    int          `json:"total_chunks"`
	NextChunkIndex int          `json:"next_chunk_index"`
	UploadedChunks int          `json:"uploaded_chunks"`
	State          SessionState `json:"state"`
	LastError      string       `json:"last_error,omitempty"`
}

// Percentage derives upload progress from acknowledged chunks only, so it
// never counts bytes the server has not confirmed.
func (s UploadSession) Percentage() int {
	if s.TotalChunks == 0 {
		return 0
	}
	return s.UploadedChunks * 100 / s.TotalChunks
}

// UploadChunkResponse is the chunk endpoint response body.
type UploadChunkResponse struct {
	ChunkIndex      int     `json:"chunk_index"`
	TotalChunks     int     `json:"total_chunks"`
	UploadedChunks  int     `json:"uploaded_chunks"`
	ProgressPercent float64 `json:"progress_percent"`
	Message         string  `json:"message"`
}

// UploadStatusResponse reports server-side upload progress for a match.
type UploadStatusResponse struct {
	MatchID         string  `json:"match_id"`
	TotalChunks     int     `json:"total_chunks"`
	UploadedChunks  int     `json:"uploaded_chunks"`
	UploadStatus    string  `json:"upload_status"`
	ProgressPercent float64 `json:"progress_percent"`
}
