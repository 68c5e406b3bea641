package models

import "time"

// Team is a roster entry in the dashboard.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Sport     string    `json:"sport"`
	LogoURL   string    `json:"logo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Player belongs to a team.
type Player struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"team_id"`
	Name      string    `json:"name"`
	Position  string    `json:"position"`
	Number    int       `json:"number"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is a match record with its video upload bookkeeping.
type Match struct {
	ID             string    `json:"id"`
	TeamID         string    `json:"team_id"`
	Opponent       string    `json:"opponent"`
	Sport          string    `json:"sport"`
	MatchDate      string    `json:"match_date"`
	Status         string    `json:"status"`
	UploadStatus   string    `json:"upload_status,omitempty"`
	ChunksUploaded int       `json:"video_chunks_uploaded"`
	ChunksTotal    int       `json:"video_chunks_total"`
	CreatedAt      time.Time `json:"created_at"`
}

// MatchDraft holds the details the user must confirm before a match
// record is created. Validated at the wizard boundary, never sent to the
// network while incomplete.
type MatchDraft struct {
	TeamID   string `json:"team_id"`
	Opponent string `json:"opponent"`
	Sport    string `json:"sport"`
	Date     string `json:"match_date"`
}

// CreateMatchResponse is returned by the match creation endpoint. JobID is
// always empty at creation time: the analysis job is created server-side
// only after the final chunk lands.
type CreateMatchResponse struct {
	MatchID string `json:"match_id"`
	JobID   string `json:"job_id,omitempty"`
	Status  string `json:"status"`
}

// CreatePlayerRequest is the body for adding a player to a roster.
type CreatePlayerRequest struct {
	Name      string `json:"name" binding:"required"`
	Position  string `json:"position" binding:"required"`
	Number    int    `json:"number" binding:"required"`
	AvatarURL string `json:"avatar_url"`
}

// Analysis is the stored result of a completed analysis job.
type Analysis struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}
