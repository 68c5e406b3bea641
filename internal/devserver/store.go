package devserver

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tactico/go-matchintake/internal/models"
	"github.com/tactico/go-matchintake/internal/pkg/xerr"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store is the sqlite-backed state of the stub backend: teams, players,
// matches, jobs and analyses. Uploaded chunk bytes are never stored, only
// counted.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the database at path and applies the
// schema. An empty path uses an in-memory database.
func OpenStore(path string) (*Store, error) {
	dsn := "file::memory:?cache=shared&_pragma=foreign_keys(1)"
	if path != "" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Timestamps are stored as RFC3339 text: lexicographic order matches
// chronological order for UTC, and the driver round-trips strings safely.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// SeedDemo inserts the demo teams and rosters if the teams table is
// empty. Mirrors the platform's demo fixtures.
func (s *Store) SeedDemo(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	type seedPlayer struct {
		name     string
		position string
		number   int
	}
	seed := []struct {
		name    string
		players []seedPlayer
	}{
		{"UOP Tigers", []seedPlayer{
			{"Alex Rodriguez", "Forward", 9},
			{"Marcus Johnson", "Midfielder", 10},
			{"David Chen", "Defender", 4},
			{"James Wilson", "Goalkeeper", 1},
		}},
		{"UC California Bears", []seedPlayer{
			{"Carlos Martinez", "Forward", 7},
			{"Ethan Brown", "Midfielder", 8},
			{"Liam Davis", "Defender", 3},
		}},
	}

	now := nowRFC3339()
	for _, team := range seed {
		teamID := uuid.NewString()
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO teams (id, name, sport, created_at) VALUES (?, ?, 'soccer', ?)`,
			teamID, team.name, now); err != nil {
			return err
		}
		for _, p := range team.players {
			if _, err := s.db.ExecContext(ctx,
				`INSERT INTO players (id, team_id, name, position, number, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), teamID, p.name, p.position, p.number, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) ListTeams(ctx context.Context) ([]models.Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, sport, logo_url, created_at FROM teams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		var t models.Team
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Name, &t.Sport, &t.LogoURL, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt = parseTime(createdAt)
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (s *Store) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	var t models.Team
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, sport, logo_url, created_at FROM teams WHERE id = ?`, teamID).
		Scan(&t.ID, &t.Name, &t.Sport, &t.LogoURL, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xerr.NewCodeError(xerr.TeamNotFoundCode, xerr.ErrTeamNotFound)
	}
	if err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

func (s *Store) ListPlayers(ctx context.Context, teamID string) ([]models.Player, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, name, position, number, avatar_url, created_at
		 FROM players WHERE team_id = ? ORDER BY number`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var p models.Player
		var createdAt string
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Name, &p.Position, &p.Number, &p.AvatarURL, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *Store) CreatePlayer(ctx context.Context, teamID string, req models.CreatePlayerRequest) (*models.Player, error) {
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	p := models.Player{
		ID:        uuid.NewString(),
		TeamID:    teamID,
		Name:      req.Name,
		Position:  req.Position,
		Number:    req.Number,
		AvatarURL: req.AvatarURL,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (id, team_id, name, position, number, avatar_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TeamID, p.Name, p.Position, p.Number, p.AvatarURL, p.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateMatch(ctx context.Context, teamID string, draft models.MatchDraft) (*models.Match, error) {
	if _, err := s.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	m := models.Match{
		ID:           uuid.NewString(),
		TeamID:       teamID,
		Opponent:     draft.Opponent,
		Sport:        draft.Sport,
		MatchDate:    draft.Date,
		Status:       "new",
		UploadStatus: "pending",
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (id, team_id, opponent, sport, match_date, status, upload_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TeamID, m.Opponent, m.Sport, m.MatchDate, m.Status, m.UploadStatus, m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var m models.Match
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, opponent, sport, match_date, status, upload_status,
		        chunks_uploaded, chunks_total, created_at
		 FROM matches WHERE id = ?`, matchID).
		Scan(&m.ID, &m.TeamID, &m.Opponent, &m.Sport, &m.MatchDate, &m.Status,
			&m.UploadStatus, &m.ChunksUploaded, &m.ChunksTotal, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xerr.NewCodeError(xerr.MatchNotFoundCode, xerr.ErrMatchNotFound)
	}
	if err != nil {
		return nil, err
	}
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

func (s *Store) ListMatches(ctx context.Context, teamID string, limit int) ([]models.Match, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, opponent, sport, match_date, status, upload_status,
		        chunks_uploaded, chunks_total, created_at
		 FROM matches WHERE team_id = ? ORDER BY match_date DESC LIMIT ?`, teamID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		var createdAt string
		if err := rows.Scan(&m.ID, &m.TeamID, &m.Opponent, &m.Sport, &m.MatchDate, &m.Status,
			&m.UploadStatus, &m.ChunksUploaded, &m.ChunksTotal, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// RecordChunk advances the server-side chunk count for a match. The
// count never regresses: re-sent chunks (client retries after a lost
// ack) are idempotent.
func (s *Store) RecordChunk(ctx context.Context, matchID string, chunkIndex, totalChunks int) (*models.Match, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches
		 SET chunks_uploaded = MAX(chunks_uploaded, ?),
		     chunks_total = ?,
		     upload_status = 'uploading'
		 WHERE id = ?`, chunkIndex+1, totalChunks, matchID)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, xerr.NewCodeError(xerr.MatchNotFoundCode, xerr.ErrMatchNotFound)
	}
	return s.GetMatch(ctx, matchID)
}

// FinalizeUpload marks the upload complete and queues the analysis job
// if one does not already exist for this (match, job_type).
func (s *Store) FinalizeUpload(ctx context.Context, matchID string, totalChunks int, scope models.JobScope) (jobID string, err error) {
	_, err = s.db.ExecContext(ctx,
		`UPDATE matches
		 SET upload_status = 'uploaded', chunks_uploaded = ?, chunks_total = ?
		 WHERE id = ?`, totalChunks, totalChunks, matchID)
	if err != nil {
		return "", err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM jobs WHERE match_id = ? AND job_type = ?`, matchID, string(scope)).Scan(&jobID)
	if err == nil {
		return jobID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	jobID = uuid.NewString()
	now := nowRFC3339()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, match_id, job_type, status, progress, created_at, updated_at)
		 VALUES (?, ?, ?, 'queued', 0, ?, ?)`, jobID, matchID, string(scope), now, now)
	if err != nil {
		return "", err
	}
	return jobID, nil
}

// GetJobByMatch returns the job for a (match, job_type) pair, or a
// JobNotFoundCode error when the record has not been created yet.
func (s *Store) GetJobByMatch(ctx context.Context, matchID string, scope models.JobScope) (*models.JobStatusResponse, error) {
	query := `SELECT id, match_id, status, progress, error_message, updated_at FROM jobs WHERE match_id = ?`
	args := []any{matchID}
	if scope != "" {
		query += ` AND job_type = ?`
		args = append(args, string(scope))
	}

	var resp models.JobStatusResponse
	var errMsg sql.NullString
	var updatedAt string
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&resp.JobID, &resp.MatchID, &resp.Status, &resp.Progress, &errMsg, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xerr.NewCodeError(xerr.JobNotFoundCode, xerr.ErrJobNotFound)
	}
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		resp.Error = &errMsg.String
	}
	resp.UpdatedAt = parseTime(updatedAt)
	return &resp, nil
}

func (s *Store) GetAnalysis(ctx context.Context, matchID string) (*models.Analysis, error) {
	var a models.Analysis
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, match_id, summary, created_at FROM analyses WHERE match_id = ?`, matchID).
		Scan(&a.ID, &a.MatchID, &a.Summary, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xerr.NewCodeError(xerr.NotFoundCode, errors.New("no analysis found for this match"))
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}
