package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tactico/go-matchintake/internal/config"
	"github.com/tactico/go-matchintake/internal/models"
	"github.com/tactico/go-matchintake/internal/pkg/xerr"
)

// Client is the HTTP client for the analysis backend. It owns the wire
// shapes of the contract; callers only see typed models and CodeErrors.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(cfg config.BackendConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// envelope matches the JSON envelope every endpoint responds with.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return xerr.NewCodeError(xerr.TransientNetworkCode, fmt.Errorf("request %s: %w", req.URL.Path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerr.NewCodeError(xerr.TransientNetworkCode, fmt.Errorf("read response %s: %w", req.URL.Path, err))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return xerr.NewCodeError(xerr.TransientNetworkCode, fmt.Errorf("decode response %s: %w", req.URL.Path, err))
	}
	if env.Code != xerr.SuccessCode {
		return xerr.NewCodeError(env.Code, fmt.Errorf("%s: %s", req.URL.Path, env.Message))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return xerr.NewCodeError(xerr.TransientNetworkCode, fmt.Errorf("decode payload %s: %w", req.URL.Path, err))
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

// CreateMatch creates a match record; called once at the Details -> Upload
// transition. The analysis job does not exist yet at this point.
func (c *Client) CreateMatch(ctx context.Context, draft models.MatchDraft) (*models.CreateMatchResponse, error) {
	form := url.Values{}
	form.Set("opponent", draft.Opponent)
	form.Set("sport", draft.Sport)
	form.Set("match_date", draft.Date)

	var resp models.CreateMatchResponse
	if err := c.postForm(ctx, "/api/teams/"+draft.TeamID+"/matches", form, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadChunk transmits one chunk as multipart form data. The server acks
// with its authoritative uploaded-chunk count.
func (c *Client) UploadChunk(ctx context.Context, matchID, teamID string, index, totalChunks int, data []byte) (*models.UploadChunkResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", fmt.Sprintf("chunk_%d.bin", index))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	for k, v := range map[string]string{
		"chunk_index":  strconv.Itoa(index),
		"total_chunks": strconv.Itoa(totalChunks),
		"match_id":     matchID,
		"team_id":      teamID,
	} {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload/video-chunk", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp models.UploadChunkResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetJobStatus fetches the analysis job for a match. A JobNotFoundCode
// error means the server has not created the job record yet; pollers
// normalize that to status "unknown".
func (c *Client) GetJobStatus(ctx context.Context, matchID string, scope models.JobScope) (*models.JobStatusResponse, error) {
	query := url.Values{}
	if scope != "" {
		query.Set("job_type", string(scope))
	}
	var resp models.JobStatusResponse
	if err := c.getJSON(ctx, "/api/matches/"+matchID+"/job", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetUploadStatus reports the server-side view of upload progress.
func (c *Client) GetUploadStatus(ctx context.Context, matchID string) (*models.UploadStatusResponse, error) {
	var resp models.UploadStatusResponse
	if err := c.getJSON(ctx, "/api/matches/"+matchID+"/upload-status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListTeams(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	if err := c.getJSON(ctx, "/api/teams", nil, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

func (c *Client) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	var team models.Team
	if err := c.getJSON(ctx, "/api/teams/"+teamID, nil, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *Client) ListPlayers(ctx context.Context, teamID string) ([]models.Player, error) {
	var players []models.Player
	if err := c.getJSON(ctx, "/api/teams/"+teamID+"/players", nil, &players); err != nil {
		return nil, err
	}
	return players, nil
}

func (c *Client) CreatePlayer(ctx context.Context, teamID string, req models.CreatePlayerRequest) (*models.Player, error) {
	var player models.Player
	if err := c.postJSON(ctx, "/api/teams/"+teamID+"/players", req, &player); err != nil {
		return nil, err
	}
	return &player, nil
}

func (c *Client) ListMatches(ctx context.Context, teamID string, limit int) ([]models.Match, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var matches []models.Match
	if err := c.getJSON(ctx, "/api/teams/"+teamID+"/matches", query, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func (c *Client) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	if err := c.getJSON(ctx, "/api/matches/"+matchID, nil, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

func (c *Client) GetAnalysis(ctx context.Context, matchID string) (*models.Analysis, error) {
	var analysis models.Analysis
	if err := c.getJSON(ctx, "/api/matches/"+matchID+"/analysis", nil, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// Health pings the backend.
func (c *Client) Health(ctx context.Context) error {
	return c.getJSON(ctx, "/health", nil, nil)
}
