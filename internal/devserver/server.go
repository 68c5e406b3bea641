package devserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tactico/go-matchintake/internal/config"
	"github.com/tactico/go-matchintake/internal/models"
	"github.com/tactico/go-matchintake/internal/pkg/logger"
	"github.com/tactico/go-matchintake/internal/pkg/xerr"
	"go.uber.org/zap"
)

// maxTotalChunks caps a single upload at 100 chunks (1 GB at the default
// chunk size), matching the production backend's limit.
const maxTotalChunks = 100

// Server is the local stub backend. It implements the same HTTP contract
// as the production analysis backend so the intake pipeline can be
// exercised end to end without it: chunk bytes are counted and discarded,
// analysis jobs are simulated by the processor.
type Server struct {
	cfg   config.DevServerConfig
	store *Store
}

func NewServer(cfg config.DevServerConfig, store *Store) *Server {
	return &Server{cfg: cfg, store: store}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.GET("/teams", s.listTeams)
		api.GET("/teams/:team_id", s.getTeam)
		api.GET("/teams/:team_id/players", s.listPlayers)
		api.POST("/teams/:team_id/players", s.createPlayer)
		api.GET("/teams/:team_id/matches", s.listMatches)
		api.POST("/teams/:team_id/matches", s.createMatch)

		api.GET("/matches/:match_id", s.getMatch)
		api.GET("/matches/:match_id/job", s.getMatchJob)
		api.GET("/matches/:match_id/upload-status", s.getUploadStatus)
		api.GET("/matches/:match_id/analysis", s.getAnalysis)

		api.POST("/upload/video-chunk", s.uploadChunk)
	}

	r.NoRoute(func(c *gin.Context) {
		xerr.Error(c, http.StatusNotFound, xerr.NotFoundCode, "route not found")
	})
	return r
}

// Run serves until ctx is cancelled. The job processor runs alongside.
func (s *Server) Run(ctx context.Context) error {
	procCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	proc := &processor{store: s.store, tick: s.cfg.JobTick, deadline: s.cfg.JobDeadline}
	go proc.run(procCtx)

	srv := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("dev backend listening", zap.String("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// respondError maps a CodeError to the right HTTP status and envelope.
func respondError(c *gin.Context, err error) {
	code := xerr.CodeOf(err)
	status := http.StatusInternalServerError
	switch {
	case code >= 40400 && code < 40500:
		status = http.StatusNotFound
	case code >= 40000 && code < 40100:
		status = http.StatusBadRequest
	}
	xerr.Error(c, status, code, err.Error())
}

func (s *Server) health(c *gin.Context) {
	xerr.Success(c, http.StatusOK, "healthy", gin.H{"job_processor": "running"})
}

func (s *Server) listTeams(c *gin.Context) {
	teams, err := s.store.ListTeams(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", teams)
}

func (s *Server) getTeam(c *gin.Context) {
	team, err := s.store.GetTeam(c.Request.Context(), c.Param("team_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", team)
}

func (s *Server) listPlayers(c *gin.Context) {
	players, err := s.store.ListPlayers(c.Request.Context(), c.Param("team_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", players)
}

func (s *Server) createPlayer(c *gin.Context) {
	var req models.CreatePlayerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.AbortWithError(c, http.StatusBadRequest, xerr.InvalidParamsCode, "invalid request body")
		return
	}
	player, err := s.store.CreatePlayer(c.Request.Context(), c.Param("team_id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "player created", player)
}

func (s *Server) listMatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	matches, err := s.store.ListMatches(c.Request.Context(), c.Param("team_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", matches)
}

func (s *Server) createMatch(c *gin.Context) {
	draft := models.MatchDraft{
		TeamID:   c.Param("team_id"),
		Opponent: c.PostForm("opponent"),
		Sport:    c.PostForm("sport"),
		Date:     c.PostForm("match_date"),
	}
	if draft.Opponent == "" || draft.Date == "" {
		xerr.AbortWithError(c, http.StatusBadRequest, xerr.InvalidParamsCode, "opponent and match_date are required")
		return
	}
	if draft.Sport != "soccer" {
		xerr.AbortWithError(c, http.StatusBadRequest, xerr.SportUnsupportedCode, xerr.ErrSportUnsupported.Error())
		return
	}

	match, err := s.store.CreateMatch(c.Request.Context(), draft.TeamID, draft)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.Info("match created", zap.String("matchID", match.ID), zap.String("opponent", match.Opponent))

	// The analysis job is created only after the final chunk lands.
	xerr.Success(c, http.StatusOK, "match created", models.CreateMatchResponse{
		MatchID: match.ID,
		Status:  "created",
	})
}

func (s *Server) getMatch(c *gin.Context) {
	match, err := s.store.GetMatch(c.Request.Context(), c.Param("match_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", match)
}

func (s *Server) getMatchJob(c *gin.Context) {
	scope := models.JobScope(c.Query("job_type"))
	job, err := s.store.GetJobByMatch(c.Request.Context(), c.Param("match_id"), scope)
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", job)
}

func (s *Server) getUploadStatus(c *gin.Context) {
	match, err := s.store.GetMatch(c.Request.Context(), c.Param("match_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	status := models.UploadStatusResponse{
		MatchID:        match.ID,
		TotalChunks:    match.ChunksTotal,
		UploadedChunks: match.ChunksUploaded,
		UploadStatus:   match.UploadStatus,
	}
	if match.ChunksTotal > 0 {
		status.ProgressPercent = float64(match.ChunksUploaded) / float64(match.ChunksTotal) * 100
	}
	xerr.Success(c, http.StatusOK, "ok", status)
}

func (s *Server) getAnalysis(c *gin.Context) {
	analysis, err := s.store.GetAnalysis(c.Request.Context(), c.Param("match_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	xerr.Success(c, http.StatusOK, "ok", analysis)
}

func (s *Server) uploadChunk(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		xerr.AbortWithError(c, http.StatusBadRequest, xerr.InvalidParamsCode, "chunk file not found")
		return
	}
	matchID := c.PostForm("match_id")
	teamID := c.PostForm("team_id")
	chunkIndexStr := c.PostForm("chunk_index")
	totalChunksStr := c.PostForm("total_chunks")
	if matchID == "" || teamID == "" || chunkIndexStr == "" || totalChunksStr == "" {
		xerr.AbortWithError(c, http.StatusBadRequest, xerr.InvalidParamsCode, "missing required form fields")
		return
	}

	chunkIndex, err := strconv.Atoi(chunkIndexStr)
	if err != nil {
		xerr.AbortWithError(c, http.StatusBadRequest, xerr.InvalidParamsCode, "invalid chunk_index format")
		return
	}
	totalChunks, err := strconv.Atoi(totalChunksStr)
	if err != nil {
		xerr.AbortWithError(c, http.StatusBadRequest, xerr.InvalidParamsCode, "invalid total_chunks format")
		return
	}
	if totalChunks <= 0 || totalChunks > maxTotalChunks {
		xerr.AbortWithError(c, http.StatusBadRequest, xerr.InvalidChunkCode,
			fmt.Sprintf("invalid total chunks (1-%d allowed)", maxTotalChunks))
		return
	}
	if chunkIndex < 0 || chunkIndex >= totalChunks {
		xerr.AbortWithError(c, http.StatusBadRequest, xerr.InvalidChunkCode, xerr.ErrInvalidChunk.Error())
		return
	}

	// Count and discard the bytes; the stub never stores video.
	f, err := file.Open()
	if err != nil {
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "failed to open chunk")
		return
	}
	received, err := io.Copy(io.Discard, f)
	f.Close()
	if err != nil {
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "failed to read chunk")
		return
	}

	match, err := s.store.RecordChunk(c.Request.Context(), matchID, chunkIndex, totalChunks)
	if err != nil {
		respondError(c, err)
		return
	}
	logger.Debug("chunk received",
		zap.String("matchID", matchID),
		zap.Int("index", chunkIndex),
		zap.Int64("bytes", received))

	if chunkIndex == totalChunks-1 {
		jobID, err := s.store.FinalizeUpload(c.Request.Context(), matchID, totalChunks, models.ScopeEnhanced)
		if err != nil {
			respondError(c, err)
			return
		}
		logger.Info("upload finalized, analysis queued",
			zap.String("matchID", matchID),
			zap.String("jobID", jobID),
			zap.Int("chunks", totalChunks))
	}

	xerr.Success(c, http.StatusOK, "chunk uploaded", models.UploadChunkResponse{
		ChunkIndex:      chunkIndex,
		TotalChunks:     totalChunks,
		UploadedChunks:  match.ChunksUploaded,
		ProgressPercent: float64(match.ChunksUploaded) / float64(totalChunks) * 100,
		Message:         "Chunk uploaded successfully",
	})
}
