package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hszk-dev/clipscout/internal/domain/model"
	"github.com/hszk-dev/clipscout/internal/domain/repository"
	"github.com/hszk-dev/clipscout/internal/usecase"
)

// Request/Response types

type VideoResponse struct {
	VideoID      string `json:"video_id"`
	VideoURL     string `json:"video_url"`
	AuthorID     string `json:"author_id"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Title        string `json:"title,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
	PlayURL      string `json:"play_url,omitempty"`
	// Camel-cased fields consumed by the frontend player.
	MediaURL     string `json:"mediaUrl,omitempty"`
	AuthorIDAlt  string `json:"authorId"`
}

type VideosResponse struct {
	Keywords   []string        `json:"keywords"`
	Total      int             `json:"total"`
	FromCache  bool            `json:"from_cache"`
	NextCursor *int            `json:"next_cursor"`
	Videos     []VideoResponse `json:"videos"`
	Error      string          `json:"error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
}

type RefreshRequest struct {
	Keywords []string `json:"keywords"`
	Limit    int      `json:"limit"`
	Cursor   *int     `json:"cursor,omitempty"`
}

type RefreshResponse struct {
	TaskID   string   `json:"task_id"`
	Keywords []string `json:"keywords"`
	Limit    int      `json:"limit"`
}

// VideoHandlerConfig holds request defaults.
type VideoHandlerConfig struct {
	DefaultKeywords []string
	DefaultLimit    int
	MaxLimit        int
}

// VideoHandler handles video-related HTTP requests.
// queue and snapshots are optional; their endpoints answer 503 when nil.
type VideoHandler struct {
	videos    usecase.VideoService
	snapshots usecase.SnapshotService
	queue     repository.MessageQueue
	cfg       VideoHandlerConfig
	logger    *slog.Logger
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(
	videos usecase.VideoService,
	snapshots usecase.SnapshotService,
	queue repository.MessageQueue,
	cfg VideoHandlerConfig,
	logger *slog.Logger,
) *VideoHandler {
	if cfg.DefaultLimit < 1 {
		cfg.DefaultLimit = 100
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	return &VideoHandler{
		videos:    videos,
		snapshots: snapshots,
		queue:     queue,
		cfg:       cfg,
		logger:    logger,
	}
}

// List handles GET /v1/videos?q=&limit=&force_refresh=&cursor=
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, isTrue(r.URL.Query().Get("force_refresh")))
}

// Refresh handles GET /v1/videos/refresh, a forced List.
func (h *VideoHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, true)
}

func (h *VideoHandler) serve(w http.ResponseWriter, r *http.Request, force bool) {
	query := r.URL.Query()
	keywords := h.resolveKeywords(model.SplitKeywords(query.Get("q")))

	limit, ok := h.parseLimit(w, query.Get("limit"))
	if !ok {
		return
	}

	cursor, ok := parseCursor(w, query.Get("cursor"))
	if !ok {
		return
	}

	result, err := h.videos.GetVideos(r.Context(), usecase.FetchRequest{
		Keywords:     keywords,
		Limit:        limit,
		ForceRefresh: force,
		Cursor:       cursor,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	JSON(w, http.StatusOK, toVideosResponse(model.NormalizeKeywords(keywords), result))
}

// Enqueue handles POST /v1/refresh by publishing an async refresh task.
func (h *VideoHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		Error(w, http.StatusServiceUnavailable, "queue_disabled", "Async refresh is not configured")
		return
	}

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = h.cfg.DefaultLimit
	}
	if limit < 1 {
		Error(w, http.StatusBadRequest, "invalid_limit", "Limit must be a positive integer")
		return
	}
	limit = min(limit, h.cfg.MaxLimit)

	task := repository.RefreshTask{
		TaskID:   uuid.New(),
		Keywords: model.NormalizeKeywords(h.resolveKeywords(req.Keywords)),
		Limit:    limit,
		Cursor:   req.Cursor,
	}
	if len(task.Keywords) == 0 {
		Error(w, http.StatusBadRequest, "invalid_keywords", "At least one keyword is required")
		return
	}

	if err := h.queue.PublishRefreshTask(r.Context(), task); err != nil {
		h.logger.Error("failed to publish refresh task",
			slog.String("task_id", task.TaskID.String()),
			slog.String("error", err.Error()),
		)
		Error(w, http.StatusServiceUnavailable, "queue_unavailable", "Failed to enqueue refresh task")
		return
	}

	JSON(w, http.StatusAccepted, RefreshResponse{
		TaskID:   task.TaskID.String(),
		Keywords: task.Keywords,
		Limit:    task.Limit,
	})
}

// Snapshot handles GET /v1/snapshots?q=&cursor= by streaming the published artifact.
func (h *VideoHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		Error(w, http.StatusServiceUnavailable, "snapshots_disabled", "Snapshot storage is not configured")
		return
	}

	query := r.URL.Query()
	keywords := h.resolveKeywords(model.SplitKeywords(query.Get("q")))
	cursor, ok := parseCursor(w, query.Get("cursor"))
	if !ok {
		return
	}

	body, err := h.snapshots.Open(r.Context(), keywords, cursor)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("snapshot stream interrupted", slog.String("error", err.Error()))
	}
}

func (h *VideoHandler) resolveKeywords(keywords []string) []string {
	if len(model.NormalizeKeywords(keywords)) == 0 {
		return h.cfg.DefaultKeywords
	}
	return keywords
}

// parseCursor writes a 400 and returns false on a malformed cursor.
func parseCursor(w http.ResponseWriter, raw string) (*int, bool) {
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		Error(w, http.StatusBadRequest, "invalid_cursor", "Cursor must be a non-negative integer")
		return nil, false
	}
	return &n, true
}

// parseLimit writes a 400 and returns false on a malformed limit.
func (h *VideoHandler) parseLimit(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return h.cfg.DefaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		Error(w, http.StatusBadRequest, "invalid_limit", "Limit must be a positive integer")
		return 0, false
	}
	return min(n, h.cfg.MaxLimit), true
}

func (h *VideoHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		Error(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, repository.ErrObjectNotFound):
		Error(w, http.StatusNotFound, "snapshot_not_found", "No snapshot has been published for these keywords")
	default:
		h.logger.Error("request failed", slog.String("error", err.Error()))
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

func isTrue(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "true")
}

func toVideosResponse(keywords []string, result *model.FetchResult) VideosResponse {
	videos := make([]VideoResponse, 0, len(result.Videos))
	for _, v := range result.Videos {
		videos = append(videos, toVideoResponse(v))
	}
	return VideosResponse{
		Keywords:   keywords,
		Total:      len(videos),
		FromCache:  result.FromCache,
		NextCursor: result.NextCursor,
		Videos:     videos,
		Error:      result.Error,
		ErrorCode:  result.Failure.String(),
	}
}

func toVideoResponse(v model.Video) VideoResponse {
	return VideoResponse{
		VideoID:      v.ID,
		VideoURL:     v.URL,
		AuthorID:     v.AuthorID,
		ThumbnailURL: v.ThumbnailURL,
		Title:        v.Title,
		DownloadURL:  v.DownloadURL,
		PlayURL:      v.PlayURL,
		MediaURL:     v.MediaURL(),
		AuthorIDAlt:  v.AuthorID,
	}
}
