package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apimiddleware "github.com/livereview-cr/livereview-cr/internal/api/middleware"
	"github.com/livereview-cr/livereview-cr/internal/jobqueue"
	"github.com/livereview-cr/livereview-cr/internal/reviewmodel"
	"github.com/livereview-cr/livereview-cr/internal/store"
)

// Server holds the collaborators every route handler needs: the async job
// queue that runs reviews, and the store that answers completed-review
// reads. Grounded on the teacher's Server struct in internal/api/server.go,
// which holds db/jobQueue/dashboardManager directly rather than behind an
// interface layer.
type Server struct {
	echo  *echo.Echo
	jobs  *jobqueue.JobQueue
	store *store.Store
}

// NewServer wires an echo.Echo with spec.md §6's five routes and the rate
// limit middleware.
func NewServer(jobs *jobqueue.JobQueue, st *store.Store, requestsPerMinute int) *Server {
	e := echo.New()
	e.HideBanner = true

	s := &Server{echo: e, jobs: jobs, store: st}

	e.Use(apimiddleware.RateLimit(requestsPerMinute))

	e.GET("/health", s.health)
	e.POST("/api/reviews", s.triggerReview)
	e.GET("/api/reviews/history", s.history)
	e.GET("/api/reviews/:id", s.getReview)
	e.GET("/api/reviews/:id/status", s.getStatus)

	return s
}

// Start begins serving HTTP on addr, blocking until the server stops.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// health implements GET /health: liveness plus a cheap database
// reachability check, per spec.md §6's `{status, database}` contract.
func (s *Server) health(c echo.Context) error {
	database := "ok"
	if err := s.store.Ping(c.Request().Context()); err != nil {
		database = "unreachable"
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "database": database})
}

// triggerReview implements POST /api/reviews: validates the request,
// queues the review asynchronously, and returns its review id immediately
// with status in_progress.
func (s *Server) triggerReview(c echo.Context) error {
	var req TriggerReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DiffText == "" && req.ProviderURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "either diff_text or provider_url is required")
	}
	if req.DiffText != "" && req.ProviderURL != "" {
		return echo.NewHTTPError(http.StatusBadRequest, "only one of diff_text or provider_url may be set")
	}

	reviewID, err := s.jobs.Enqueue(c.Request().Context(), req.toChangeSource(), req.toReviewConfig())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusAccepted, TriggerReviewResponse{ReviewID: reviewID, Status: string(jobqueue.StatusInProgress)})
}

// getReview implements GET /api/reviews/:id: returns the completed review
// result, or 404 if it has not completed (or never existed).
func (s *Server) getReview(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid review id")
	}

	result, err := s.store.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toReviewResultView(result))
}

// getStatus implements GET /api/reviews/:id/status, reporting
// in_progress/completed/failed per spec.md §6.
func (s *Server) getStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid review id")
	}

	if status, detail, ok := s.jobs.Status(id); ok && status != jobqueue.StatusCompleted {
		return c.JSON(http.StatusOK, StatusResponse{ReviewID: id, Status: string(status), Detail: detail})
	}

	if _, err := s.store.Get(c.Request().Context(), id); err == nil {
		return c.JSON(http.StatusOK, StatusResponse{ReviewID: id, Status: string(jobqueue.StatusCompleted)})
	}

	return echo.NewHTTPError(http.StatusNotFound, "unknown review id")
}

// history implements GET /api/reviews/history: lists past reviews filtered
// by query parameters (repository, pr_number, start_date, end_date,
// severity, category, limit, offset), per spec.md §6's bit-exact contract.
func (s *Server) history(c echo.Context) error {
	params := store.QueryParams{
		Repository:  c.QueryParam("repository"),
		MinSeverity: reviewmodel.Severity(c.QueryParam("severity")),
		Category:    reviewmodel.Category(c.QueryParam("category")),
	}
	if v := c.QueryParam("pr_number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid pr_number")
		}
		params.PRNumber = n
		params.HasPRNumber = true
	}
	if v := c.QueryParam("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid start_date")
		}
		params.Start = t
	}
	if v := c.QueryParam("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid end_date")
		}
		params.End = t
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		params.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset")
		}
		params.Offset = n
	}

	results, err := s.store.Query(c.Request().Context(), params)
	if err != nil {
		return httpError(err)
	}

	views := make([]reviewResult, len(results))
	for i := range results {
		views[i] = toReviewResultView(&results[i])
	}
	return c.JSON(http.StatusOK, historyResponse{Reviews: views})
}
