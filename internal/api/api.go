// Package api exposes the supervisor's ops surface over HTTP: health,
// run status, target inspection, and a graceful stop trigger.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/goprospect/internal/database"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/logger"
	"github.com/jonesrussell/goprospect/internal/pool"
	"github.com/jonesrussell/goprospect/internal/stats"
)

// Target listing limits.
const (
	defaultTargetLimit = 100
	maxTargetLimit     = 500
)

// Pool is the slice of the worker fleet the ops surface serves from.
type Pool interface {
	// Snapshot returns worker heartbeats and target counts.
	Snapshot(ctx context.Context) (*pool.Snapshot, error)

	// Stop begins a graceful shutdown of the fleet.
	Stop()

	// Stopping reports whether a shutdown is underway.
	Stopping() bool
}

// TargetReader lists targets for the inspection endpoint.
type TargetReader interface {
	List(ctx context.Context, params database.ListTargetsParams) ([]*domain.Target, error)
}

// TargetParker shelves a target so no worker claims it until an operator
// resets it.
type TargetParker interface {
	Park(ctx context.Context, id int64, note string) error
}

// CompanyCounter reports the size of the canonical store.
type CompanyCounter interface {
	Count(ctx context.Context) (int64, error)
}

// RejectCounter summarizes the reject log by reason.
type RejectCounter interface {
	CountByReason(ctx context.Context) (map[string]int, error)
}

// Deps carries everything the router serves from. Logger and Pool are
// required; nil readers disable their sections of the status payload.
type Deps struct {
	Logger    logger.Interface
	Pool      Pool
	Targets   TargetReader
	Parker    TargetParker
	Companies CompanyCounter
	Rejects   RejectCounter
	Stats     *stats.Collector
}

// StatusResponse is the GET /api/v1/status payload.
type StatusResponse struct {
	Pool      *pool.Snapshot `json:"pool"`
	Run       *stats.Summary `json:"run,omitempty"`
	Companies *int64         `json:"companies,omitempty"`
	Rejects   map[string]int `json:"rejects_by_reason,omitempty"`
}

// TargetsResponse is the GET /api/v1/targets payload.
type TargetsResponse struct {
	Targets []*domain.Target `json:"targets"`
	Count   int              `json:"count"`
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(deps Deps) *gin.Engine {
	// Disable Gin's default logging
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(deps.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"stopping": deps.Pool.Stopping(),
		})
	})

	v1 := router.Group("/api/v1")
	v1.GET("/status", handleStatus(deps))
	v1.GET("/targets", handleTargets(deps))
	v1.POST("/targets/:id/park", handlePark(deps))
	v1.POST("/stop", handleStop(deps))

	return router
}

// loggingMiddleware creates a middleware that logs HTTP requests
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", statusCode,
			"latency", latency,
		)
	}
}

// handleStatus assembles the run status: fleet snapshot, run counters,
// store size, and reject reasons.
func handleStatus(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		snapshot, err := deps.Pool.Snapshot(ctx)
		if err != nil {
			deps.Logger.Error("failed to snapshot pool", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to snapshot pool"})
			return
		}

		resp := StatusResponse{Pool: snapshot}

		if deps.Stats != nil {
			summary := deps.Stats.Summary()
			resp.Run = &summary
		}

		if deps.Companies != nil {
			count, countErr := deps.Companies.Count(ctx)
			if countErr != nil {
				deps.Logger.Error("failed to count companies", "error", countErr.Error())
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count companies"})
				return
			}
			resp.Companies = &count
		}

		if deps.Rejects != nil {
			reasons, reasonErr := deps.Rejects.CountByReason(ctx)
			if reasonErr != nil {
				deps.Logger.Error("failed to count rejects", "error", reasonErr.Error())
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count rejects"})
				return
			}
			resp.Rejects = reasons
		}

		c.JSON(http.StatusOK, resp)
	}
}

// handleTargets lists targets filtered by status and state.
func handleTargets(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Targets == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "target inspection is not wired"})
			return
		}

		status := c.Query("status")
		if status != "" && !validStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + strconv.Quote(status)})
			return
		}

		limit := defaultTargetLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}
		limit = min(limit, maxTargetLimit)

		targets, err := deps.Targets.List(c.Request.Context(), database.ListTargetsParams{
			Status: status,
			State:  c.Query("state"),
			Limit:  limit,
		})
		if err != nil {
			deps.Logger.Error("failed to list targets", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list targets"})
			return
		}

		c.JSON(http.StatusOK, TargetsResponse{Targets: targets, Count: len(targets)})
	}
}

// handlePark shelves one target. Parked targets sit outside the claim
// query until an operator resets them.
func handlePark(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Parker == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "target parking is not wired"})
			return
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "target id must be a positive integer"})
			return
		}

		note := c.Query("note")
		if note == "" {
			note = domain.NoteParkedByOperator
		}

		if parkErr := deps.Parker.Park(c.Request.Context(), id, note); parkErr != nil {
			if errors.Is(parkErr, database.ErrTargetNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
				return
			}
			deps.Logger.Error("failed to park target", "target_id", id, "error", parkErr.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to park target"})
			return
		}

		deps.Logger.Info("target parked over HTTP",
			"target_id", id, "note", note, "remote", c.ClientIP())
		c.JSON(http.StatusOK, gin.H{"parked": id, "note": note})
	}
}

// handleStop triggers a graceful shutdown. Stop blocks until workers
// drain, so it runs off the request goroutine and the handler answers
// immediately.
func handleStop(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Pool.Stopping() {
			c.JSON(http.StatusOK, gin.H{"stopping": true, "message": "shutdown already underway"})
			return
		}

		deps.Logger.Info("stop requested over HTTP", "remote", c.ClientIP())
		go deps.Pool.Stop()

		c.JSON(http.StatusAccepted, gin.H{"stopping": true})
	}
}

func validStatus(status string) bool {
	switch status {
	case domain.TargetStatusPlanned,
		domain.TargetStatusInProgress,
		domain.TargetStatusDone,
		domain.TargetStatusFailed,
		domain.TargetStatusStuck,
		domain.TargetStatusParked:
		return true
	}
	return false
}
