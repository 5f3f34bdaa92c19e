// Package audit exposes the audit trail over HTTP: one ingestion endpoint and
// the role-scoped reporting reads. All routes live under /api/v1/audit and run
// behind the auth middleware, which places the acting user in the request
// context.
package audit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scholaris/scholaris/internal/audit"
	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/db/models"
)

// Handlers serves the audit trail endpoints.
type Handlers struct {
	recorder *audit.Recorder
	query    *audit.QueryService
}

// NewHandlers creates the audit API handlers.
func NewHandlers(recorder *audit.Recorder, query *audit.QueryService) *Handlers {
	return &Handlers{recorder: recorder, query: query}
}

// appendRequest is the ingestion payload. The actor is never part of the body;
// it always comes from the authenticated request context.
type appendRequest struct {
	Category         string           `json:"category"`
	RecordID         int64            `json:"record_id"`
	Action           string           `json:"action"`
	Description      string           `json:"description"`
	OldValue         *models.Snapshot `json:"old_value"`
	NewValue         *models.Snapshot `json:"new_value"`
	AffectedUserName string           `json:"affected_user_name"`
}

// AppendEntry records one audit entry. Unlike the in-process sink used by
// business mutations, a storage failure here surfaces as 500: there is no
// enclosing operation to protect.
func (h *Handlers) AppendEntry(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "authentication required",
		})
		return
	}

	var req appendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "invalid request body: " + err.Error(),
		})
		return
	}

	id, err := h.recorder.Append(c.Request.Context(), audit.Event{
		Category:         req.Category,
		RecordID:         req.RecordID,
		Action:           req.Action,
		Description:      req.Description,
		OldValue:         req.OldValue,
		NewValue:         req.NewValue,
		AffectedUserName: req.AffectedUserName,
		Actor:            actor,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"id":      id,
	})
}

// ListEntries returns one filtered, paginated page of the trail.
func (h *Handlers) ListEntries(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "authentication required",
		})
		return
	}

	params := audit.ListParams{
		Category: c.Query("category"),
		Action:   c.Query("action"),
		DateFrom: c.Query("date_from"),
		DateTo:   c.Query("date_to"),
	}
	var err error
	if params.Limit, err = intQuery(c, "limit"); err != nil {
		return
	}
	if params.Offset, err = intQuery(c, "offset"); err != nil {
		return
	}
	actorID, err := intQuery(c, "actor_id")
	if err != nil {
		return
	}
	params.ActorID = int64(actorID)

	result, err := h.query.List(c.Request.Context(), actor, params)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entries": presentEntries(result.Entries),
		"count":   len(result.Entries),
		"total":   result.Total,
		"limit":   result.Limit,
		"offset":  result.Offset,
	})
}

// RecentEntries returns the newest entries within the caller's scope.
func (h *Handlers) RecentEntries(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "authentication required",
		})
		return
	}

	limit, err := intQuery(c, "limit")
	if err != nil {
		return
	}

	entries, err := h.query.Recent(c.Request.Context(), actor, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entries": presentEntries(entries),
		"count":   len(entries),
	})
}

// EntriesByCategory returns the newest entries of one named category. Naming a
// category outside the caller's scope is a 403, not an empty list.
func (h *Handlers) EntriesByCategory(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "authentication required",
		})
		return
	}

	entries, err := h.query.ByCategory(c.Request.Context(), actor, c.Param("category"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entries": presentEntries(entries),
		"count":   len(entries),
	})
}

// EntriesByActor returns the newest entries recorded by one actor, visible
// within the caller's scope.
func (h *Handlers) EntriesByActor(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "authentication required",
		})
		return
	}

	actorID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "actor id must be an integer",
		})
		return
	}

	entries, err := h.query.ByActor(c.Request.Context(), actor, actorID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entries": presentEntries(entries),
		"count":   len(entries),
	})
}

// Stats returns the aggregated dashboard report for the caller's scope.
func (h *Handlers) Stats(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "authentication required",
		})
		return
	}

	report, err := h.query.Stats(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"overall":     report.Overall,
		"by_category": report.ByCategory,
	})
}

// GetEntry returns one entry by id.
func (h *Handlers) GetEntry(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "authentication required",
		})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "entry id must be an integer",
		})
		return
	}

	entry, err := h.query.Get(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"entry":   presentEntry(entry),
	})
}

// intQuery parses an optional integer query parameter, writing a 400 response
// itself when the value is not an integer. Absent parameters yield zero.
func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": name + " must be an integer",
		})
		return 0, err
	}
	return v, nil
}

// writeError maps domain errors onto HTTP statuses. Storage failures are
// logged with detail but reported generically.
func writeError(c *gin.Context, err error) {
	switch {
	case audit.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": err.Error(),
		})
	case errors.Is(err, audit.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"message": "access denied",
		})
	case errors.Is(err, audit.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "audit entry not found",
		})
	default:
		slog.Error("audit request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "internal server error",
		})
	}
}
