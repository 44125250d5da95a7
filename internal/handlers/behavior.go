package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kestrelworks/adaptlearn-backend/internal/logger"
	"github.com/kestrelworks/adaptlearn-backend/internal/repos"
	"github.com/kestrelworks/adaptlearn-backend/internal/requestdata"
	"github.com/kestrelworks/adaptlearn-backend/internal/services"
)

type BehaviorHandler struct {
	log         *logger.Logger
	behaviorSvc services.BehaviorService
}

func NewBehaviorHandler(log *logger.Logger, behaviorSvc services.BehaviorService) *BehaviorHandler {
	return &BehaviorHandler{
		log:         log.With("handler", "BehaviorHandler"),
		behaviorSvc: behaviorSvc,
	}
}

// POST /api/events
// A user may only submit events for themselves; admins for anyone.
func (h *BehaviorHandler) RecordEvent(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", services.ErrNotAuthenticated)
		return
	}

	var input services.BehaviorEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if input.UserID == uuid.Nil {
		input.UserID = rd.UserID
	}
	if !rd.CanActFor(input.UserID) {
		RespondError(c, http.StatusForbidden, "forbidden", fmt.Errorf("cannot submit events for another user"))
		return
	}

	event, err := h.behaviorSvc.RecordEvent(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, services.ErrInvalidEvent) {
			RespondError(c, http.StatusBadRequest, "invalid_event", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// GET /api/events?user_id=&event_type=&course_id=&chapter_id=&start_date=&end_date=&limit=&offset=
func (h *BehaviorHandler) ListEvents(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", services.ErrNotAuthenticated)
		return
	}

	filter := repos.BehaviorEventFilter{
		EventType: c.Query("event_type"),
	}
	userID := rd.UserID
	if v := c.Query("user_id"); v != "" {
		parsed, err := uuid.Parse(v)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		userID = parsed
	}
	if !rd.CanActFor(userID) {
		RespondError(c, http.StatusForbidden, "forbidden", fmt.Errorf("cannot query another user's events"))
		return
	}
	filter.UserID = &userID

	if v := c.Query("course_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.CourseID = &id
		}
	}
	if v := c.Query("chapter_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.ChapterID = &id
		}
	}
	if v := c.Query("start_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := c.Query("end_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.EndDate = &t
		}
	}
	filter.Limit = intQuery(c, "limit", 100)
	filter.Offset = intQuery(c, "offset", 0)

	events, err := h.behaviorSvc.ListEvents(c.Request.Context(), filter)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"events": events, "count": len(events)})
}

// DELETE /api/users/:userID/behavior-data
func (h *BehaviorHandler) DeleteUserData(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	rows, err := h.behaviorSvc.DeleteUserData(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"deleted_rows": rows})
}

// POST /api/users/:userID/anonymize
func (h *BehaviorHandler) AnonymizeUserData(c *gin.Context) {
	userID, ok := authorizedTargetUser(c)
	if !ok {
		return
	}
	rows, err := h.behaviorSvc.AnonymizeUserData(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"anonymized_rows": rows})
}

// authorizedTargetUser parses :userID and enforces the self-or-admin
// ownership contract, writing the error response itself on failure.
func authorizedTargetUser(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		RespondError(c, http.StatusUnauthorized, "unauthorized", services.ErrNotAuthenticated)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return uuid.Nil, false
	}
	if !rd.CanActFor(userID) {
		RespondError(c, http.StatusForbidden, "forbidden", fmt.Errorf("not allowed for this user"))
		return uuid.Nil, false
	}
	return userID, true
}

func intQuery(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
