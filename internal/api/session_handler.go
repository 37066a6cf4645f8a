package api

import (
	"fmt"
	"net/http"
	"time"

	"gymtrack/internal/repository"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes set recording and session queries.
type SessionHandler struct {
	exercises repository.ExerciseRepository
	sessions  repository.SessionRepository
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(exercises repository.ExerciseRepository, sessions repository.SessionRepository) *SessionHandler {
	return &SessionHandler{exercises: exercises, sessions: sessions}
}

// --- Request Structs ---

type RecordSetRequest struct {
	Weight float64 `json:"weight" binding:"required"`
	Reps   int     `json:"reps" binding:"required"`
	// Date is optional RFC3339; defaults to now. Sets on the same calendar
	// day merge into one session.
	Date *time.Time `json:"date"`
}

// RecordSet handles POST /exercises/:key/sets.
func (h *SessionHandler) RecordSet(c *gin.Context) {
	key, err := keyParam(c, "key")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req RecordSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	exercise, err := h.exercises.Get(c.Request.Context(), key)
	if err != nil {
		respondRepositoryError(c, err)
		return
	}
	if exercise == nil {
		abortWithError(c, http.StatusNotFound, "exercise not found")
		return
	}

	session, err := h.sessions.RecordSet(c.Request.Context(), exercise, req.Weight, req.Reps, date)
	if err != nil {
		respondRepositoryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// GetSessions handles GET /exercises/:key/sessions.
func (h *SessionHandler) GetSessions(c *gin.Context) {
	key, err := keyParam(c, "key")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := h.sessions.SessionsFor(c.Request.Context(), key)
	if err != nil {
		respondRepositoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// DeleteSession handles DELETE /sessions/:key. Removing the session the
// owning exercise points at also resets that pointer.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	key, err := keyParam(c, "key")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), key)
	if err != nil {
		respondRepositoryError(c, err)
		return
	}
	if session == nil {
		abortWithError(c, http.StatusNotFound, "session not found")
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), session); err != nil {
		respondRepositoryError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
