package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gymtrack/internal/repository"

	"github.com/gin-gonic/gin"
)

// ExerciseHandler exposes the exercise repository operations. Handlers talk
// to repositories only, never to the store adapter.
type ExerciseHandler struct {
	exercises repository.ExerciseRepository
}

// NewExerciseHandler creates a new ExerciseHandler.
func NewExerciseHandler(exercises repository.ExerciseRepository) *ExerciseHandler {
	return &ExerciseHandler{exercises: exercises}
}

// --- Request Structs ---

type CreateExerciseRequest struct {
	Name    string   `json:"name" binding:"required"`
	Muscles []string `json:"muscles"`
}

type UpdateExerciseRequest struct {
	Name    *string  `json:"name"`
	Muscles []string `json:"muscles"`
}

func keyParam(c *gin.Context, name string) (uint64, error) {
	key, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || key == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return key, nil
}

// CreateExercise handles POST /exercises.
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	var req CreateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	exercise, err := h.exercises.Create(c.Request.Context(), req.Name, req.Muscles, time.Now())
	if err != nil {
		respondRepositoryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exercise)
}

// UpdateExercise handles PATCH /exercises/:key. Only the supplied fields
// change; UpdatedAt always advances.
func (h *ExerciseHandler) UpdateExercise(c *gin.Context) {
	key, err := keyParam(c, "key")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
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

	if err := h.exercises.Update(c.Request.Context(), exercise, req.Name, req.Muscles, time.Now()); err != nil {
		respondRepositoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, exercise)
}

// GetExercises handles GET /exercises: the full list, exercised ones first
// ordered by recency of neglect, brand-new ones last.
func (h *ExerciseHandler) GetExercises(c *gin.Context) {
	exercises, err := h.exercises.FetchAll(c.Request.Context())
	if err != nil {
		respondRepositoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, exercises)
}
