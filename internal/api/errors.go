package api

import (
	"errors"
	"log"
	"net/http"

	"gymtrack/internal/repository"
	"gymtrack/internal/store"

	"github.com/gin-gonic/gin"
)

// respondRepositoryError translates the repository/store failure taxonomy
// into HTTP. This layer is the only consumer turning failures into
// user-visible text; nothing below it retries.
func respondRepositoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrValidation):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrDuplicateName):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrMissingKey):
		// Programming error upstream; log it, never swallow it silently.
		log.Printf("ERROR: repository operation on unpersisted record: %v", err)
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrStoreNotInitialized), errors.Is(err, store.ErrStoreUnavailable):
		abortWithError(c, http.StatusServiceUnavailable, "storage is unavailable, try again")
	case errors.Is(err, store.ErrWriteFailed):
		abortWithError(c, http.StatusConflict, err.Error())
	default:
		log.Printf("ERROR: unhandled repository error: %v", err)
		abortWithError(c, http.StatusInternalServerError, "internal error")
	}
}
