package api

import (
	"errors"
	"log"
	"net/http"

	"gymtrack/internal/service"

	"github.com/gin-gonic/gin"
)

// SnapshotHandler exposes the S3 snapshot export.
type SnapshotHandler struct {
	snapshots service.SnapshotService
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(snapshots service.SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snapshots: snapshots}
}

// CreateSnapshot handles POST /snapshots: dump both stores to object
// storage and hand back a presigned download URL.
func (h *SnapshotHandler) CreateSnapshot(c *gin.Context) {
	result, err := h.snapshots.Export(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrExportDisabled) {
			abortWithError(c, http.StatusNotImplemented, err.Error())
			return
		}
		log.Printf("ERROR: snapshot export failed: %v", err)
		abortWithError(c, http.StatusBadGateway, "snapshot export failed")
		return
	}
	c.JSON(http.StatusCreated, result)
}
