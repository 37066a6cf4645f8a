package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gymtrack/internal/repository"
	"gymtrack/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	exercises repository.ExerciseRepository,
	sessions repository.SessionRepository,
	snapshots service.SnapshotService, // nil when export is disabled
	staticDir string,
) {
	authHandler := NewAuthHandler(authService)
	exerciseHandler := NewExerciseHandler(exercises)
	sessionHandler := NewSessionHandler(exercises, sessions)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"userId":   c.GetString(ContextUserIDKey),
				"userName": c.GetString(ContextUserNameKey),
			})
		})

		// --- Exercise Routes ---
		exerciseGroup := protected.Group("/exercises")
		{
			exerciseGroup.POST("", exerciseHandler.CreateExercise)
			exerciseGroup.GET("", exerciseHandler.GetExercises)
			exerciseGroup.PATCH("/:key", exerciseHandler.UpdateExercise)

			// --- Set / Session Routes ---
			exerciseGroup.POST("/:key/sets", sessionHandler.RecordSet)
			exerciseGroup.GET("/:key/sessions", sessionHandler.GetSessions)
		}
		protected.DELETE("/sessions/:key", sessionHandler.DeleteSession)

		if snapshots != nil {
			snapshotHandler := NewSnapshotHandler(snapshots)
			protected.POST("/snapshots", snapshotHandler.CreateSnapshot)
		}
	}

	if staticDir != "" {
		registerStatic(router, staticDir)
	}
}

// registerStatic serves the frontend with an index.html fallback for client
// side routes. Registered API routes always win over files.
func registerStatic(router *gin.Engine, dir string) {
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		p := filepath.Join(dir, filepath.Clean("/"+c.Request.URL.Path))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			c.File(p)
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	})
}
