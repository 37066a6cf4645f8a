package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymtrack/internal/api"
	"gymtrack/internal/config"
	"gymtrack/internal/repository"
	"gymtrack/internal/service"
	"gymtrack/internal/storage"
	"gymtrack/internal/store"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("Starting GymTrack server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	log.Println("Configuration loaded.")

	// --- Indexed Store ---
	db, err := store.Open(store.Options{
		Dir:     cfg.Data.Dir,
		Version: cfg.Data.SchemaVersion,
	}, repository.StoreDefs())
	if err != nil {
		log.Fatalf("FATAL: Could not open store: %v", err)
	}
	defer func() {
		log.Println("Closing store...")
		if err := db.Close(); err != nil {
			log.Printf("ERROR: Failed to close store: %v", err)
		}
	}()
	log.Printf("Store opened at %s (schema version %d).", cfg.Data.Dir, cfg.Data.SchemaVersion)

	// --- Repositories ---
	log.Println("Initializing repositories...")
	cache := repository.NewCache()
	exerciseRepo := repository.NewExerciseRepository(db, cache)
	sessionRepo := repository.NewSessionRepository(db, cache, exerciseRepo)

	// --- Services ---
	log.Println("Initializing services...")
	authService := service.NewAuthService(cfg.JWT.Secret, cfg.JWT.Expiration)

	var snapshotService service.SnapshotService
	if cfg.Export.Enabled {
		objects, err := storage.NewS3Storage(cfg.Export)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize S3 storage: %v", err)
		}
		snapshotService = service.NewSnapshotService(db, objects)
	} else {
		log.Println("Snapshot export disabled.")
	}

	// --- Seed (development only) ---
	if cfg.Seed.Enabled {
		seedExercises(exerciseRepo)
	}

	// --- Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware

	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, authService, exerciseRepo, sessionRepo, snapshotService, cfg.Server.StaticDir)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}

// seedExercises creates a few starter exercises; reruns hit the duplicate
// check and are skipped.
func seedExercises(exercises repository.ExerciseRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	seeds := []struct {
		name    string
		muscles []string
	}{
		{"Squat", []string{"quads"}},
		{"Bench Press", []string{"chest", "triceps"}},
		{"Deadlift", []string{"back", "hamstrings"}},
	}
	for _, s := range seeds {
		if _, err := exercises.Create(ctx, s.name, s.muscles, time.Now()); err != nil {
			if errors.Is(err, repository.ErrDuplicateName) {
				continue
			}
			log.Printf("ERROR: Failed to seed exercise %q: %v", s.name, err)
		}
	}
	log.Println("Seed exercises ensured.")
}
