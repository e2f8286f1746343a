// Package main provides the entry point for the sqlrun script server.
package main

import (
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"

	"github.com/sqlrun/sqlrun/pkg/dialect"
	"github.com/sqlrun/sqlrun/server/handlers"
	"github.com/sqlrun/sqlrun/server/runs"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "duckdb"
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" && driver == "duckdb" {
		dsn = ":memory:"
	}

	vendor := os.Getenv("DB_VENDOR")
	if vendor == "" {
		vendor = driver
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Failed to close database: %v", err)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	runMgr := runs.NewManager(1 * time.Hour)
	scriptHandler := handlers.NewScriptHandler(db, dialect.ForVendor(vendor), runMgr, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scripts", scriptHandler.SubmitScript)
		r.Get("/runs", scriptHandler.ListRuns)
		r.Get("/runs/{id}", scriptHandler.GetRun)
		r.Post("/runs/{id}/cancel", scriptHandler.CancelRun)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Printf("Failed to write health response: %v", err)
		}
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting sqlrun server on port %s (driver=%s)", port, driver)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err) //nolint:gocritic // exitAfterDefer: intentional - OS cleans up on exit
	}
}
