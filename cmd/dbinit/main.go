package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"tasktrack-api/storage"
)

func main() {
	_ = godotenv.Load()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	path := os.Getenv("DATABASE_PATH")
	if path == "" {
		path = "tasktrack.db"
	}
	db, err := storage.Open(ctx, path)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := db.Close(); err != nil {
		log.Fatalf("close database: %v", err)
	}
	log.Infof("schema ready at %s", path)

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	queue := os.Getenv("TASK_EVENTS_QUEUE")
	if connStr == "" || queue == "" {
		log.Info("event queue not configured; skipping")
		log.Info("storage init complete")
		return
	}
	publisher, err := storage.NewQueuePublisher(connStr, queue)
	if err != nil {
		log.Fatalf("queue client: %v", err)
	}
	if err := publisher.EnsureQueue(ctx); err != nil {
		log.Fatalf("create queue: %v", err)
	}

	log.Info("storage init complete")
}
