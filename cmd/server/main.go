// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/kabulhq/kabul/internal/cache"
	"github.com/kabulhq/kabul/internal/database"
	"github.com/kabulhq/kabul/internal/handlers"
	"github.com/kabulhq/kabul/internal/middleware"
	"github.com/kabulhq/kabul/internal/store"
)

func main() {
	logger := logrus.New()
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()

	if err := database.ConnectDB(ctx); err != nil {
		// Games still run without persistence; results just are not recorded.
		logger.WithError(err).Warn("database unavailable, results will not be persisted")
	}

	var docs store.DocumentStore
	if rs, err := store.NewRedisStore(ctx); err != nil {
		logger.WithError(err).Warn("redis unavailable, falling back to in-memory document store")
		docs = store.NewMemoryStore()
	} else {
		docs = rs
	}

	history, err := cache.ConnectActionLogger()
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, action history disabled")
		history = nil
	}

	srv := handlers.NewGameServer(logger, docs, history)

	mux := http.NewServeMux()
	mux.Handle("/game/create", middleware.LogMiddleware(logger)(srv))
	mux.Handle("/game/state/", middleware.LogMiddleware(logger)(srv))
	mux.Handle("/game/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GameWSHandler(logger, srv),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}
