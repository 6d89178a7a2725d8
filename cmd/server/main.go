package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"audiora/internal/analytics"
	"audiora/internal/book"
	"audiora/internal/config"
	"audiora/internal/httpapi"
	"audiora/internal/kvstore"
	"audiora/internal/logger"
	"audiora/internal/notify"
	"audiora/internal/progress"
	"audiora/internal/session"
	"audiora/internal/syncstream"
	"audiora/internal/udpnotify"
	"audiora/internal/user"
	"audiora/pkg/database"
	"audiora/pkg/models"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatal("create data dir", "error", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("open database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal("migrate", "error", err)
	}

	store := kvstore.New(db, log)

	users := user.NewRepo(store, log)
	books := book.NewRepo(store, log)
	sessions := session.NewRecorder(store, books, log)
	aggregator := progress.NewAggregator(books, sessions, log)
	analyticsSvc := analytics.NewService(store, log)
	notifications := notify.NewRepo(store, log)

	// Seed a demo shelf if a sample file is present
	if _, err := os.Stat(cfg.SeedPath); err == nil {
		if list, err := database.LoadBooksFromJSON(cfg.SeedPath); err != nil {
			log.Warn("load seed file", "path", cfg.SeedPath, "error", err)
		} else if n, err := database.SeedBooks(context.Background(), store, "demo", list); err != nil {
			log.Warn("seed books", "error", err)
		} else {
			log.Info("seeded demo books", "count", n)
		}
	}

	events := make(chan models.ProgressUpdate, 100)
	syncServer := syncstream.New(cfg.SyncAddr, events, log)
	go func() {
		if err := syncServer.Start(); err != nil {
			log.Fatal("sync stream", "error", err)
		}
	}()

	udpServer := udpnotify.New(cfg.NotifyAddr, log)
	go func() {
		if err := udpServer.Start(); err != nil {
			log.Fatal("udp announcements", "error", err)
		}
	}()

	hub := notify.NewHub(log)
	go hub.Run()

	api := &httpapi.API{
		Users:         users,
		Books:         books,
		Sessions:      sessions,
		Progress:      aggregator,
		Analytics:     analyticsSvc,
		Notifications: notifications,
		Hub:           hub,
		UDP:           udpServer,
		Events:        events,
		JWTSecret:     []byte(cfg.JWTSecret),
		TokenTTL:      cfg.TokenTTL,
		Log:           log,
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type", "X-Requested-With"},
	}))
	api.RegisterRoutes(r)

	log.Info("http api listening", "addr", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal("http server", "error", err)
	}
}
