package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/smallken99/youtube-mp4-downloader/internal/api"
	"github.com/smallken99/youtube-mp4-downloader/internal/config"
	"github.com/smallken99/youtube-mp4-downloader/internal/downloader"
	"github.com/smallken99/youtube-mp4-downloader/internal/progress"
	"github.com/smallken99/youtube-mp4-downloader/internal/server"
)

func main() {
	godotenv.Load()
	cfg := config.Load()

	// 1. Filesystem: transient storage for in-flight artifacts
	if err := server.PrepareFilesystem(cfg); err != nil {
		log.Fatalf(">>> ❌ Error preparing filesystem: %v", err)
	}

	// 2. Services: progress registry and download engine
	registry := progress.NewRegistry(cfg.QueueDepth)
	engine := downloader.NewEngine(cfg.TempDir)
	handler := api.NewHandler(engine, registry, cfg)

	// 3. Router with middleware
	router := api.NewRouter(handler)

	// 4. Background sweep of orphaned files and idle queues
	server.StartJanitor(cfg, registry)

	fmt.Println(">>> 🎬 YouTube MP4 Downloader Started")
	fmt.Printf(">>> ⚡ Port: %s\n", cfg.Port)

	log.Fatal(http.ListenAndServe(cfg.Port, router))
}
