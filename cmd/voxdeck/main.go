package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/voxdeck/voxdeck/internal/api"
	"github.com/voxdeck/voxdeck/internal/config"
	"github.com/voxdeck/voxdeck/internal/controller"
	"github.com/voxdeck/voxdeck/internal/notify"
	"github.com/voxdeck/voxdeck/internal/speech"
	"github.com/voxdeck/voxdeck/internal/storage/sqlite"
	"github.com/voxdeck/voxdeck/internal/tts"
	"github.com/voxdeck/voxdeck/internal/websocket"
	"github.com/voxdeck/voxdeck/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	logFormat := cfg.Logging.Format
	if logFormat == "" {
		logFormat = "console"
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting VoxDeck server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Create SQLite storage
	dbDir := filepath.Dir(cfg.Storage.SQLitePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbDir))
		os.Exit(1)
	}

	historyStorage, err := sqlite.NewHistoryStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer historyStorage.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	settingsStorage, err := sqlite.NewSettingsStorage(historyStorage.GetDB(), log)
	if err != nil {
		log.Error("Failed to create settings storage", logger.Error(err))
		os.Exit(1)
	}

	// Create notification hub
	hub := notify.NewHub(time.Duration(cfg.Notifications.DefaultDurationMs)*time.Millisecond, log)
	defer hub.Close()

	// Create WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Forward notification events to connected front-ends
	events, cancelEvents := hub.Subscribe()
	defer cancelEvents()
	go func() {
		for ev := range events {
			switch ev.Kind {
			case "added":
				wsServer.Broadcast(&websocket.Message{
					Type: websocket.MessageTypeNotificationAdded,
					Data: map[string]any{"notification": ev.Notification},
				})
			case "removed":
				wsServer.Broadcast(&websocket.Message{
					Type: websocket.MessageTypeNotificationRemoved,
					Data: map[string]any{"id": ev.Notification.ID},
				})
			}
		}
	}()

	// Create speech client
	speechClient := speech.NewClient(cfg.Speech.BaseURL, cfg.Speech.RequestTimeoutSeconds, log)

	// Create TTS client if configured
	var ttsClient *tts.Client
	if cfg.TTS.BaseURL != "" {
		ttsClient = tts.NewClient(cfg.TTS.BaseURL, cfg.TTS.RequestTimeoutSeconds, cfg.TTS.MaxTextLength, log)
		log.Info("TTS service configured", logger.String("base_url", cfg.TTS.BaseURL))
	} else {
		log.Info("TTS service disabled in configuration")
	}

	// Create lifecycle controller
	ctrl := controller.New(speechClient, hub, historyStorage, log)
	ctrl.SetProgressListener(func(kind string, p speech.UploadProgress) {
		wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeUploadProgress,
			Data: map[string]any{
				"kind":       kind,
				"loaded":     p.BytesLoaded,
				"total":      p.BytesTotal,
				"percentage": p.Percentage,
			},
		})
	})

	// Create API router
	router := api.NewRouter(ctrl, speechClient, ttsClient, hub, wsServer, historyStorage, settingsStorage, cfg, log)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      router.Routes(), // All servers use the same main router
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Shutdown all HTTP servers
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Server shutdown complete")
}
