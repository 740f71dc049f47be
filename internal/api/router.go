package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/voxdeck/voxdeck/internal/config"
	"github.com/voxdeck/voxdeck/internal/controller"
	"github.com/voxdeck/voxdeck/internal/notify"
	"github.com/voxdeck/voxdeck/internal/speech"
	"github.com/voxdeck/voxdeck/internal/storage/sqlite"
	"github.com/voxdeck/voxdeck/internal/tts"
	"github.com/voxdeck/voxdeck/internal/websocket"
	"github.com/voxdeck/voxdeck/pkg/logger"
)

// Router wires the API handlers and static assets into one HTTP surface
type Router struct {
	handler *Handler
	static  *StaticFileHandler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates the application router
func NewRouter(ctrl *controller.Controller, speechClient *speech.Client, ttsClient *tts.Client, hub *notify.Hub, wsServer *websocket.Server, historyStorage *sqlite.HistoryStorage, settingsStorage *sqlite.SettingsStorage, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler: NewHandler(ctrl, speechClient, ttsClient, hub, wsServer, historyStorage, settingsStorage, cfg, log),
		static:  NewStaticFileHandler(cfg.Server.StaticFilesDir, log),
		config:  cfg,
		logger:  log.Named("api-router"),
	}
}

// Routes returns the configured HTTP handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	allowedOrigins := rt.config.Server.CORSAllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/ui", func(r chi.Router) {
		r.Get("/health", rt.handler.HandleHealth)

		r.Post("/transcribe", rt.handler.HandleTranscribe)
		r.Post("/transcribe/async", rt.handler.HandleTranscribeAsync)
		r.Get("/transcribe/resource", rt.handler.HandleTranscribeResource)
		r.Get("/jobs/{jobID}", rt.handler.HandleJobStatus)

		r.Get("/history", rt.handler.HandleHistory)
		r.Get("/settings", rt.handler.HandleGetSettings)
		r.Put("/settings", rt.handler.HandleUpdateSettings)

		r.Get("/notifications", rt.handler.HandleNotifications)
		r.Delete("/notifications/{id}", rt.handler.HandleDismissNotification)

		r.Get("/tts", rt.handler.HandleTTS)
		r.Get("/tts/stream", rt.handler.HandleTTSStream)

		r.Get("/ws", rt.handler.HandleWebSocket)
	})

	// Everything else is a front-end asset
	r.NotFound(rt.static.ServeHTTP)

	return r
}
