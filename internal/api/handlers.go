package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voxdeck/voxdeck/internal/config"
	"github.com/voxdeck/voxdeck/internal/controller"
	"github.com/voxdeck/voxdeck/internal/notify"
	"github.com/voxdeck/voxdeck/internal/speech"
	"github.com/voxdeck/voxdeck/internal/storage/sqlite"
	"github.com/voxdeck/voxdeck/internal/tts"
	"github.com/voxdeck/voxdeck/internal/websocket"
	"github.com/voxdeck/voxdeck/pkg/logger"
)

// Handler contains the backend-for-frontend API handlers
type Handler struct {
	controller      *controller.Controller
	speechClient    *speech.Client
	ttsClient       *tts.Client
	hub             *notify.Hub
	wsServer        *websocket.Server
	historyStorage  *sqlite.HistoryStorage
	settingsStorage *sqlite.SettingsStorage
	config          *config.Config
	logger          *logger.Logger
}

// NewHandler creates a new API handler. ttsClient may be nil when no TTS
// service is configured.
func NewHandler(ctrl *controller.Controller, speechClient *speech.Client, ttsClient *tts.Client, hub *notify.Hub, wsServer *websocket.Server, historyStorage *sqlite.HistoryStorage, settingsStorage *sqlite.SettingsStorage, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		controller:      ctrl,
		speechClient:    speechClient,
		ttsClient:       ttsClient,
		hub:             hub,
		wsServer:        wsServer,
		historyStorage:  historyStorage,
		settingsStorage: settingsStorage,
		config:          cfg,
		logger:          log.Named("api-handler"),
	}
}

// HandleWebSocket handles WebSocket connections
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

// HandleHealth proxies the speech service health check
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := h.speechClient.Health(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleTranscribe runs a synchronous transcription submission
func (h *Handler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	req, err := h.buildTranscriptionRequest(r)
	if err != nil {
		h.rejectUpload(w, err)
		return
	}
	defer req.closer.Close()

	result, err := h.controller.Submit(r.Context(), req.request)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeTranscriptionComplete,
		Data: map[string]any{"file_name": req.request.File.Name, "result": result},
	})

	WriteJSON(w, http.StatusOK, result)
}

// HandleTranscribeAsync submits a transcription for background processing
func (h *Handler) HandleTranscribeAsync(w http.ResponseWriter, r *http.Request) {
	req, err := h.buildTranscriptionRequest(r)
	if err != nil {
		h.rejectUpload(w, err)
		return
	}
	defer req.closer.Close()

	ack, err := h.controller.SubmitAsync(r.Context(), req.request)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeJobSubmitted,
		Data: map[string]any{"job_id": ack.JobID, "status": ack.Status},
	})

	WriteJSON(w, http.StatusAccepted, ack)
}

// HandleTranscribeResource transcribes a fixed server-side resource file
func (h *Handler) HandleTranscribeResource(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")

	result, err := h.speechClient.TranscribeResource(r.Context(), filename)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// HandleJobStatus returns a point-in-time view of an asynchronous job
func (h *Handler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.writeProblem(w, http.StatusBadRequest, "Invalid Request Parameter", "Job ID is required", r.URL.Path)
		return
	}

	status, err := h.speechClient.JobStatus(r.Context(), jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleHistory returns stored transcriptions with pagination
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaginationParams(r)
	if limit > h.config.Storage.MaxHistoryAPI {
		limit = h.config.Storage.MaxHistoryAPI
	}

	records, err := h.historyStorage.GetTranscriptions(limit, offset)
	if err != nil {
		h.logger.Error("Failed to retrieve history", logger.Error(err))
		h.writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve history", r.URL.Path)
		return
	}

	response := map[string]any{
		"timestamp": time.Now(),
		"count":     len(records),
		"history":   records,
	}
	WriteJSON(w, http.StatusOK, response)
}

// HandleGetSettings returns all stored user settings
func (h *Handler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsStorage.GetAllSettings()
	if err != nil {
		h.logger.Error("Failed to retrieve settings", logger.Error(err))
		h.writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve settings", r.URL.Path)
		return
	}
	WriteJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings stores the submitted key/value settings
func (h *Handler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings map[string]string
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		h.writeProblem(w, http.StatusBadRequest, "Invalid Request Parameter", "Request body must be a JSON object of string values", r.URL.Path)
		return
	}

	for key, value := range settings {
		if err := h.settingsStorage.SetSetting(key, value); err != nil {
			h.logger.Error("Failed to store setting", logger.String("key", key), logger.Error(err))
			h.writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "Failed to store settings", r.URL.Path)
			return
		}
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleNotifications returns the live notifications in display order
func (h *Handler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.hub.List())
}

// HandleDismissNotification removes a notification by id. Dismissing an
// already-removed id succeeds.
func (h *Handler) HandleDismissNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.hub.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleTTS converts text to speech and returns the audio as a download
func (h *Handler) HandleTTS(w http.ResponseWriter, r *http.Request) {
	if h.ttsClient == nil {
		h.writeProblem(w, http.StatusServiceUnavailable, "TTS Unavailable", "No text-to-speech service is configured", r.URL.Path)
		return
	}

	audio, err := h.ttsClient.Synthesize(r.Context(), r.URL.Query().Get("userMessage"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="speech.mp3"`)
	w.Write(audio)
}

// HandleTTSStream converts text to speech and streams the audio inline
func (h *Handler) HandleTTSStream(w http.ResponseWriter, r *http.Request) {
	if h.ttsClient == nil {
		h.writeProblem(w, http.StatusServiceUnavailable, "TTS Unavailable", "No text-to-speech service is configured", r.URL.Path)
		return
	}

	stream, err := h.ttsClient.Stream(r.Context(), r.URL.Query().Get("userMessage"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, stream); err != nil {
		h.logger.Debug("TTS stream interrupted", logger.Error(err))
	}
}

// transcriptionUpload pairs a built request with the multipart file handle
// that must be closed after the submission settles
type transcriptionUpload struct {
	request *speech.TranscriptionRequest
	closer  io.Closer
}

// buildTranscriptionRequest assembles a TranscriptionRequest from the
// incoming multipart form
func (h *Handler) buildTranscriptionRequest(r *http.Request) (*transcriptionUpload, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &controller.ValidationError{Errors: []string{"Please select an audio file"}}
	}

	language := r.FormValue("language")
	if language == "" {
		language = h.config.Speech.DefaultLanguage
	}

	format := speech.ResponseFormat(r.FormValue("responseFormat"))
	if format == "" {
		format = speech.ResponseFormat(h.config.Speech.DefaultResponseFormat)
	}
	if format != "" && !format.Valid() {
		file.Close()
		return nil, &controller.ValidationError{Errors: []string{fmt.Sprintf("Unsupported response format: %s", format)}}
	}

	contentType := header.Header.Get("Content-Type")

	return &transcriptionUpload{
		request: &speech.TranscriptionRequest{
			File: speech.FileInfo{
				Name:        header.Filename,
				Size:        header.Size,
				ContentType: contentType,
			},
			Data:           file,
			Language:       language,
			ResponseFormat: format,
		},
		closer: file,
	}, nil
}

// rejectUpload handles a file that never made it past the form parsing or
// parameter checks: the rejection reasons become a notification, as if the
// picker itself had refused the file, and the response carries them too
func (h *Handler) rejectUpload(w http.ResponseWriter, err error) {
	var invalid *controller.ValidationError
	if errors.As(err, &invalid) {
		h.controller.ReportRejectedFile(invalid.Errors)
	}
	h.writeError(w, err)
}

// writeError maps the error taxonomy onto HTTP problem responses
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var invalid *controller.ValidationError
	var problem *speech.ProblemError
	var transport *speech.TransportError

	switch {
	case errors.As(err, &invalid):
		WriteJSON(w, http.StatusBadRequest, speech.ProblemDetails{
			Type:      "validation-error",
			Title:     "Validation Failed",
			Status:    http.StatusBadRequest,
			Detail:    strings.Join(invalid.Errors, "; "),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})

	case errors.As(err, &problem):
		// Pass the upstream problem payload through unchanged
		WriteJSON(w, problem.Problem.Status, problem.Problem)

	case errors.As(err, &transport):
		status := http.StatusBadGateway
		title := "Network Error"
		if transport.Kind == speech.KindTimeout {
			status = http.StatusGatewayTimeout
			title = "Request Timeout"
		}
		WriteJSON(w, status, speech.ProblemDetails{
			Type:      "transport-error",
			Title:     title,
			Status:    status,
			Detail:    transport.Error(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})

	default:
		h.logger.Error("Unexpected handler error", logger.Error(err))
		h.writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred. Please try again later.", "")
	}
}

func (h *Handler) writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	WriteJSON(w, status, speech.ProblemDetails{
		Type:      strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// parsePaginationParams reads limit/offset query parameters with defaults
func parsePaginationParams(r *http.Request) (int, int) {
	limit := 100 // Default limit
	offset := 0  // Default offset

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
