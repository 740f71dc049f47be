package controller

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/voxdeck/voxdeck/internal/notify"
	"github.com/voxdeck/voxdeck/internal/speech"
	"github.com/voxdeck/voxdeck/pkg/logger"
)

// State identifies where a submission is in its lifecycle
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateUploading  State = "uploading"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// TranscriptionClient is the transport surface the controller drives
type TranscriptionClient interface {
	Transcribe(ctx context.Context, req *speech.TranscriptionRequest, progress speech.ProgressFunc) (*speech.TranscriptionResponse, error)
	TranscribeAsync(ctx context.Context, req *speech.TranscriptionRequest, progress speech.ProgressFunc) (*speech.JobAck, error)
}

// HistoryStore persists completed transcriptions; may be absent
type HistoryStore interface {
	SaveTranscription(fileName string, resp *speech.TranscriptionResponse) (int64, error)
}

// ValidationError carries the pre-flight rejection reasons. It is returned
// before the transport is ever invoked.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// ProgressListener observes upload progress ticks; kind is "transcribe" or
// "transcribe_async"
type ProgressListener func(kind string, progress speech.UploadProgress)

// lane tracks one of the two independent submission paths
type lane struct {
	state    State
	progress int
}

func (l *lane) inFlight() bool {
	return l.state == StateValidating || l.state == StateUploading
}

// Controller orchestrates one submission at a time per lane:
// validate, build the transport call, track upload progress, and settle to
// succeeded or failed with a matching notification. The synchronous and
// asynchronous lanes are independent and may be in flight concurrently;
// Busy reports the OR of both. Overlapping submissions on the same lane are
// neither queued nor cancelled - disabling the form while busy is the only
// guard.
type Controller struct {
	client  TranscriptionClient
	hub     *notify.Hub
	history HistoryStore
	logger  *logger.Logger

	mu         sync.Mutex
	syncLane   lane
	asyncLane  lane
	result     *speech.TranscriptionResponse
	lastJob    *speech.JobAck
	onProgress ProgressListener
}

// New creates a new lifecycle controller. history may be nil.
func New(client TranscriptionClient, hub *notify.Hub, history HistoryStore, log *logger.Logger) *Controller {
	return &Controller{
		client:  client,
		hub:     hub,
		history: history,
		logger:  log.Named("controller"),
		syncLane: lane{
			state: StateIdle,
		},
		asyncLane: lane{
			state: StateIdle,
		},
	}
}

// SetProgressListener registers an observer for upload progress ticks
func (c *Controller) SetProgressListener(listener ProgressListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProgress = listener
}

// Submit runs one synchronous submission through the full lifecycle and
// returns the transcription result
func (c *Controller) Submit(ctx context.Context, req *speech.TranscriptionRequest) (*speech.TranscriptionResponse, error) {
	if err := c.begin(&c.syncLane, req); err != nil {
		c.fail(&c.syncLane, "Transcription Failed", err)
		return nil, err
	}

	resp, err := c.client.Transcribe(ctx, req, c.progressFunc(&c.syncLane, "transcribe"))
	if err != nil {
		c.fail(&c.syncLane, "Transcription Failed", err)
		return nil, err
	}

	c.mu.Lock()
	c.result = resp
	c.syncLane.state = StateSucceeded
	c.syncLane.progress = 0
	c.mu.Unlock()

	c.hub.Add(notify.Options{
		Type:    notify.TypeSuccess,
		Title:   "Transcription Complete",
		Message: "Transcription completed successfully!",
	})

	if c.history != nil {
		if _, err := c.history.SaveTranscription(req.File.Name, resp); err != nil {
			c.logger.Error("Failed to save transcription to history", logger.Error(err))
		}
	}

	return resp, nil
}

// SubmitAsync runs one asynchronous submission: the upload completes in
// full but the call settles with a job acknowledgement instead of a result
func (c *Controller) SubmitAsync(ctx context.Context, req *speech.TranscriptionRequest) (*speech.JobAck, error) {
	if err := c.begin(&c.asyncLane, req); err != nil {
		c.fail(&c.asyncLane, "Upload Failed", err)
		return nil, err
	}

	ack, err := c.client.TranscribeAsync(ctx, req, c.progressFunc(&c.asyncLane, "transcribe_async"))
	if err != nil {
		c.fail(&c.asyncLane, "Upload Failed", err)
		return nil, err
	}

	c.mu.Lock()
	c.lastJob = ack
	c.asyncLane.state = StateSucceeded
	c.asyncLane.progress = 0
	c.mu.Unlock()

	c.hub.Add(notify.Options{
		Type:    notify.TypeInfo,
		Title:   "Processing Started",
		Message: "Your file is being processed in the background. You will be notified when it's ready.",
	})

	return ack, nil
}

// ReportRejectedFile surfaces a file rejected before it ever reached the
// validation gate (e.g. by the picker or drop layer). The reasons are
// shown to the user instead of being silently dropped.
func (c *Controller) ReportRejectedFile(reasons []string) {
	if len(reasons) == 0 {
		reasons = []string{"Please select an audio file"}
	}
	c.hub.Add(notify.Options{
		Type:    notify.TypeError,
		Title:   "Invalid File",
		Message: strings.Join(reasons, "; "),
	})
}

// ClearFile resets the stored result and any settled lane back to idle.
// Clearing the selection is client state only; no request is issued. Lanes
// that are still uploading are left untouched.
func (c *Controller) ClearFile() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result = nil
	c.lastJob = nil
	if !c.syncLane.inFlight() {
		c.syncLane = lane{state: StateIdle}
	}
	if !c.asyncLane.inFlight() {
		c.asyncLane = lane{state: StateIdle}
	}
}

// Busy reports whether either lane has a submission in flight
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncLane.inFlight() || c.asyncLane.inFlight()
}

// States returns the current state of the sync and async lanes
func (c *Controller) States() (State, State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncLane.state, c.asyncLane.state
}

// Progress returns the current upload percentage per lane
func (c *Controller) Progress() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncLane.progress, c.asyncLane.progress
}

// Result returns the last stored transcription result, if any
func (c *Controller) Result() *speech.TranscriptionResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// LastJob returns the last asynchronous job acknowledgement, if any
func (c *Controller) LastJob() *speech.JobAck {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastJob
}

// begin moves a lane from idle through validation to uploading. The
// transport is never invoked when validation fails.
func (c *Controller) begin(l *lane, req *speech.TranscriptionRequest) error {
	if req == nil || req.Data == nil {
		return &ValidationError{Errors: []string{"Please select an audio file"}}
	}

	c.mu.Lock()
	l.state = StateValidating
	c.mu.Unlock()

	result := speech.ValidateFile(req.File)
	if !result.IsValid {
		return &ValidationError{Errors: result.Errors}
	}

	c.mu.Lock()
	l.state = StateUploading
	l.progress = 0
	c.mu.Unlock()

	return nil
}

// fail settles a lane to failed, resets its progress, and emits an error
// notification carrying the error's message
func (c *Controller) fail(l *lane, fallbackTitle string, err error) {
	c.mu.Lock()
	l.state = StateFailed
	l.progress = 0
	c.mu.Unlock()

	title := fallbackTitle
	message := err.Error()

	var problem *speech.ProblemError
	var invalid *ValidationError
	switch {
	case errors.As(err, &problem):
		// Server errors surface their title and detail verbatim
		title = problem.Problem.Title
		message = problem.Problem.Detail
	case errors.As(err, &invalid):
		title = "Validation Failed"
	}

	c.hub.Add(notify.Options{
		Type:    notify.TypeError,
		Title:   title,
		Message: message,
	})
}

// progressFunc builds the per-request progress callback for a lane
func (c *Controller) progressFunc(l *lane, kind string) speech.ProgressFunc {
	return func(p speech.UploadProgress) {
		c.mu.Lock()
		l.progress = p.Percentage
		listener := c.onProgress
		c.mu.Unlock()

		if listener != nil {
			listener(kind, p)
		}
	}
}
