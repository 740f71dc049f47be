package speech

import "io"

// ResponseFormat identifies the shape of the transcription payload returned
// by the remote service
type ResponseFormat string

const (
	FormatJSON        ResponseFormat = "json"
	FormatText        ResponseFormat = "text"
	FormatSRT         ResponseFormat = "srt"
	FormatVTT         ResponseFormat = "vtt"
	FormatVerboseJSON ResponseFormat = "verbose_json"
)

// Valid reports whether the format is one of the supported values
func (f ResponseFormat) Valid() bool {
	switch f {
	case FormatJSON, FormatText, FormatSRT, FormatVTT, FormatVerboseJSON:
		return true
	}
	return false
}

// FileInfo describes a selected audio file as seen by the validation gate
type FileInfo struct {
	Name        string // Original filename
	Size        int64  // Size in bytes
	ContentType string // Declared MIME type
}

// TranscriptionRequest carries one submission to the speech service.
// It is built once at submit time and consumed exactly once by the client.
type TranscriptionRequest struct {
	File           FileInfo
	Data           io.Reader // File content; read fully during upload
	Language       string
	ResponseFormat ResponseFormat
}

// TranscriptionResponse is the result payload produced by the speech service
type TranscriptionResponse struct {
	Transcription  string         `json:"transcription"`
	Language       string         `json:"language"`
	Confidence     float64        `json:"confidence"`
	Duration       float64        `json:"duration"`
	Model          string         `json:"model"`
	ResponseFormat string         `json:"responseFormat"`
	ProcessedAt    string         `json:"processedAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Success        bool           `json:"success"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
}

// JobAck acknowledges an asynchronous submission
type JobAck struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// JobStatus is a point-in-time view of an asynchronous job
type JobStatus struct {
	Status string                 `json:"status"`
	Result *TranscriptionResponse `json:"result,omitempty"`
}

// HealthStatus is the speech service health payload
type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// UploadProgress is a snapshot of upload progress for one request.
// Percentage is in the range 0-100 and never decreases within a request.
type UploadProgress struct {
	BytesLoaded int64 `json:"loaded"`
	BytesTotal  int64 `json:"total"`
	Percentage  int   `json:"percentage"`
}

// ProgressFunc receives upload progress ticks during a transfer
type ProgressFunc func(UploadProgress)
