package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxdeck/voxdeck/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5, logger.NewNop()), server
}

func testRequest() *TranscriptionRequest {
	return &TranscriptionRequest{
		File: FileInfo{
			Name:        "sample.mp3",
			Size:        11,
			ContentType: "audio/mpeg",
		},
		Data:           strings.NewReader("fake audio!"),
		Language:       "en",
		ResponseFormat: FormatJSON,
	}
}

func TestTranscribeSuccess(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/speech/transcribe", r.URL.Path)
		require.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))

		require.NoError(t, r.ParseMultipartForm(32<<20))
		require.Equal(t, "en", r.FormValue("language"))
		require.Equal(t, "json", r.FormValue("responseFormat"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "sample.mp3", header.Filename)
		require.Equal(t, "audio/mpeg", header.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TranscriptionResponse{
			Transcription: "hello world",
			Language:      "en",
			Confidence:    0.97,
			Success:       true,
		})
	})

	resp, err := client.Transcribe(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "hello world", resp.Transcription)
	require.Equal(t, 0.97, resp.Confidence)
}

func TestTranscribeNonJSONBody(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("1\n00:00:00 --> 00:00:02\nhello\n"))
	})

	req := testRequest()
	req.ResponseFormat = FormatSRT

	resp, err := client.Transcribe(context.Background(), req, nil)
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "srt", resp.ResponseFormat)
	require.Contains(t, resp.Transcription, "00:00:00 --> 00:00:02")
}

func TestTranscribeProblemPassedThrough(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(ProblemDetails{
			Type:   "transcription-error",
			Title:  "Server Error",
			Status: http.StatusServiceUnavailable,
			Detail: "model unavailable",
		})
	})

	_, err := client.Transcribe(context.Background(), testRequest(), nil)
	require.Error(t, err)

	var problem *ProblemError
	require.ErrorAs(t, err, &problem)
	require.Equal(t, "Server Error", problem.Problem.Title)
	require.Equal(t, "model unavailable", problem.Problem.Detail)
	require.Equal(t, http.StatusServiceUnavailable, problem.Problem.Status)
}

func TestTranscribeUnparseableErrorBody(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>gateway error</html>"))
	})

	_, err := client.Transcribe(context.Background(), testRequest(), nil)

	var problem *ProblemError
	require.ErrorAs(t, err, &problem)
	require.Equal(t, "unknown-error", problem.Problem.Type)
	require.Equal(t, "Unknown Error", problem.Problem.Title)
	require.Equal(t, http.StatusBadGateway, problem.Problem.Status)
	require.Equal(t, http.StatusText(http.StatusBadGateway), problem.Problem.Detail)
}

func TestTranscribeTimeout(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Transcribe(ctx, testRequest(), nil)
	require.Error(t, err)

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	require.Equal(t, KindTimeout, transport.Kind)
	require.Equal(t, "request timeout or cancelled", transport.Error())
}

func TestTranscribeNetworkError(t *testing.T) {
	t.Parallel()

	// Point at a closed server so the dial fails
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, 5, logger.NewNop())
	_, err := client.Transcribe(context.Background(), testRequest(), nil)
	require.Error(t, err)

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	require.Equal(t, KindNetwork, transport.Kind)
	require.Equal(t, "network error occurred", transport.Error())
	require.NotNil(t, transport.Unwrap())
}

func TestTranscribeProgressTicks(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TranscriptionResponse{Success: true})
	})

	req := testRequest()
	req.Data = bytes.NewReader(bytes.Repeat([]byte("a"), 64*1024))
	req.File.Size = 64 * 1024

	var ticks []UploadProgress
	_, err := client.Transcribe(context.Background(), req, func(p UploadProgress) {
		ticks = append(ticks, p)
	})
	require.NoError(t, err)
	require.NotEmpty(t, ticks)

	// Percentages never decrease and the last tick reaches 100
	last := 0
	for _, tick := range ticks {
		require.GreaterOrEqual(t, tick.Percentage, last)
		require.LessOrEqual(t, tick.Percentage, 100)
		last = tick.Percentage
	}
	require.Equal(t, 100, ticks[len(ticks)-1].Percentage)
}

func TestTranscribeAsyncReturnsAck(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/speech/transcribe/async", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(JobAck{JobID: "job-42", Status: "processing"})
	})

	ack, err := client.TranscribeAsync(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	require.Equal(t, "job-42", ack.JobID)
	require.Equal(t, "processing", ack.Status)
}

func TestJobStatus(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/speech/jobs/job-42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JobStatus{
			Status: "completed",
			Result: &TranscriptionResponse{Transcription: "done", Success: true},
		})
	})

	status, err := client.JobStatus(context.Background(), "job-42")
	require.NoError(t, err)
	require.Equal(t, "completed", status.Status)
	require.NotNil(t, status.Result)
	require.Equal(t, "done", status.Result.Transcription)
}

func TestJobStatusRequiresID(t *testing.T) {
	t.Parallel()

	client := NewClient("http://localhost:1", 5, logger.NewNop())
	_, err := client.JobStatus(context.Background(), "")
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/speech/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(HealthStatus{Status: "UP"})
	})

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "UP", status.Status)
}
