package tts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxdeck/voxdeck/internal/speech"
	"github.com/voxdeck/voxdeck/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5, 0, logger.NewNop())
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tts", r.URL.Path)
		require.Equal(t, "hello there", r.URL.Query().Get("userMessage"))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	})

	audio, err := client.Synthesize(context.Background(), "hello there")
	require.NoError(t, err)
	require.Equal(t, []byte("mp3-bytes"), audio)
}

func TestStream(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tts/stream", r.URL.Path)
		w.Write([]byte("streamed-audio"))
	})

	stream, err := client.Stream(context.Background(), "hello")
	require.NoError(t, err)
	defer stream.Close()

	audio, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, []byte("streamed-audio"), audio)
}

func TestValidateTextEmpty(t *testing.T) {
	t.Parallel()

	client := NewClient("http://localhost:1", 5, 0, logger.NewNop())
	require.Error(t, client.ValidateText(""))
	require.Error(t, client.ValidateText("   \n\t"))
	require.NoError(t, client.ValidateText("ok"))
}

func TestValidateTextTooLong(t *testing.T) {
	t.Parallel()

	client := NewClient("http://localhost:1", 5, 0, logger.NewNop())
	require.NoError(t, client.ValidateText(strings.Repeat("a", 4000)))
	require.Error(t, client.ValidateText(strings.Repeat("a", 4001)))
}

func TestSynthesizeRejectsInvalidTextWithoutRequest(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for invalid text")
	})

	_, err := client.Synthesize(context.Background(), "")
	require.Error(t, err)
}

func TestSynthesizeProblemTranslation(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(speech.ProblemDetails{
			Type:   "invalid-request",
			Title:  "Invalid Request",
			Status: http.StatusBadRequest,
			Detail: "text exceeds the service limit",
		})
	})

	_, err := client.Synthesize(context.Background(), "hello")
	require.Error(t, err)

	var problem *speech.ProblemError
	require.ErrorAs(t, err, &problem)
	require.Equal(t, "Invalid Request", problem.Problem.Title)
	require.Equal(t, "text exceeds the service limit", problem.Problem.Detail)
}

func TestSynthesizeNetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(url, 5, 0, logger.NewNop())
	_, err := client.Synthesize(context.Background(), "hello")
	require.Error(t, err)

	var transport *speech.TransportError
	require.ErrorAs(t, err, &transport)
	require.Equal(t, speech.KindNetwork, transport.Kind)
}
