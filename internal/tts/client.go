package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxdeck/voxdeck/internal/speech"
	"github.com/voxdeck/voxdeck/pkg/logger"
)

// basePath is the fixed API prefix of the text-to-speech service
const basePath = "/api/v1/tts"

// DefaultMaxTextLength caps input text client-side, matching the service limit
const DefaultMaxTextLength = 4000

// Client handles HTTP exchanges with the remote text-to-speech service.
// Error translation follows the same taxonomy as the speech client:
// non-2xx responses become ProblemError, transport failures TransportError.
type Client struct {
	baseURL       string
	timeout       time.Duration
	maxTextLength int
	httpClient    *http.Client
	logger        *logger.Logger
}

// NewClient creates a new TTS client. maxTextLength <= 0 selects the
// default 4000-character limit.
func NewClient(baseURL string, timeoutSeconds, maxTextLength int, log *logger.Logger) *Client {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = speech.DefaultTimeout
	}
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		timeout:       timeout,
		maxTextLength: maxTextLength,
		httpClient:    &http.Client{},
		logger:        log.Named("tts-client"),
	}
}

// Synthesize converts text to speech and returns the full audio payload,
// suitable for a file download
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := c.request(ctx, "", text)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	audio, err := io.ReadAll(body)
	if err != nil {
		return nil, c.translate(err, "")
	}
	return audio, nil
}

// Stream converts text to speech and returns the audio as a stream for
// inline playback. The caller owns the returned reader and must close it.
func (c *Client) Stream(ctx context.Context, text string) (io.ReadCloser, error) {
	return c.request(ctx, "/stream", text)
}

// ValidateText checks input text against the client-side constraints
func (c *Client) ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}
	if len(text) > c.maxTextLength {
		return fmt.Errorf("text is too long: limit is %d characters", c.maxTextLength)
	}
	return nil
}

// request performs one GET exchange and returns the audio body on success
func (c *Client) request(ctx context.Context, endpoint, text string) (io.ReadCloser, error) {
	if err := c.ValidateText(text); err != nil {
		return nil, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		// The cancel func is tied to the body so streamed playback keeps
		// the request alive until the caller closes the reader
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)

		body, err := c.exchange(ctx, endpoint, text)
		if err != nil {
			cancel()
			return nil, err
		}
		return &cancelReadCloser{ReadCloser: body, cancel: cancel}, nil
	}

	return c.exchange(ctx, endpoint, text)
}

func (c *Client) exchange(ctx context.Context, endpoint, text string) (io.ReadCloser, error) {
	apiURL := c.baseURL + basePath + endpoint + "?userMessage=" + url.QueryEscape(text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.translate(err, endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		problem := speech.DecodeProblem(resp.StatusCode, raw, basePath+endpoint)
		c.logger.Debug("TTS service returned an error",
			logger.String("endpoint", endpoint),
			logger.Int("status_code", resp.StatusCode),
			logger.String("title", problem.Problem.Title))
		return nil, problem
	}

	return resp.Body, nil
}

func (c *Client) translate(err error, endpoint string) error {
	kind := speech.KindNetwork
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = speech.KindTimeout
	}

	c.logger.Debug("TTS service request failed",
		logger.String("endpoint", endpoint),
		logger.Bool("timeout", kind == speech.KindTimeout),
		logger.Error(err))

	return speech.NewTransportError(kind, err)
}

// cancelReadCloser releases the request's timeout context when the audio
// stream is closed
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
