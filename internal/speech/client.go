package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/voxdeck/voxdeck/pkg/logger"
)

// basePath is the fixed API prefix of the speech service
const basePath = "/api/v1/speech"

// DefaultTimeout is applied when the caller's context carries no deadline
const DefaultTimeout = 300 * time.Second

// Client handles HTTP exchanges with the remote speech service. Non-2xx
// responses and transport-level failures are translated into ProblemError
// and TransportError respectively; exactly one of {value, error} results
// from each call.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new speech service client. The base URL is stored
// without a trailing slash. timeoutSeconds applies per request when the
// caller supplies no deadline; zero or negative selects the default (300s).
func NewClient(baseURL string, timeoutSeconds int, log *logger.Logger) *Client {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		// Timeouts are enforced per request via context so that a
		// caller-supplied cancellation signal always wins.
		httpClient: &http.Client{},
		logger:     log.Named("speech-client"),
	}
}

// Health fetches the service health payload
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.getJSON(ctx, "/health", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Transcribe uploads a file and waits for the final transcription result.
// The optional progress callback receives upload ticks with percentages
// that never decrease and reach 100 before the request settles.
func (c *Client) Transcribe(ctx context.Context, req *TranscriptionRequest, progress ProgressFunc) (*TranscriptionResponse, error) {
	return c.postTranscription(ctx, "/transcribe", req, progress)
}

// TranscribeAsync uploads a file and returns a job acknowledgement
// immediately. Job completion delivery is not handled here; JobStatus is a
// point-in-time query.
func (c *Client) TranscribeAsync(ctx context.Context, req *TranscriptionRequest, progress ProgressFunc) (*JobAck, error) {
	body, contentType, err := buildMultipartBody(req)
	if err != nil {
		return nil, err
	}

	raw, jsonBody, err := c.do(ctx, http.MethodPost, "/transcribe/async", body, contentType, progress)
	if err != nil {
		return nil, err
	}
	if !jsonBody {
		return nil, fmt.Errorf("unexpected non-JSON response from async submission")
	}

	var ack JobAck
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, fmt.Errorf("failed to parse job acknowledgement: %w", err)
	}
	return &ack, nil
}

// TranscribeResource requests transcription of a fixed server-side resource
// file (test path). An empty filename selects the server's default.
func (c *Client) TranscribeResource(ctx context.Context, filename string) (*TranscriptionResponse, error) {
	endpoint := "/transcribe/resource"
	if filename != "" {
		endpoint += "?filename=" + url.QueryEscape(filename)
	}

	var result TranscriptionResponse
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// JobStatus fetches the current status of an asynchronous job by id
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	var status JobStatus
	if err := c.getJSON(ctx, "/jobs/"+url.PathEscape(jobID), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// postTranscription performs a multipart upload and decodes the result.
// When the service replies with a non-JSON body (plain text, SRT, VTT) the
// raw payload becomes the transcription text.
func (c *Client) postTranscription(ctx context.Context, endpoint string, req *TranscriptionRequest, progress ProgressFunc) (*TranscriptionResponse, error) {
	body, contentType, err := buildMultipartBody(req)
	if err != nil {
		return nil, err
	}

	raw, jsonBody, err := c.do(ctx, http.MethodPost, endpoint, body, contentType, progress)
	if err != nil {
		return nil, err
	}

	if !jsonBody {
		return &TranscriptionResponse{
			Transcription:  string(raw),
			ResponseFormat: string(req.ResponseFormat),
			Success:        true,
		}, nil
	}

	var result TranscriptionResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse transcription response: %w", err)
	}
	return &result, nil
}

// getJSON performs a GET request and decodes a JSON response into out
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	raw, jsonBody, err := c.do(ctx, http.MethodGet, endpoint, nil, "", nil)
	if err != nil {
		return err
	}
	if !jsonBody {
		return fmt.Errorf("unexpected non-JSON response from %s", endpoint)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", endpoint, err)
	}
	return nil
}

// do performs one HTTP exchange and returns the response body along with a
// flag indicating whether the service declared it as JSON. The timeout
// context created here is always cancelled on both exit paths.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, progress ProgressFunc) ([]byte, bool, error) {
	// Apply the default timeout only when the caller supplied no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var contentLength int64
	if buf, ok := body.(*bytes.Buffer); ok {
		contentLength = int64(buf.Len())
		if progress != nil {
			body = &progressReader{r: buf, total: contentLength, fn: progress}
		}
	}

	apiURL := c.baseURL + basePath + endpoint
	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	if contentLength > 0 {
		req.ContentLength = contentLength
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	// Execute request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, c.translateTransportError(err, method, endpoint)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, c.translateTransportError(err, method, endpoint)
	}

	// Check response status
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		problem := DecodeProblem(resp.StatusCode, raw, basePath+endpoint)
		c.logger.Debug("Speech service returned an error",
			logger.String("endpoint", endpoint),
			logger.Int("status_code", resp.StatusCode),
			logger.String("title", problem.Problem.Title),
			logger.String("detail", problem.Problem.Detail))
		return nil, false, problem
	}

	jsonBody := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	return raw, jsonBody, nil
}

// translateTransportError maps low-level failures to the generic error
// taxonomy. Full detail is logged to the developer sink only; the returned
// message never leaks the underlying cause.
func (c *Client) translateTransportError(err error, method, endpoint string) error {
	kind := KindNetwork
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = KindTimeout
	}

	c.logger.Debug("Speech service request failed",
		logger.String("method", method),
		logger.String("endpoint", endpoint),
		logger.Bool("timeout", kind == KindTimeout),
		logger.Error(err))

	return &TransportError{Kind: kind, cause: err}
}

// buildMultipartBody encodes the file and optional fields as a multipart
// form. The request's reader is consumed exactly once.
func buildMultipartBody(req *TranscriptionRequest) (*bytes.Buffer, string, error) {
	if req == nil || req.Data == nil {
		return nil, "", fmt.Errorf("transcription request has no file data")
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(req.File.Name)))
	if req.File.ContentType != "" {
		header.Set("Content-Type", req.File.ContentType)
	}

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, req.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}

	if req.Language != "" {
		if err := w.WriteField("language", req.Language); err != nil {
			return nil, "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if req.ResponseFormat != "" {
		if err := w.WriteField("responseFormat", string(req.ResponseFormat)); err != nil {
			return nil, "", fmt.Errorf("failed to write responseFormat field: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// progressReader counts bytes as the request body is transmitted and emits
// a tick whenever the integer percentage increases
type progressReader struct {
	r       io.Reader
	total   int64
	loaded  int64
	lastPct int
	fn      ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		pct := 100
		if p.total > 0 {
			pct = int(p.loaded * 100 / p.total)
		}
		if pct > 100 {
			pct = 100
		}
		if pct > p.lastPct {
			p.lastPct = pct
			p.fn(UploadProgress{
				BytesLoaded: p.loaded,
				BytesTotal:  p.total,
				Percentage:  pct,
			})
		}
	}
	return n, err
}
