package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"voicetriage/internal/domain"
	"voicetriage/pkg/logger"
)

const (
	voicemailsPath = "/api/voicemails"
	audioPath      = "/api/voicemails/audio/"

	// UploadField is the multipart field carrying the recording.
	UploadField = "file"

	maxErrorBody = 512
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status code %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status code %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client talks to the voicemail backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a client for baseURL. A trailing slash is ignored.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Named("backend"),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// List fetches the full collection. Failures are fetch errors.
func (c *Client) List(ctx context.Context) ([]domain.Voicemail, error) {
	const op = "list voicemails"
	endpoint := c.baseURL + voicemailsPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewError(domain.KindFetch, op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.KindFetch, op, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, domain.NewError(domain.KindFetch, op, err)
	}

	var records []domain.Voicemail
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, domain.NewError(domain.KindFetch, op, fmt.Errorf("failed to parse JSON: %w", err))
	}
	if records == nil {
		records = []domain.Voicemail{}
	}

	c.logger.Debug("fetched voicemails", logger.Int("count", len(records)))
	return records, nil
}

// Upload posts artifact as a multipart form. The response body is discarded.
func (c *Client) Upload(ctx context.Context, artifact domain.Artifact) error {
	const op = "upload voicemail"
	endpoint := c.baseURL + voicemailsPath

	body, contentType, err := multipartBody(artifact)
	if err != nil {
		return domain.NewError(domain.KindUpload, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return domain.NewError(domain.KindUpload, op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewError(domain.KindUpload, op, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if err := checkStatus(resp); err != nil {
		return domain.NewError(domain.KindUpload, op, err)
	}

	c.logger.Info("uploaded voicemail",
		logger.Int("bytes", artifact.Size()),
		logger.String("mime_type", artifact.MIMEType),
	)
	return nil
}

// AudioURL is the playback URL of a record's audio file.
func (c *Client) AudioURL(filePath string) string {
	return c.baseURL + audioPath + url.PathEscape(filePath)
}

// DownloadAudio streams a record's audio into w and returns the byte count.
func (c *Client) DownloadAudio(ctx context.Context, filePath string, w io.Writer) (int64, error) {
	const op = "download audio"
	endpoint := c.AudioURL(filePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, domain.NewError(domain.KindFetch, op, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, domain.NewError(domain.KindFetch, op, fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return 0, domain.NewError(domain.KindFetch, op, err)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, domain.NewError(domain.KindFetch, op, fmt.Errorf("failed to read audio: %w", err))
	}
	return n, nil
}

func multipartBody(artifact domain.Artifact) (*bytes.Buffer, string, error) {
	filename := artifact.Filename
	if filename == "" {
		filename = "voicemail.wav"
	}
	mimeType := artifact.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, UploadField, filename))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method:     resp.Request.Method,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
}
