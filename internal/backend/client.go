// ABOUTME: HTTP client for the generation backend's JSON API.
// ABOUTME: Covers chat streaming, retrieval search, session clear, upload, export, health.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 2048

// Client talks to the generation backend.
type Client struct {
	baseURL        string
	http           *http.Client
	requestTimeout time.Duration
	logger         *slog.Logger
}

// New creates a client for the backend at baseURL. The http.Client carries
// no overall timeout because chat responses stream for an unbounded time;
// requestTimeout bounds the non-streaming calls instead, with zero meaning
// unbounded.
func New(baseURL string, requestTimeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{},
		requestTimeout: requestTimeout,
		logger:         logger.With("component", "backend"),
	}
}

// callCtx derives the context for a non-streaming call. ChatStream never
// goes through here.
func (c *Client) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

// ChatStream issues one generation exchange and returns the chunked plain
// text response body. The caller owns the returned reader and must close
// it; EOF marks completion. A non-success status or an absent body is
// returned as an *APIError.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat_stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending chat request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	if resp.Body == nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: "empty response body"}
	}

	return resp.Body, nil
}

// Search queries the retrieval corpus.
func (c *Client) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	var out searchResponse
	if err := c.postJSON(ctx, "/search", SearchRequest{Query: query, TopK: topK}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ClearSession asks the backend to drop its server-side memory for the
// session. Best-effort: callers log and continue on failure.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	return c.postJSON(ctx, "/clear_session", clearRequest{SessionID: sessionID}, nil)
}

// Upload sends a document for indexing as multipart form data.
func (c *Client) Upload(ctx context.Context, r io.Reader, filename, sourceName string) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copying file contents: %w", err)
	}
	if sourceName != "" {
		if err := mw.WriteField("source_name", sourceName); err != nil {
			return nil, fmt.Errorf("writing source_name field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload_file", &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("uploading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing upload response: %w", err)
	}
	return &result, nil
}

// Export retrieves the session transcript as a downloadable document.
// Format is one of txt, docx, pdf; the backend owns the rendering.
func (c *Client) Export(ctx context.Context, sessionID, format string) (*ExportResult, error) {
	body, err := json.Marshal(exportRequest{SessionID: sessionID, Format: format})
	if err != nil {
		return nil, fmt.Errorf("marshaling export request: %w", err)
	}

	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/export_chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("exporting chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading export body: %w", err)
	}

	result := &ExportResult{
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
		Filename:    exportFilename(resp.Header.Get("Content-Disposition"), sessionID, format),
	}
	return result, nil
}

// Health checks backend liveness and reports the indexed corpus size.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("checking health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("parsing health response: %w", err)
	}
	return &status, nil
}

// postJSON marshals in, POSTs it to path, and decodes the response into out
// when out is non-nil.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	ctx, cancel := c.callCtx(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response from %s: %w", path, err)
	}
	return nil
}

// readAPIError builds an *APIError from a non-success response, preferring
// the "error" field of a JSON body when present.
func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Body: payload.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}

// exportFilename extracts the filename from a Content-Disposition header,
// falling back to a deterministic name.
func exportFilename(disposition, sessionID, format string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	return fmt.Sprintf("granite_chat_%s.%s", sessionID, format)
}
