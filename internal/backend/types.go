// ABOUTME: Request/response types for the generation backend's HTTP API.
// ABOUTME: Field names mirror the JSON bodies the service defines.

package backend

import "fmt"

// Valid chat modes accepted by the generation endpoint.
const (
	ModeGeneral    = "general"
	ModeCoding     = "coding"
	ModeTeacher    = "teacher"
	ModeSummarizer = "summarizer"
)

// ValidMode reports whether mode is one of the backend's mode tags.
func ValidMode(mode string) bool {
	switch mode {
	case ModeGeneral, ModeCoding, ModeTeacher, ModeSummarizer:
		return true
	}
	return false
}

// ChatRequest is the JSON body sent to POST /chat_stream.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	UseRAG    bool   `json:"use_rag"`
	Mode      string `json:"mode"`
}

// SearchRequest is the JSON body sent to POST /search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// SearchResult is one retrieval hit.
type SearchResult struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// searchResponse is the JSON response from POST /search.
type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// clearRequest is the JSON body sent to POST /clear_session.
type clearRequest struct {
	SessionID string `json:"session_id"`
}

// UploadResult is the JSON response from POST /upload_file.
type UploadResult struct {
	Status      string `json:"status"`
	File        string `json:"file"`
	ChunksAdded int    `json:"chunks_added"`
	TotalChunks int    `json:"total_chunks"`
}

// exportRequest is the JSON body sent to POST /export_chat.
type exportRequest struct {
	SessionID string `json:"session_id"`
	Format    string `json:"format"`
}

// ExportResult carries the exported document blob for download.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// HealthStatus is the JSON response from GET /health.
type HealthStatus struct {
	Status       string `json:"status"`
	CorpusChunks int    `json:"corpus_chunks"`
}

// APIError is a non-success response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}
