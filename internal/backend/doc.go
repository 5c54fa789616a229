// Package backend is the HTTP client for the generation service.
//
// # Endpoints
//
//   - POST /chat_stream: one generation exchange; the response is a
//     chunked plain-text body with no framing, EOF marks completion
//   - POST /search: retrieval query, returns scored hits with sources
//   - POST /clear_session: drops server-side per-session memory
//   - POST /upload_file: multipart document upload for indexing
//   - POST /export_chat: renders a transcript to txt, docx, or pdf
//   - GET /health: liveness plus corpus size
//
// # Errors
//
// Non-success statuses become *APIError values carrying the status code
// and the response's "error" field (or raw body). Transport failures are
// wrapped with context. The client never retries; the controller decides
// what a failed exchange means.
package backend
