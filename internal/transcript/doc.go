// Package transcript renders a session's conversation record locally.
//
// The backend's export endpoint owns txt, docx, and pdf rendering; this
// package covers the formats produced client-side: plain text for the
// history view and markdown-aware HTML for local export.
package transcript
