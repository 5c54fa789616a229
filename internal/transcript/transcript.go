// ABOUTME: Local transcript rendering: plain text and markdown-aware HTML.
// ABOUTME: Covers the export formats the backend does not produce for us.

package transcript

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/2389/granite-client/internal/chat"
)

// Text renders a session as plain "Role: text" lines, the same shape the
// backend's txt export uses, with source labels appended where present.
func Text(sess chat.Session) string {
	var b strings.Builder
	for _, msg := range sess.Messages {
		fmt.Fprintf(&b, "%s: %s\n", roleLabel(msg.Role), msg.Text)
		if len(msg.Citations) > 0 {
			fmt.Fprintf(&b, "[sources: %s]\n", strings.Join(msg.Citations, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders a session as a standalone HTML document. Assistant replies
// are markdown and are converted; user text is escaped verbatim.
func HTML(sess chat.Session) (string, error) {
	var b strings.Builder

	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&b, "<meta charset=\"utf-8\">\n<title>%s</title>\n", html.EscapeString(sess.Title))
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(sess.Title))

	for _, msg := range sess.Messages {
		fmt.Fprintf(&b, "<div class=%q>\n<strong>%s</strong>\n", string(msg.Role), roleLabel(msg.Role))

		if msg.Role == chat.RoleAssistant {
			var rendered bytes.Buffer
			if err := goldmark.Convert([]byte(msg.Text), &rendered); err != nil {
				return "", fmt.Errorf("rendering markdown: %w", err)
			}
			b.Write(rendered.Bytes())
		} else {
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(msg.Text))
		}

		if len(msg.Citations) > 0 {
			b.WriteString("<ul class=\"citations\">\n")
			for _, c := range msg.Citations {
				fmt.Fprintf(&b, "<li>%s</li>\n", html.EscapeString(c))
			}
			b.WriteString("</ul>\n")
		}
		b.WriteString("</div>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

func roleLabel(r chat.Role) string {
	switch r {
	case chat.RoleUser:
		return "User"
	case chat.RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}
