// ABOUTME: Message and Role types for the conversation model.
// ABOUTME: Messages are immutable once appended except for citation attachment.

package chat

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's conversation.
// Citations are attached after the fact by the reconciler and preserve
// the order the sources were first seen in the retrieval results.
type Message struct {
	Role      Role     `json:"role"`
	Text      string   `json:"text"`
	Citations []string `json:"citations,omitempty"`
}
