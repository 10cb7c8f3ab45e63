package bot

import (
	"strings"

	"memoji/internal/gateway"
)

// IncomingMessage is one chat message delivered by the gateway
// webhook, already split into segments.
type IncomingMessage struct {
	MessageID string            `json:"message_id"`
	UserID    string            `json:"user_id" validate:"required"`
	GroupID   string            `json:"group_id"`
	Segments  []gateway.Segment `json:"message" validate:"required"`
}

// IsGroup reports whether the message came from a group chat
func (m *IncomingMessage) IsGroup() bool {
	return m.GroupID != ""
}

// Text concatenates the plain-text segments
func (m *IncomingMessage) Text() string {
	var sb strings.Builder
	for _, seg := range m.Segments {
		if seg.Type == "text" {
			sb.WriteString(seg.Data["text"])
		}
	}
	return strings.TrimSpace(sb.String())
}

// ImageURL returns the first image segment's source URL, or ""
func (m *IncomingMessage) ImageURL() string {
	for _, seg := range m.Segments {
		if seg.Type == "image" {
			if url := seg.Data["url"]; url != "" {
				return url
			}
			return seg.Data["file"]
		}
	}
	return ""
}
