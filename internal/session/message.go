package session

import (
	"time"

	"github.com/hyperjump/docchat/internal/pipeline"
)

// Role is who produced a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. User messages carry Text; assistant
// messages carry Reply.
type Message struct {
	Role  Role
	Text  string
	Reply pipeline.Result
	At    time.Time
}

// Content returns the displayable text regardless of role.
func (m Message) Content() string {
	if m.Reply != nil {
		return m.Reply.Content()
	}
	return m.Text
}
