// Package message defines the conversational message exchanged with the language model.
package message

import (
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
	Tool      Role = "tool"
)

// IsValid checks if the role is one of the supported values.
func (r Role) IsValid() bool {
	return r == System || r == User || r == Assistant || r == Tool
}

// Message is a single immutable conversation entry.
type Message struct {
	role    Role
	content string
}

// New validates and creates a message.
func New(role Role, content string) (Message, error) {
	if !role.IsValid() {
		return Message{}, fmt.Errorf("invalid message role: %q", role)
	}
	return Message{role: role, content: content}, nil
}

// Must creates a message and panics on an invalid role. Intended for literals.
func Must(role Role, content string) Message {
	m, err := New(role, content)
	if err != nil {
		panic(err)
	}
	return m
}

// Role returns the author role.
func (m Message) Role() Role { return m.role }

// Content returns the textual content.
func (m Message) Content() string { return m.content }

// FilterRole returns the messages authored by role, preserving order.
func FilterRole(msgs []Message, role Role) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.role == role {
			out = append(out, m)
		}
	}
	return out
}

// JoinContent concatenates the content of every message authored by role,
// separated by newlines. Returns "" when there are none.
func JoinContent(msgs []Message, role Role) string {
	var b strings.Builder
	for _, m := range msgs {
		if m.role != role || m.content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.content)
	}
	return b.String()
}
