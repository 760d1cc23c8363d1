package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the conversation. Turns are append-only.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DisplayMessage is the rendering-layer projection of a Turn.
type DisplayMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// Prompt is the context sent along with a new user utterance.
type Prompt struct {
	SystemInstruction string
	History           []Turn
}
