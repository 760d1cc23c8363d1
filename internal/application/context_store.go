package application

import (
	"strings"

	"voice-assistant/internal/domain"
)

// HistoryWindow is how many of the most recent turns accompany a prompt.
const HistoryWindow = 10

const (
	personaInstruction = "You are a helpful AI voice assistant. Be conversational, concise, and engaging."
	closingInstruction = "Keep responses natural and friendly for voice interaction. Avoid long responses unless specifically asked."
)

// ContextStore owns the turns and user profile of one conversation session.
// It is not safe for concurrent use; the Orchestrator serializes access.
type ContextStore struct {
	turns   []domain.Turn
	profile domain.UserProfile
}

func NewContextStore() *ContextStore {
	return &ContextStore{}
}

func (s *ContextStore) AppendTurn(role domain.Role, content string) {
	s.turns = append(s.turns, domain.Turn{Role: role, Content: content})
}

func (s *ContextStore) UpdateProfile(update domain.ProfileUpdate) {
	s.profile = s.profile.Merge(update)
}

// DerivePrompt builds the system instruction from the profile and returns
// the most recent HistoryWindow turns in chronological order.
func (s *ContextStore) DerivePrompt() domain.Prompt {
	parts := []string{personaInstruction}
	if s.profile.Name != "" {
		parts = append(parts, "The user's name is "+s.profile.Name+".")
	}
	if len(s.profile.Preferences) > 0 {
		parts = append(parts, "User preferences: "+strings.Join(s.profile.Preferences, ", ")+".")
	}
	if s.profile.Context != "" {
		parts = append(parts, "Additional context: "+s.profile.Context+".")
	}
	parts = append(parts, closingInstruction)

	start := 0
	if len(s.turns) > HistoryWindow {
		start = len(s.turns) - HistoryWindow
	}
	history := make([]domain.Turn, len(s.turns)-start)
	copy(history, s.turns[start:])

	return domain.Prompt{
		SystemInstruction: strings.Join(parts, " "),
		History:           history,
	}
}

// Clear drops the chat history. The profile survives.
func (s *ContextStore) Clear() {
	s.turns = nil
}

func (s *ContextStore) Snapshot() domain.ShareSnapshot {
	return domain.ShareSnapshot{
		UserProfile: s.profile.Clone(),
		TurnCount:   len(s.turns),
	}
}

// Restore replaces the profile with the one carried by a share code; fields
// the code leaves out come back empty. It never touches the turns and
// leaves the store unchanged when the code is malformed.
func (s *ContextStore) Restore(code string) bool {
	snap, err := DecodeShareCode(code)
	if err != nil {
		return false
	}
	p := snap.UserProfile
	s.UpdateProfile(domain.ProfileUpdate{
		Name:        &p.Name,
		Preferences: append([]string{}, p.Preferences...),
		Context:     &p.Context,
	})
	return true
}

func (s *ContextStore) Turns() []domain.Turn {
	return append([]domain.Turn(nil), s.turns...)
}

func (s *ContextStore) Profile() domain.UserProfile {
	return s.profile.Clone()
}
