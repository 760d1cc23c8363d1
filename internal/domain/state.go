package domain

type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
)

type NotificationKind string

const (
	NotificationNotSupported      NotificationKind = "not_supported"
	NotificationRemoteRejected    NotificationKind = "remote_rejected"
	NotificationRemoteUnavailable NotificationKind = "remote_unavailable"
	NotificationMissingCredential NotificationKind = "missing_credential"
	NotificationCaptureFailed     NotificationKind = "capture_failed"
	NotificationChatCleared       NotificationKind = "chat_cleared"
	NotificationShareLoaded       NotificationKind = "share_loaded"
)

// Notification is a user-visible, non-fatal message (a toast in a browser UI).
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
}

// IsError reports whether the notification describes a failure.
func (n Notification) IsError() bool {
	switch n.Kind {
	case NotificationChatCleared, NotificationShareLoaded:
		return false
	default:
		return true
	}
}

// Capabilities are read once at startup and exposed to explain degraded modes.
type Capabilities struct {
	SpeechRecognition bool `json:"speech_recognition_supported"`
	SpeechSynthesis   bool `json:"speech_synthesis_supported"`
}
