package domain

import "errors"

var (
	ErrNotSupported      = errors.New("capability not supported")
	ErrRemoteRejected    = errors.New("completion rejected by remote service")
	ErrRemoteUnavailable = errors.New("completion service unavailable")
	ErrMalformedShare    = errors.New("malformed share code")
	ErrMissingCredential = errors.New("no credential configured")
	ErrBusy              = errors.New("conversation is busy")
)

// NotificationFor maps an error to the notification shown to the user.
func NotificationFor(err error) Notification {
	switch {
	case errors.Is(err, ErrNotSupported):
		return Notification{
			Kind:    NotificationNotSupported,
			Title:   "Not Supported",
			Message: "Speech recognition is not supported on this device.",
		}
	case errors.Is(err, ErrMissingCredential):
		return Notification{
			Kind:    NotificationMissingCredential,
			Title:   "API Key Required",
			Message: "Set an API key before starting a conversation.",
		}
	case errors.Is(err, ErrRemoteRejected):
		return Notification{
			Kind:    NotificationRemoteRejected,
			Title:   "Error",
			Message: "Failed to get AI response. Please check your API key.",
		}
	case errors.Is(err, ErrRemoteUnavailable):
		return Notification{
			Kind:    NotificationRemoteUnavailable,
			Title:   "Error",
			Message: "The AI service could not be reached. Please try again.",
		}
	default:
		return Notification{
			Kind:    NotificationCaptureFailed,
			Title:   "Error",
			Message: "Speech capture failed. Please try again.",
		}
	}
}
