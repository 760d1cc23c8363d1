package application

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"

	"voice-assistant/internal/domain"
)

// Field names match the links produced by the browser version of the app.
type shareWire struct {
	UserProfile  *shareProfile `json:"userProfile,omitempty"`
	MessageCount int           `json:"messageCount"`
}

type shareProfile struct {
	Name        *string  `json:"name,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
	Context     *string  `json:"context,omitempty"`
}

// EncodeShareCode renders a snapshot as unpadded base64url JSON, safe to
// embed in a URL query parameter.
func EncodeShareCode(snap domain.ShareSnapshot) (string, error) {
	wire := shareWire{
		UserProfile:  &shareProfile{Preferences: snap.UserProfile.Preferences},
		MessageCount: snap.TurnCount,
	}
	if snap.UserProfile.Name != "" {
		wire.UserProfile.Name = &snap.UserProfile.Name
	}
	if snap.UserProfile.Context != "" {
		wire.UserProfile.Context = &snap.UserProfile.Context
	}

	data, err := sonic.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("encoding share snapshot: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeShareCode parses a share code. Absent profile fields decode empty.
func DecodeShareCode(code string) (domain.ShareSnapshot, error) {
	wire, err := decodeShareWire(code)
	if err != nil {
		return domain.ShareSnapshot{}, err
	}
	snap := domain.ShareSnapshot{
		UserProfile: domain.UserProfile{}.Merge(wire.profileUpdate()),
		TurnCount:   wire.MessageCount,
	}
	return snap, nil
}

// ShareURL appends the code to base as the "share" query parameter.
func ShareURL(base, code string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?share=" + url.QueryEscape(code)
	}
	q := u.Query()
	q.Set("share", code)
	u.RawQuery = q.Encode()
	return u.String()
}

func decodeShareWire(code string) (*shareWire, error) {
	raw, err := decodeBase64(code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedShare, err)
	}

	var wire *shareWire
	if err := sonic.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedShare, err)
	}
	if wire == nil {
		return nil, fmt.Errorf("%w: empty payload", domain.ErrMalformedShare)
	}
	return wire, nil
}

func (w *shareWire) profileUpdate() domain.ProfileUpdate {
	if w.UserProfile == nil {
		return domain.ProfileUpdate{}
	}
	return domain.ProfileUpdate{
		Name:        w.UserProfile.Name,
		Preferences: w.UserProfile.Preferences,
		Context:     w.UserProfile.Context,
	}
}

// Codes may come from btoa (standard, padded) or from EncodeShareCode, and
// a '+' read back from a query string arrives as a space.
func decodeBase64(code string) ([]byte, error) {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "+")
	if code == "" {
		return nil, fmt.Errorf("empty code")
	}
	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		data, err := enc.DecodeString(code)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
