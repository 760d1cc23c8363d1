package domain

type UserProfile struct {
	Name        string   `json:"name,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
	Context     string   `json:"context,omitempty"`
}

// ProfileUpdate is a partial UserProfile. Nil fields are left unchanged
// when merged; a non-nil empty Preferences slice clears the list.
type ProfileUpdate struct {
	Name        *string  `json:"name,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
	Context     *string  `json:"context,omitempty"`
}

// Merge applies the fields present in u on top of p.
func (p UserProfile) Merge(u ProfileUpdate) UserProfile {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Preferences != nil {
		p.Preferences = append([]string(nil), u.Preferences...)
	}
	if u.Context != nil {
		p.Context = *u.Context
	}
	return p
}

// Clone returns a copy that shares no slices with p.
func (p UserProfile) Clone() UserProfile {
	if p.Preferences != nil {
		p.Preferences = append([]string(nil), p.Preferences...)
	}
	return p
}

// ShareSnapshot is the restorable projection of a conversation: the
// profile and how many turns existed, never the turns themselves.
type ShareSnapshot struct {
	UserProfile UserProfile
	TurnCount   int
}
