package domain

// Code is the short human-readable secret shared out-of-band, e.g.
// "7-crossover-clockwork". The leading token is the relay nameplate.
type Code string

// Mood is the terminal outcome of a session.
type Mood string

const (
	// MoodHappy means the channel was established and closed cleanly.
	MoodHappy Mood = "happy"
	// MoodLonely means we closed before the peer ever showed up.
	MoodLonely Mood = "lonely"
	// MoodScary means a message failed authentication: wrong code or
	// tampering.
	MoodScary Mood = "scary"
	// MoodErrory means a transport or protocol error ended the session.
	MoodErrory Mood = "errory"
)

// VersionInfo carries the capability metadata exchanged once the channel
// is established. The peer's application payload sits under "app_versions".
type VersionInfo map[string]any

// Welcome is the relay server's greeting.
type Welcome struct {
	MOTD  string `json:"motd,omitempty"`
	Error string `json:"error,omitempty"`
}
