package model

// RawResult is one member's recorded outcome for one event.
// Values are optional; which ones matter depends on the event format.
type RawResult struct {
	EventID         string `json:"event_id" yaml:"event_id"`
	MemberID        string `json:"member_id" yaml:"member_id"`
	Stableford      *int   `json:"stableford,omitempty" yaml:"stableford,omitempty"`
	StrokeplayGross *int   `json:"strokeplay_gross,omitempty" yaml:"strokeplay_gross,omitempty"`
	NetScore        *int   `json:"net_score,omitempty" yaml:"net_score,omitempty"`
}

// ResolvedResult is a normalized log row written at publish time.
type ResolvedResult struct {
	EventID  string  `json:"event_id"`
	MemberID string  `json:"member_id"`
	DayValue int     `json:"day_value"`
	Position int     `json:"position"`
	Points   float64 `json:"points"`
}

// SeasonStanding is one member's derived season line. Never persisted.
type SeasonStanding struct {
	Rank         int     `json:"rank"`
	MemberID     string  `json:"member_id"`
	DisplayName  string  `json:"display_name"`
	TotalPoints  float64 `json:"total_points"`
	Wins         int     `json:"wins"`
	EventsPlayed int     `json:"events_played"`
}

// IntPtr is a small helper for building optional scores.
func IntPtr(v int) *int { return &v }
