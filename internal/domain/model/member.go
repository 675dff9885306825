package model

// Member is a person within a society. Read-only input to the engine.
type Member struct {
	ID          string   `json:"id" yaml:"id"`
	SocietyID   string   `json:"society_id" yaml:"society_id"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Handicap    *float64 `json:"handicap,omitempty" yaml:"handicap,omitempty"`
}
