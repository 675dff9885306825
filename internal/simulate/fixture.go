// Package simulate loads or generates a society's season, plays it through
// the service and checks that the results log and the inline scores agree.
package simulate

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okian/oom/internal/domain/model"
)

// ErrFixture is returned for unreadable or inconsistent fixtures.
var ErrFixture = errors.New("invalid season fixture")

// Fixture is one society's season: roster, events and their scores.
type Fixture struct {
	Society string         `yaml:"society"`
	Season  int            `yaml:"season"`
	Members []model.Member `yaml:"members"`
	Events  []FixtureEvent `yaml:"events"`
}

// FixtureEvent is an event with the scores entered for it. Legacy events
// are imported with their inline scores and status and never get log rows;
// the rest go through draft and, when published, the publish pipeline.
type FixtureEvent struct {
	model.Event `yaml:",inline"`
	Legacy      bool              `yaml:"legacy,omitempty"`
	Scores      []model.RawResult `yaml:"scores,omitempty"`
}

// LoadFixture reads a YAML fixture.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFixture, err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML fixture and fills in society IDs.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFixture, err)
	}
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

// WriteFixture stores f as YAML.
func WriteFixture(path string, f *Fixture) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFixture, err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (f *Fixture) normalize() error {
	if f.Society == "" {
		return fmt.Errorf("%w: society is required", ErrFixture)
	}
	for i := range f.Members {
		if f.Members[i].SocietyID == "" {
			f.Members[i].SocietyID = f.Society
		}
	}
	seen := make(map[string]bool, len(f.Events))
	for i := range f.Events {
		e := &f.Events[i]
		if e.ID == "" {
			return fmt.Errorf("%w: event %d has no id", ErrFixture, i)
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: event %s listed twice", ErrFixture, e.ID)
		}
		seen[e.ID] = true
		if e.SocietyID == "" {
			e.SocietyID = f.Society
		}
	}
	return nil
}
