// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for model parsing.
var (
	ErrUnknownFormat         = errors.New("unknown scoring format")
	ErrUnknownClassification = errors.New("unknown event classification")
	ErrUnknownStatus         = errors.New("unknown results status")
	ErrBadDate               = errors.New("unparsable event date")
)

// Format is the scoring convention an event is played under.
type Format string

const (
	FormatStableford Format = "stableford"
	FormatStrokeplay Format = "strokeplay"
	FormatBoth       Format = "both"
)

// Classification tags an event for season filters.
type Classification string

const (
	ClassificationGeneral Classification = "general"
	ClassificationOOM     Classification = "oom"
	ClassificationMajor   Classification = "major"
)

// ResultsStatus is the publication state of an event's results.
type ResultsStatus string

const (
	StatusNone      ResultsStatus = "none"
	StatusDraft     ResultsStatus = "draft"
	StatusPublished ResultsStatus = "published"
)

// Event is a scheduled competition within a society.
type Event struct {
	ID             string         `json:"id" yaml:"id"`
	SocietyID      string         `json:"society_id" yaml:"society_id"`
	Name           string         `json:"name" yaml:"name"`
	Date           string         `json:"date" yaml:"date"`
	Classification Classification `json:"classification" yaml:"classification"`
	Format         Format         `json:"format" yaml:"format"`
	ResultsStatus  ResultsStatus  `json:"results_status" yaml:"results_status"`
	// Entrants, when set, lists the members who must have a score before publish.
	Entrants []string `json:"entrants,omitempty" yaml:"entrants,omitempty"`
}

var dateLayouts = []string{time.DateOnly, time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05"}

// ParseDate parses an event date in any of the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, s)
}

// SeasonYear returns the calendar year of the event date.
func (e Event) SeasonYear() (int, error) {
	t, err := ParseDate(e.Date)
	if err != nil {
		return 0, err
	}
	return t.Year(), nil
}

// ParseFormat parses a scoring format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatStableford, FormatStrokeplay, FormatBoth:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ParseClassification parses a classification name. Empty means general.
func ParseClassification(s string) (Classification, error) {
	switch c := Classification(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return ClassificationGeneral, nil
	case ClassificationGeneral, ClassificationOOM, ClassificationMajor:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownClassification, s)
}

// ParseResultsStatus parses a status name. Empty means none.
func ParseResultsStatus(s string) (ResultsStatus, error) {
	switch st := ResultsStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusNone, nil
	case StatusNone, StatusDraft, StatusPublished:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}
