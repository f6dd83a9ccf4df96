package oaipmh

import (
	"regexp"
	"time"
)

// Granularity is the precision of datestamps a repository supports.
type Granularity string

const (
	GranularityDay    Granularity = "YYYY-MM-DD"
	GranularitySecond Granularity = "YYYY-MM-DDThh:mm:ssZ"
)

const (
	layoutDay    = "2006-01-02"
	layoutSecond = "2006-01-02T15:04:05Z"
)

var (
	patternSecond = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)
	patternDay    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Valid reports whether g is one of the two granularities of the protocol.
func (g Granularity) Valid() bool {
	return g == GranularityDay || g == GranularitySecond
}

// Finer reports whether g is more precise than other.
func (g Granularity) Finer(other Granularity) bool {
	return g == GranularitySecond && other == GranularityDay
}

// Format renders t in UTC using g. Unknown granularities fall back to seconds.
func (g Granularity) Format(t time.Time) string {
	if g == GranularityDay {
		return t.UTC().Format(layoutDay)
	}
	return t.UTC().Format(layoutSecond)
}

// ParseDate parses a from or until argument. Only YYYY-MM-DD and
// YYYY-MM-DDThh:mm:ssZ are accepted, day values are midnight UTC. The detected
// granularity is returned along with the time.
func ParseDate(s string) (time.Time, Granularity, error) {
	var layout string
	var g Granularity
	switch {
	case patternSecond.MatchString(s):
		layout, g = layoutSecond, GranularitySecond
	case patternDay.MatchString(s):
		layout, g = layoutDay, GranularityDay
	default:
		return time.Time{}, "", NewError(BadArgument,
			"Expected a date in one of the following formats: %s OR %s FOUND %s",
			GranularitySecond, GranularityDay, s)
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, "", NewError(BadArgument, "%s is not a valid date", s)
	}
	return t, g, nil
}
