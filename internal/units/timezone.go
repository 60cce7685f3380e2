package units

import (
	"fmt"
	"strings"
	"time"

	// Embedded tz database so display conversion works on hosts without zoneinfo.
	_ "time/tzdata"
)

// DisplayTimezone is the zone every sensor timestamp is rendered in.
const DisplayTimezone = "America/Sao_Paulo"

// recvTime layouts produced by STH-Comet. The fractional form is tried first;
// whole-second values fall back to the second layout.
const (
	recvTimeLayoutFrac  = "2006-01-02T15:04:05.000000Z"
	recvTimeLayoutWhole = "2006-01-02T15:04:05Z"
)

// IsTimezoneValid checks if the given timezone is valid by attempting to load it from the tz database
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// LoadDisplayLocation loads the named zone, treating "" as DisplayTimezone.
func LoadDisplayLocation(tz string) (*time.Location, error) {
	if tz == "" {
		tz = DisplayTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}

// SaoPaulo returns the America/Sao_Paulo location. The tz database is
// embedded, so a failure here means the binary itself is broken.
func SaoPaulo() *time.Location {
	loc, err := LoadDisplayLocation(DisplayTimezone)
	if err != nil {
		panic(err)
	}
	return loc
}

// ConvertTime converts a UTC time to the specified timezone
func ConvertTime(utcTime time.Time, targetTimezone string) (time.Time, error) {
	if targetTimezone == "UTC" {
		return utcTime, nil // No conversion needed
	}

	loc, err := time.LoadLocation(targetTimezone)
	if err != nil {
		return utcTime, fmt.Errorf("failed to load timezone %s: %w", targetTimezone, err)
	}

	return utcTime.In(loc), nil
}

// ParseRecvTime parses an STH recvTime string ("2024-01-01T12:00:00.500Z" or
// "2024-01-01T12:00:00Z") as a UTC instant.
func ParseRecvTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(recvTimeLayoutFrac, padFraction(s)); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(recvTimeLayoutWhole, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid recvTime %q: %w", s, err)
	}
	return t.UTC(), nil
}

// padFraction right-pads a 1-5 digit fraction to microseconds so the strict
// fractional layout accepts millisecond values such as ".500Z".
func padFraction(s string) string {
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 || !strings.HasSuffix(s, "Z") {
		return s
	}
	frac := s[dot+1 : len(s)-1]
	if len(frac) == 0 || len(frac) >= 6 {
		return s
	}
	return s[:dot+1] + frac + strings.Repeat("0", 6-len(frac)) + "Z"
}

// NormalizeTimestamps converts recvTime strings into times in loc. The output
// is parallel to the input; the first unparseable value aborts the batch.
func NormalizeTimestamps(timestamps []string, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]time.Time, 0, len(timestamps))
	for i, ts := range timestamps {
		t, err := ParseRecvTime(ts)
		if err != nil {
			return nil, fmt.Errorf("timestamp %d: %w", i, err)
		}
		out = append(out, t.In(loc))
	}
	return out, nil
}
