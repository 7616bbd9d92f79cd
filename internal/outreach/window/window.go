// Package window decides whether an instant falls inside the permitted
// sending hours in a lead's local timezone. It is a pure calculator: no lead
// state is read or written here.
package window

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var countriesYAML []byte

// Calculator gates sends on the configured weekday set and local hour range
// [StartHour, EndHour).
type Calculator struct {
	days      map[time.Weekday]bool
	startHour int
	endHour   int
	zones     map[string]*time.Location
	fallback  *time.Location
}

// New builds a Calculator for the given policy. The country to timezone
// table is embedded; unknown countries resolve to UTC.
func New(days map[time.Weekday]bool, startHour, endHour int) (*Calculator, error) {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil, fmt.Errorf("invalid window hours: start=%d end=%d", startHour, endHour)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("window requires at least one permitted weekday")
	}

	var table map[string]string
	if err := yaml.Unmarshal(countriesYAML, &table); err != nil {
		return nil, fmt.Errorf("parse country timezone table: %w", err)
	}

	zones := make(map[string]*time.Location, len(table))
	for country, zone := range table {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q for %q: %w", zone, country, err)
		}
		zones[normalizeCountry(country)] = loc
	}

	return &Calculator{
		days:      days,
		startHour: startHour,
		endHour:   endHour,
		zones:     zones,
		fallback:  time.UTC,
	}, nil
}

// Location resolves a company country to its primary timezone.
func (c *Calculator) Location(country string) *time.Location {
	if loc, ok := c.zones[normalizeCountry(country)]; ok {
		return loc
	}
	return c.fallback
}

// Within reports whether the instant falls inside the sending window in the
// country's local time.
func (c *Calculator) Within(country string, t time.Time) bool {
	local := t.In(c.Location(country))
	if !c.days[local.Weekday()] {
		return false
	}
	hour := local.Hour()
	return hour >= c.startHour && hour < c.endHour
}

// NextStart returns the earliest instant at or after t that is inside the
// window. If t is already inside, t itself is returned.
func (c *Calculator) NextStart(country string, t time.Time) time.Time {
	if c.Within(country, t) {
		return t
	}

	loc := c.Location(country)
	local := t.In(loc)

	// Same day, before opening, on a permitted day.
	if c.days[local.Weekday()] && local.Hour() < c.startHour {
		return time.Date(local.Year(), local.Month(), local.Day(), c.startHour, 0, 0, 0, loc)
	}

	// Walk forward day by day until a permitted day is found. The weekday set
	// is non-empty, so at most seven steps are needed.
	day := local.AddDate(0, 0, 1)
	for i := 0; i < 7; i++ {
		if c.days[day.Weekday()] {
			return time.Date(day.Year(), day.Month(), day.Day(), c.startHour, 0, 0, 0, loc)
		}
		day = day.AddDate(0, 0, 1)
	}

	return t
}

func normalizeCountry(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}
