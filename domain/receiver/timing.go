package receiver

import (
	"fmt"
	"time"
)

// Timing is a receiver's scheduled-delivery policy: evenly spaced slots per
// day anchored at an initial local time.
type Timing struct {
	NumberPerDay int    `yaml:"numberPerDay"`
	InitialTime  string `yaml:"initialTime"` // "HH:MM"
	TimeZone     string `yaml:"timeZone"`    // IANA name, default UTC
}

// Validate checks the timing policy.
func (t *Timing) Validate() error {
	if t.NumberPerDay < 1 || t.NumberPerDay > 24*60 {
		return fmt.Errorf("timing numberPerDay %d out of range", t.NumberPerDay)
	}
	if _, err := time.Parse("15:04", t.initialTime()); err != nil {
		return fmt.Errorf("timing initialTime %q: %w", t.InitialTime, err)
	}
	if _, err := t.location(); err != nil {
		return fmt.Errorf("timing timeZone %q: %w", t.TimeZone, err)
	}
	return nil
}

// NextTime computes the receiver's next scheduled slot strictly after now.
func (t *Timing) NextTime(now time.Time) time.Time {
	loc, err := t.location()
	if err != nil {
		loc = time.UTC
	}
	initial, err := time.Parse("15:04", t.initialTime())
	if err != nil {
		initial, _ = time.Parse("15:04", "00:00")
	}
	local := now.In(loc)
	anchor := time.Date(local.Year(), local.Month(), local.Day(),
		initial.Hour(), initial.Minute(), 0, 0, loc)
	period := 24 * time.Hour / time.Duration(t.NumberPerDay)

	// Walk back to cover slots earlier today, then forward to the first
	// slot strictly after now.
	slot := anchor.Add(-24 * time.Hour)
	for !slot.After(local) {
		slot = slot.Add(period)
	}
	return slot
}

func (t *Timing) initialTime() string {
	if t.InitialTime == "" {
		return "00:00"
	}
	return t.InitialTime
}

func (t *Timing) location() (*time.Location, error) {
	if t.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(t.TimeZone)
}
