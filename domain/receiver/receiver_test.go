package receiver_test

import (
	"testing"
	"time"

	"github.com/artpar/reportgate/domain/receiver"
	"github.com/artpar/reportgate/domain/report"
)

func TestFullName(t *testing.T) {
	r := receiver.Receiver{Name: "elr", OrganizationName: "az-phd"}
	if got := r.FullName(); got != "az-phd.elr" {
		t.Errorf("FullName = %s, want az-phd.elr", got)
	}
}

func TestAcceptsItem(t *testing.T) {
	r := receiver.Receiver{
		Name: "elr", OrganizationName: "az-phd",
		Filters: []receiver.Filter{
			{Element: "patient_state", Pattern: "AZ"},
			{Element: "processing_mode_code", Pattern: "^[PT]$"},
		},
	}

	ok, err := r.AcceptsItem(report.Item{"patient_state": "AZ", "processing_mode_code": "P"})
	if err != nil || !ok {
		t.Errorf("AcceptsItem = %v, %v, want true", ok, err)
	}

	ok, _ = r.AcceptsItem(report.Item{"patient_state": "CO", "processing_mode_code": "P"})
	if ok {
		t.Error("item from wrong state accepted")
	}

	// Missing filtered element rejects.
	ok, _ = r.AcceptsItem(report.Item{"processing_mode_code": "P"})
	if ok {
		t.Error("item missing filtered element accepted")
	}
}

func TestAcceptsItem_BadPattern(t *testing.T) {
	r := receiver.Receiver{
		Name: "elr", OrganizationName: "az-phd",
		Filters: []receiver.Filter{{Element: "x", Pattern: "("}},
	}
	if _, err := r.AcceptsItem(report.Item{}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestValidate(t *testing.T) {
	good := receiver.Receiver{
		Name: "elr", OrganizationName: "az-phd",
		Topic: "covid-19", SchemaName: "az/az-covid-19",
	}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	bad := good
	bad.Topic = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for missing topic")
	}

	bad = good
	bad.Filters = []receiver.Filter{{Element: "x", Pattern: "("}}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for invalid filter pattern")
	}
}

func TestTiming_NextTime_OncePerDay(t *testing.T) {
	timing := receiver.Timing{NumberPerDay: 1, InitialTime: "09:15", TimeZone: "UTC"}

	now := time.Date(2021, 3, 10, 8, 0, 0, 0, time.UTC)
	got := timing.NextTime(now)
	want := time.Date(2021, 3, 10, 9, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextTime = %v, want %v", got, want)
	}

	// Past today's slot rolls to tomorrow.
	now = time.Date(2021, 3, 10, 10, 0, 0, 0, time.UTC)
	got = timing.NextTime(now)
	want = time.Date(2021, 3, 11, 9, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextTime = %v, want %v", got, want)
	}
}

func TestTiming_NextTime_EveryHour(t *testing.T) {
	timing := receiver.Timing{NumberPerDay: 24, InitialTime: "00:30", TimeZone: "UTC"}

	now := time.Date(2021, 3, 10, 13, 45, 0, 0, time.UTC)
	got := timing.NextTime(now)
	want := time.Date(2021, 3, 10, 14, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextTime = %v, want %v", got, want)
	}
}

func TestTiming_NextTime_StrictlyAfter(t *testing.T) {
	timing := receiver.Timing{NumberPerDay: 1, InitialTime: "09:00", TimeZone: "UTC"}

	now := time.Date(2021, 3, 10, 9, 0, 0, 0, time.UTC)
	got := timing.NextTime(now)
	want := time.Date(2021, 3, 11, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("slot equal to now must roll forward: got %v, want %v", got, want)
	}
}

func TestTiming_Validate(t *testing.T) {
	bad := receiver.Timing{NumberPerDay: 0}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for numberPerDay 0")
	}

	bad = receiver.Timing{NumberPerDay: 1, InitialTime: "25:99"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for bad initialTime")
	}

	bad = receiver.Timing{NumberPerDay: 1, TimeZone: "Mars/Olympus"}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown time zone")
	}
}
