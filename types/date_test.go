package types

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-05-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Year != 2024 || d.Month != time.May || d.Day != 15 {
		t.Errorf("got %+v", d)
	}

	if _, err := ParseDate("05/15/2024"); err == nil {
		t.Error("expected error for non-ISO format")
	}
}

func TestDateDaysUntil(t *testing.T) {
	tests := []struct {
		from, to string
		want     int
	}{
		{"2024-05-15", "2025-05-15", 365},
		{"2024-05-15", "2024-05-15", 0},
		{"2024-05-15", "2024-05-14", -1},
		{"2024-02-28", "2024-03-01", 2}, // leap year
		{"2023-02-28", "2023-03-01", 1},
	}

	for _, tt := range tests {
		from := MustParseDate(tt.from)
		to := MustParseDate(tt.to)
		if got := from.DaysUntil(to); got != tt.want {
			t.Errorf("%s -> %s: got %d days, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDateAddDays(t *testing.T) {
	d := MustParseDate("2024-12-30").AddDays(5)
	if d.String() != "2025-01-04" {
		t.Errorf("AddDays across year boundary: got %s", d)
	}
}

func TestDateOrdering(t *testing.T) {
	a := MustParseDate("2024-05-15")
	b := MustParseDate("2024-06-01")

	if !a.Before(b) || b.Before(a) {
		t.Error("Before misordered")
	}
	if !b.After(a) || a.After(b) {
		t.Error("After misordered")
	}
	if !a.Equal(MustParseDate("2024-05-15")) {
		t.Error("Equal mismatch")
	}
}

func TestDateTextRoundTrip(t *testing.T) {
	orig := MustParseDate("2024-05-15")

	text, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(text) != "2024-05-15" {
		t.Errorf("text: got %s", text)
	}

	var decoded Date
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(orig) {
		t.Errorf("round trip: got %v, want %v", decoded, orig)
	}
}

func TestDateZeroValue(t *testing.T) {
	var d Date
	if !d.IsZero() {
		t.Error("zero value should report IsZero")
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(text) != 0 {
		t.Errorf("zero date should marshal empty, got %q", text)
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2024-05-15"); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if d.String() != "2024-05-15" {
		t.Errorf("scan string: got %s", d)
	}

	if err := d.Scan(time.Date(2024, time.June, 1, 13, 45, 0, 0, time.UTC)); err != nil {
		t.Fatalf("scan time: %v", err)
	}
	if d.String() != "2024-06-01" {
		t.Errorf("scan time: got %s", d)
	}

	if err := d.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}
