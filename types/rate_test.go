package types

import "testing"

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in      string
		want    Rate
		wantErr bool
	}{
		{"18", 1800, false},
		{"18%", 1800, false},
		{"12.5", 1250, false},
		{"0.25", 25, false},
		{"100", 10000, false},
		{"0", 0, false},
		{"-3", -300, false},
		{"18.125", 0, true},
		{"", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePercent(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d bp, want %d bp", got, tt.want)
			}
		})
	}
}

func TestRateString(t *testing.T) {
	tests := []struct {
		rate Rate
		want string
	}{
		{Percent(18), "18%"},
		{BasisPoints(1250), "12.5%"},
		{BasisPoints(25), "0.25%"},
		{Rate(0), "0%"},
		{BasisPoints(-300), "-3%"},
	}

	for _, tt := range tests {
		if got := tt.rate.String(); got != tt.want {
			t.Errorf("Rate(%d).String(): got %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestRateIsValid(t *testing.T) {
	if !Percent(18).IsValid() || !Rate(0).IsValid() || !MaxRate.IsValid() {
		t.Error("valid rates rejected")
	}
	if BasisPoints(-1).IsValid() || BasisPoints(10001).IsValid() {
		t.Error("out-of-range rates accepted")
	}
}

func TestRateTextRoundTrip(t *testing.T) {
	orig := BasisPoints(1250)

	text, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Rate
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != orig {
		t.Errorf("round trip: got %d, want %d", decoded, orig)
	}
}
