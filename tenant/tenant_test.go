package tenant

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	id, err := Parse("county-corp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.String() != "county-corp" || id.IsZero() {
		t.Errorf("got %+v", id)
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("")
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestParseRejectsWhitespace(t *testing.T) {
	if _, err := Parse(" padded "); err == nil {
		t.Error("expected error for padded identifier")
	}
}

func TestZeroValueIsInvalid(t *testing.T) {
	var id ID
	if !id.IsZero() {
		t.Error("zero value should be invalid")
	}
}

func TestTextRoundTrip(t *testing.T) {
	orig := MustParse("tenant-a")

	text, err := orig.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded ID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != orig {
		t.Errorf("round trip: got %v, want %v", decoded, orig)
	}
}
