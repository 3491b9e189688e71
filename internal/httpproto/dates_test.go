package httpproto

import (
	"testing"
	"time"
)

func TestFormatHTTPDateUsesGMT(t *testing.T) {
	ts := time.Date(2024, time.March, 5, 13, 30, 0, 0, time.UTC)
	got := FormatHTTPDate(ts)
	want := "Tue, 05 Mar 2024 13:30:00 GMT"
	if got != want {
		t.Fatalf("FormatHTTPDate = %q, want %q", got, want)
	}
}

func TestParseHTTPDateAcceptsAllThreeFormats(t *testing.T) {
	cases := []string{
		"Tue, 05 Mar 2024 13:30:00 GMT",
		"Tuesday, 05-Mar-24 13:30:00 GMT",
		"Tue Mar  5 13:30:00 2024",
	}
	for _, c := range cases {
		if _, ok := ParseHTTPDate(c); !ok {
			t.Errorf("ParseHTTPDate(%q) failed to parse", c)
		}
	}
}

func TestParseHTTPDateRejectsGarbage(t *testing.T) {
	if _, ok := ParseHTTPDate("not a date"); ok {
		t.Fatal("ParseHTTPDate should reject garbage input")
	}
}
