package oaipmh

import (
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	var tests = []struct {
		s   string
		t   time.Time
		g   Granularity
		err bool
	}{
		{"2015-01-02", time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC), GranularityDay, false},
		{"2015-01-02T03:04:05Z", time.Date(2015, 1, 2, 3, 4, 5, 0, time.UTC), GranularitySecond, false},
		{"2016-02-29", time.Date(2016, 2, 29, 0, 0, 0, 0, time.UTC), GranularityDay, false},
		{"2345-44-56", time.Time{}, "", true},
		{"2345-31-12", time.Time{}, "", true},
		{"2015-02-29", time.Time{}, "", true},
		{"2015-01-02T25:00:00Z", time.Time{}, "", true},
		{"2015-01-02T03:04:05+00:00", time.Time{}, "", true},
		{"2015-01-02T03:04:05", time.Time{}, "", true},
		{"2015-01-02T03:04Z", time.Time{}, "", true},
		{"2015-01-02 ", time.Time{}, "", true},
		{" 2015-01-02", time.Time{}, "", true},
		{"2015-1-2", time.Time{}, "", true},
		{"x2015-01-02", time.Time{}, "", true},
		{"", time.Time{}, "", true},
	}

	for _, test := range tests {
		result, g, err := ParseDate(test.s)
		if (err != nil) != test.err {
			t.Errorf("ParseDate(%q) got error %v, want error %v", test.s, err, test.err)
			continue
		}
		if err != nil {
			if !IsCode(err, BadArgument) {
				t.Errorf("ParseDate(%q) got %v, want a badArgument", test.s, err)
			}
			continue
		}
		if !result.Equal(test.t) || g != test.g {
			t.Errorf("ParseDate(%q) got %v %s, want %v %s", test.s, result, g, test.t, test.g)
		}
	}
}

func TestParseDateMessageNamesValue(t *testing.T) {
	for _, s := range []string{"2345-44-56", "yesterday"} {
		_, _, err := ParseDate(s)
		e, ok := err.(*Error)
		if !ok {
			t.Fatalf("ParseDate(%q) got %T, want *Error", s, err)
		}
		if !strings.Contains(e.Message, s) {
			t.Errorf("ParseDate(%q) message %q does not name the value", s, e.Message)
		}
	}
}

func TestGranularity(t *testing.T) {
	ts := time.Date(2015, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	var tests = []struct {
		g      Granularity
		valid  bool
		finer  bool
		format string
	}{
		{GranularityDay, true, false, "2015-01-02"},
		{GranularitySecond, true, true, "2015-01-02T02:04:05Z"},
		{Granularity("YYYY"), false, false, "2015-01-02T02:04:05Z"},
	}
	for _, test := range tests {
		if test.g.Valid() != test.valid {
			t.Errorf("%s.Valid() got %v, want %v", test.g, test.g.Valid(), test.valid)
		}
		if test.g.Finer(GranularityDay) != test.finer {
			t.Errorf("%s.Finer(day) got %v, want %v", test.g, test.g.Finer(GranularityDay), test.finer)
		}
		if s := test.g.Format(ts); s != test.format {
			t.Errorf("%s.Format() got %s, want %s", test.g, s, test.format)
		}
	}
	if GranularitySecond.Finer(GranularitySecond) || GranularityDay.Finer(GranularitySecond) {
		t.Error("Finer must only hold for seconds against days")
	}
}
