package tle

import (
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(stationsFeed), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	iss := entries[1]
	if iss.NORADID != 25544 || iss.Name != issName {
		t.Errorf("entry = %d %q, want 25544 %q", iss.NORADID, iss.Name, issName)
	}
	if !iss.Epoch.Equal(issEpoch) {
		t.Errorf("epoch = %v, want %v", iss.Epoch, issEpoch)
	}
	if iss.Line1 != issLine1 || iss.Line2 != issLine2 {
		t.Error("lines not preserved")
	}
}

func TestParseSkipsInvalid(t *testing.T) {
	badChecksum := issLine1[:68] + "0"
	feed := strings.Join([]string{
		"GARBAGE HEADER",
		cssName, cssLine1, cssLine2,
		"BROKEN", badChecksum, issLine2,
		issName, issLine1, issLine2,
	}, "\n")

	entries, err := Parse(strings.NewReader(feed), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].NORADID != 48274 || entries[1].NORADID != 25544 {
		t.Errorf("unexpected entries: %d, %d", entries[0].NORADID, entries[1].NORADID)
	}
}

func TestSelectNewest(t *testing.T) {
	entries, err := Parse(strings.NewReader(stationsFeed+issNewerFeed), testLogger)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	e, ok := Select(entries, 25544)
	if !ok {
		t.Fatal("ISS not selected")
	}
	if !e.Epoch.Equal(issNewerEpoch) {
		t.Errorf("selected epoch %v, want newest %v", e.Epoch, issNewerEpoch)
	}

	if _, ok := Select(entries, 20580); ok {
		t.Error("selected an object not in the feed")
	}
}

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"25045.18032407", issEpoch, false},
		{"00001.00000000", time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"98067.50000000", time.Date(1998, 3, 8, 12, 0, 0, 0, time.UTC), false},
		{"57001.00000000", time.Date(1957, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"24366.00000000", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"2504", time.Time{}, true},
		{"xx045.5", time.Time{}, true},
		{"25000.50000000", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEpoch(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEpoch(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseEpoch(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
