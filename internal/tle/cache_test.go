package tle

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheWritePrunes(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 3)

	base := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := c.Write([]byte(stationsFeed), base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	files, err := c.listFiles()
	if err != nil {
		t.Fatalf("listFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("got %d files after prune, want 3", len(files))
	}
	if !files[0].ts.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("oldest kept file = %v, want %v", files[0].ts, base.Add(2*time.Hour))
	}

	// No temporary files left behind.
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temporary files left: %v", matches)
	}
}

func TestCacheNewestFallsBack(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 5)

	older := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	if err := c.Write([]byte(stationsFeed), older); err != nil {
		t.Fatal(err)
	}
	if err := c.Write([]byte("corrupt"), newer); err != nil {
		t.Fatal(err)
	}
	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var seen []time.Time
	err := c.Newest(func(data []byte, ts time.Time) bool {
		seen = append(seen, ts)
		return string(data) == stationsFeed
	})
	if err != nil {
		t.Fatalf("Newest: %v", err)
	}
	if len(seen) != 2 || !seen[0].Equal(newer) || !seen[1].Equal(older) {
		t.Errorf("visit order = %v, want newest then older", seen)
	}
}

func TestCacheNewestEmpty(t *testing.T) {
	c := NewCache(filepath.Join(t.TempDir(), "missing"), 5)
	if err := c.Newest(func([]byte, time.Time) bool { return true }); err != errNoCache {
		t.Errorf("Newest on missing dir = %v, want errNoCache", err)
	}
}
