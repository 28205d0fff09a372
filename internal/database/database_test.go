package database

import (
	"strings"
	"testing"
)

func TestTruncateQuery(t *testing.T) {
	short := "SELECT 1"
	if got := truncateQuery(short); got != short {
		t.Errorf("Expected %q, got %q", short, got)
	}

	long := strings.Repeat("x", 300)
	got := truncateQuery(long)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("Expected truncated query of length 203, got %d", len(got))
	}
}

func TestSchema(t *testing.T) {
	joined := strings.Join(schema, "\n")
	for _, table := range []string{"schedule_runs", "schedule_assignments"} {
		if !strings.Contains(joined, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("Expected schema to create %s", table)
		}
	}
}
