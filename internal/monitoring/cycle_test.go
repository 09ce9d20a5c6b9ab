package monitoring

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestLogCycleSamplesHealthyCycles(t *testing.T) {
	lines := captureLogs(t)
	for seq := uint64(1); seq <= 2*CycleLogInterval; seq++ {
		LogCycle(CycleStats{Seq: seq, Status: "converged", Solve: 3 * time.Millisecond})
	}
	if len(*lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %v", len(*lines), *lines)
	}
	if !strings.Contains((*lines)[0], "converged") {
		t.Errorf("line missing status: %q", (*lines)[0])
	}
}

func TestLogCycleAlwaysLogsFailures(t *testing.T) {
	lines := captureLogs(t)
	LogCycle(CycleStats{Seq: 1, Status: "fallback", Fallback: true, Err: errors.New("boom")})
	LogCycle(CycleStats{Seq: 2, Status: "fallback", Fallback: true})
	if len(*lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(*lines))
	}
	if !strings.Contains((*lines)[0], "err=boom") {
		t.Errorf("line missing error: %q", (*lines)[0])
	}
}
