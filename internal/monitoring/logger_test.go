package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	saved := Logf
	defer func() { Logf = saved }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("no-op logger should not reach the previous logger")
	}
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}

func TestPrefixed(t *testing.T) {
	saved := Logf
	defer func() { Logf = saved }()

	logf := Prefixed("journal")

	var got string
	SetLogger(func(format string, v ...interface{}) { got = fmt.Sprintf(format, v...) })
	logf("write failed: %v", "disk full")
	if want := "journal: write failed: disk full"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// A logger swapped in after Prefixed is still honoured.
	got = ""
	SetLogger(nil)
	logf("muted")
	if got != "" {
		t.Errorf("muted logger wrote %q", got)
	}
}
