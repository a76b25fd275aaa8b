package logging

import "testing"

func TestOrNopReturnsNopForNil(t *testing.T) {
	logger := OrNop(nil)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	// Must not panic.
	logger.Info("hello %s", "world")

	var typed *fileLogger
	logger = OrNop(typed)
	logger.Debug("still fine")
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestNilComponentLoggerIsSafe(t *testing.T) {
	var l *fileLogger
	l.Info("must not panic")
}
