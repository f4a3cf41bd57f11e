package logger

import (
	"bytes"
	"log/slog"
	"os"
	"testing"
)

func TestInitLoggerAcceptsEachValidLevel(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error"}
	for _, level := range levels {
		t.Run(level, func(t *testing.T) {
			if err := InitLogger(level); err != nil {
				t.Fatalf("InitLogger(%q) returned error: %v", level, err)
			}
			if GetLogger() == nil {
				t.Fatal("GetLogger() returned nil after a successful InitLogger")
			}
		})
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if err := InitLogger("verbose"); err == nil {
		t.Error("InitLogger should reject a level outside debug/info/warn/error")
	}
}

func TestGetLoggerFallsBackToSlogDefaultBeforeInit(t *testing.T) {
	globalLogger = nil

	logger := GetLogger()
	if logger == nil {
		t.Fatal("GetLogger() should never return nil, even before InitLogger")
	}
	if logger != slog.Default() {
		t.Error("GetLogger() before any InitLogger call should return slog.Default()")
	}
}

func TestGetLoggerReturnsTheInitializedLoggerAfterInit(t *testing.T) {
	if err := InitLogger("info"); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}

	if got := GetLogger(); got != globalLogger {
		t.Error("GetLogger() should return the logger InitLogger just installed")
	}
}

// TestInitLoggerWritesToStderrNotStdout exercises the one behavioral
// departure from the teacher's logger: this project's handler targets
// os.Stderr, not os.Stdout, so structured logs never interleave with the
// terminal UI's own stdout rendering.
func TestInitLoggerWritesToStderrNotStdout(t *testing.T) {
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe failed: %v", err)
	}
	origStderr := os.Stderr
	os.Stderr = stderrW
	t.Cleanup(func() { os.Stderr = origStderr })

	if err := InitLogger("info"); err != nil {
		t.Fatalf("InitLogger failed: %v", err)
	}
	GetLogger().Info("probe message")

	stderrW.Close()
	var buf bytes.Buffer
	buf.ReadFrom(stderrR)

	if !bytes.Contains(buf.Bytes(), []byte("probe message")) {
		t.Error("logged message should appear on stderr")
	}
}
