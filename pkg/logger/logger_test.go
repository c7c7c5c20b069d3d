package logger

import "testing"

func TestHelpersAreSafeBeforeExplicitInit(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("logging before Init panicked: %v", r)
		}
	}()

	Info("constructor message before Init")
	Warn("warning before Init")
	Error("error before Init")
}

func TestInitIsIdempotent(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	first := InfoLogger
	if err := Init(); err != nil {
		t.Fatal(err)
	}
	if InfoLogger != first {
		t.Error("second Init replaced the logger")
	}
}
