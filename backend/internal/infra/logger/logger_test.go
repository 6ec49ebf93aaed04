package logger

import "testing"

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", "prod"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewBuildsForEachEnv(t *testing.T) {
	for _, env := range []string{"prod", "dev", ""} {
		l, err := New("debug", env)
		if err != nil {
			t.Fatalf("build logger for env %q: %v", env, err)
		}
		_ = l.Sync()
	}
}
