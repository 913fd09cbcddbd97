package logger

import "testing"

func TestNew(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		l, err := New("debug", env)
		if err != nil {
			t.Fatalf("%s: %v", env, err)
		}
		if !l.Core().Enabled(-1) {
			t.Errorf("%s: debug should be enabled", env)
		}
	}

	if _, err := New("loud", "production"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
