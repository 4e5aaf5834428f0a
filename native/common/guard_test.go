package common

import (
	"errors"
	"testing"
)

type pauseSet map[string]bool

func (p pauseSet) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	pauses := pauseSet{"staking": true}
	if err := Guard(pauses, "staking"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(pauses, "lending"); err != nil {
		t.Fatalf("lending must not be paused: %v", err)
	}
	if err := Guard(nil, "staking"); err != nil {
		t.Fatalf("nil view must not pause: %v", err)
	}
}
