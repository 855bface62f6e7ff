package stream

import (
	"math/rand"
	"testing"
	"time"
)

func TestCeilingMonotonicAndCapped(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 0; attempt < 20; attempt++ {
		c := Ceiling(attempt)
		if c < prev {
			t.Fatalf("Ceiling(%d) = %v < Ceiling(%d) = %v", attempt, c, attempt-1, prev)
		}
		if c > backoffCap {
			t.Fatalf("Ceiling(%d) = %v exceeds cap %v", attempt, c, backoffCap)
		}
		prev = c
	}
	if Ceiling(0) != backoffBase {
		t.Errorf("Ceiling(0) = %v, want base %v", Ceiling(0), backoffBase)
	}
	if Ceiling(100) != backoffCap {
		t.Errorf("Ceiling(100) = %v, want cap %v", Ceiling(100), backoffCap)
	}
}

func TestCeilingDoubling(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{5, 32 * time.Second},
		{6, 64 * time.Second},
		{7, 64 * time.Second}, // capped
	}
	for _, tt := range tests {
		if got := Ceiling(tt.attempt); got != tt.want {
			t.Errorf("Ceiling(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDelayWithinJitterBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for attempt := 0; attempt < 10; attempt++ {
		c := Ceiling(attempt)
		for i := 0; i < 100; i++ {
			d := Delay(attempt, rng)
			if d < c/2 || d > c {
				t.Fatalf("Delay(%d) = %v outside [%v, %v]", attempt, d, c/2, c)
			}
		}
	}
}

func TestDelayNegativeAttemptClamped(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if d := Delay(-3, rng); d < backoffBase/2 || d > backoffBase {
		t.Errorf("Delay(-3) = %v, want within first-attempt bounds", d)
	}
}
