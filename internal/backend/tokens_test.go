package backend

import "testing"

func TestTokenTracker_Add(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	input, output := tracker.Total()

	if input != 100 {
		t.Errorf("Input tokens = %d, want 100", input)
	}
	if output != 50 {
		t.Errorf("Output tokens = %d, want 50", output)
	}
	if tracker.Calls() != 1 {
		t.Errorf("Calls = %d, want 1", tracker.Calls())
	}
}

func TestTokenTracker_AddMultiple(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Add(200, 100)
	tracker.Add(50, 25)

	input, output := tracker.Total()

	if input != 350 {
		t.Errorf("Input tokens = %d, want 350", input)
	}
	if output != 175 {
		t.Errorf("Output tokens = %d, want 175", output)
	}
	if tracker.Calls() != 3 {
		t.Errorf("Calls = %d, want 3", tracker.Calls())
	}
}

func TestTokenTracker_Reset(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Reset()

	input, output := tracker.Total()
	if input != 0 || output != 0 {
		t.Errorf("After reset: input=%d, output=%d; want 0, 0", input, output)
	}
	if tracker.Calls() != 0 {
		t.Errorf("Calls after reset = %d, want 0", tracker.Calls())
	}
}

func TestTokenTracker_Cost(t *testing.T) {
	tracker := NewTokenTracker()

	// 1M input tokens at $3/1M = $3
	// 1M output tokens at $15/1M = $15
	// Total = $18
	tracker.Add(1_000_000, 1_000_000)

	cost := tracker.Cost()
	expected := 18.0

	if cost != expected {
		t.Errorf("Cost = %f, want %f", cost, expected)
	}
}

func TestTokenTracker_CostSmall(t *testing.T) {
	tracker := NewTokenTracker()

	// 1000 input at $3/1M = $0.003
	// 1000 output at $15/1M = $0.015
	// Total = $0.018
	tracker.Add(1000, 1000)

	cost := tracker.Cost()
	expected := 0.018

	// Use epsilon comparison for floating point
	epsilon := 0.000001
	if cost < expected-epsilon || cost > expected+epsilon {
		t.Errorf("Cost = %f, want %f (within %f)", cost, expected, epsilon)
	}
}
