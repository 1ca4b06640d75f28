package chance

import "testing"

func TestSourceDeterminism(t *testing.T) {
	a := NewSource(42)
	b := NewSource(42)
	for i := 0; i < 100; i++ {
		if a.Float() != b.Float() {
			t.Fatalf("sources diverged at draw %d", i)
		}
	}
}

func TestCheckBounds(t *testing.T) {
	src := NewSource(1)
	for i := 0; i < 50; i++ {
		if src.Check(0) {
			t.Fatal("zero probability succeeded")
		}
		if src.Check(-0.5) {
			t.Fatal("negative probability succeeded")
		}
		if !src.Check(1) {
			t.Fatal("certain probability failed")
		}
		if !src.Check(1.5) {
			t.Fatal("above-one probability failed")
		}
	}
}

func TestIntBetween(t *testing.T) {
	src := NewSource(7)
	tests := []struct {
		name     string
		min, max int
	}{
		{name: "normal range", min: 10, max: 40},
		{name: "single value", min: 5, max: 5},
		{name: "inverted range", min: 9, max: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				got := src.IntBetween(tt.min, tt.max)
				lo, hi := tt.min, tt.max
				if hi < lo {
					hi = lo
				}
				if got < lo || got > hi {
					t.Fatalf("IntBetween(%d, %d) = %d out of range", tt.min, tt.max, got)
				}
			}
		})
	}
}

func TestFloatBetween(t *testing.T) {
	src := NewSource(3)
	for i := 0; i < 200; i++ {
		got := src.FloatBetween(0.10, 0.20)
		if got < 0.10 || got >= 0.20 {
			t.Fatalf("FloatBetween out of range: %v", got)
		}
	}
}

func TestNewSeed(t *testing.T) {
	seen := map[int64]bool{}
	for i := 0; i < 10; i++ {
		seed, err := NewSeed()
		if err != nil {
			t.Fatalf("new seed: %v", err)
		}
		seen[seed] = true
	}
	if len(seen) < 2 {
		t.Fatal("seeds are not varying")
	}
}
