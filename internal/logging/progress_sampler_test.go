package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(1, 10) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_BucketsAndFinal(t *testing.T) {
	s := NewProgressSampler(25)

	var emitted []int
	for done := 1; done <= 10; done++ {
		if s.ShouldLog(done, 10) {
			emitted = append(emitted, done)
		}
	}

	// 10% -> bucket 0, 30% -> bucket 1, 50% -> bucket 2, 80% -> bucket 3, 100% final
	want := []int{1, 3, 5, 8, 10}
	if len(emitted) != len(want) {
		t.Fatalf("emitted %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted %v, want %v", emitted, want)
		}
	}

	if s.ShouldLog(10, 10) {
		t.Error("final event should only log once")
	}

	s.Reset()
	if !s.ShouldLog(1, 10) {
		t.Error("expected log after reset")
	}
}

func TestProgressSampler_UnknownTotal(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(3, 0) {
		t.Error("unknown total should always log")
	}
}
