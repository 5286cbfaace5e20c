package workers

import (
	"os"
	"runtime"
	"testing"
)

func clearOverride(t *testing.T) {
	t.Helper()
	if original, ok := os.LookupEnv("INDEX_WORKERS"); ok {
		t.Cleanup(func() { os.Setenv("INDEX_WORKERS", original) })
	} else {
		t.Cleanup(func() { os.Unsetenv("INDEX_WORKERS") })
	}
	os.Unsetenv("INDEX_WORKERS")
}

func TestCount(t *testing.T) {
	clearOverride(t)
	available := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		wantMax    int
	}{
		{"CPU-bound", 1.0, 0, available},
		{"I/O-bound", 2.0, 0, available * 2},
		{"mixed", 1.5, 0, int(float64(available) * 1.5)},
		{"capped by limit", 2.0, 2, 2},
		{"tiny multiplier floors at one", 0.1, 0, available},
		{"zero multiplier floors at one", 0, 0, available},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)
			if got < 1 {
				t.Errorf("Count(%v, %d) = %d, want at least 1", tt.multiplier, tt.limit, got)
			}
			if got > tt.wantMax {
				t.Errorf("Count(%v, %d) = %d, want at most %d", tt.multiplier, tt.limit, got, tt.wantMax)
			}
		})
	}
}

func TestCountEnvOverride(t *testing.T) {
	clearOverride(t)

	tests := []struct {
		name     string
		envValue string
		limit    int
		want     int
	}{
		{"valid override", "8", 0, 8},
		{"override capped by limit", "20", 10, 10},
		{"override below limit", "5", 10, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("INDEX_WORKERS", tt.envValue)
			defer os.Unsetenv("INDEX_WORKERS")

			if got := Count(1.0, tt.limit); got != tt.want {
				t.Errorf("Count(1.0, %d) with INDEX_WORKERS=%s = %d, want %d",
					tt.limit, tt.envValue, got, tt.want)
			}
		})
	}
}

func TestCountInvalidOverrideFallsBack(t *testing.T) {
	clearOverride(t)

	for _, bad := range []string{"invalid", "0", "-5"} {
		os.Setenv("INDEX_WORKERS", bad)
		if got := Count(1.0, 0); got < 1 {
			t.Errorf("Count with INDEX_WORKERS=%q = %d, want the default calculation", bad, got)
		}
	}
	os.Unsetenv("INDEX_WORKERS")
}

func TestHelpers(t *testing.T) {
	clearOverride(t)

	if got := ForCPU(1); got != 1 {
		t.Errorf("ForCPU(1) = %d, want exactly 1", got)
	}
	if got := ForIO(8); got < 1 || got > 8 {
		t.Errorf("ForIO(8) = %d, want within [1, 8]", got)
	}
	if got := ForMixed(0); got < 1 {
		t.Errorf("ForMixed(0) = %d, want at least 1", got)
	}
}
