package monitor

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m00s"},
		{125 * time.Second, "2m05s"},
	}
	for _, tc := range tests {
		if got := formatDuration(tc.d); got != tc.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestProgressBarIncrementAndFinish(t *testing.T) {
	pb := NewProgressBar("band 1", 10)
	pb.Increment()
	pb.Increment()
	pb.Set(5)
	if got := pb.processed.Load(); got != 5 {
		t.Errorf("processed = %d, want 5", got)
	}
	pb.Finish()
}
