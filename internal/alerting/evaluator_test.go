package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"monitoring-service/internal/models"
)

func TestIsSlow(t *testing.T) {
	assert.False(t, IsSlow(299, 300))
	assert.False(t, IsSlow(300, 300))
	assert.True(t, IsSlow(301, 300))
}

func TestIsErrorBurst(t *testing.T) {
	assert.False(t, IsErrorBurst(9, 10))
	assert.True(t, IsErrorBurst(10, 10))
	assert.True(t, IsErrorBurst(11, 10))
}

func TestIsDegraded(t *testing.T) {
	assert.False(t, IsDegraded(300.0, 300))
	assert.True(t, IsDegraded(300.5, 300))
}

func TestActivityChange(t *testing.T) {
	tests := []struct {
		name         string
		previous     int64
		current      int64
		threshold    float64
		wantPercent  float64
		wantExceeded bool
	}{
		{"no baseline", 0, 500, 10.0, 0, false},
		{"no baseline zero current", 0, 0, 10.0, 0, false},
		{"drop beyond threshold", 100, 60, 10.0, 40.0, true},
		{"growth beyond threshold", 100, 140, 10.0, 40.0, true},
		{"exactly at threshold", 100, 110, 10.0, 10.0, false},
		{"just over threshold", 1000, 1101, 10.0, 10.1, true},
		{"no change", 100, 100, 10.0, 0, false},
		{"custom threshold", 100, 130, 50.0, 30.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActivityChange(models.ActivitySnapshot{
				ActiveCountPrevious: tt.previous,
				ActiveCountCurrent:  tt.current,
				ThresholdPercent:    tt.threshold,
			})
			assert.InDelta(t, tt.wantPercent, got.ChangePercent, 0.001)
			assert.Equal(t, tt.wantExceeded, got.ThresholdExceeded)
		})
	}
}
