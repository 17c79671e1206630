package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trustoracle/oracle/pkg/model"
)

func samples(times ...int64) []model.ProbeSample {
	out := make([]model.ProbeSample, len(times))
	for i, t := range times {
		out[i] = model.ProbeSample{ResponseTimeMs: t, Success: true}
	}
	return out
}

func TestAnalyzeFewerThanThreeIsStable(t *testing.T) {
	got := Analyze(samples(10, 20))
	assert.Equal(t, model.Trends{RecentTrend: model.TrendStable}, got)
}

func TestAnalyzeAllFailuresIsDegrading(t *testing.T) {
	history := []model.ProbeSample{
		{ResponseTimeMs: 10, Success: false},
		{ResponseTimeMs: 20, Success: false},
		{ResponseTimeMs: 30, Success: false},
	}
	got := Analyze(history)
	assert.Equal(t, model.TrendDegrading, got.RecentTrend)
	assert.Zero(t, got.AvgTime)
}

func TestAnalyzeDegradingFromSpecScenario(t *testing.T) {
	// S8: [10,12,11,9,10,100,105,110] — recent=[100,105,110], older mean 10.4
	got := Analyze(samples(10, 12, 11, 9, 10, 100, 105, 110))
	assert.Equal(t, model.TrendDegrading, got.RecentTrend)
	assert.InDelta(t, 45.875, got.AvgTime, 0.01)
	assert.Greater(t, got.StdDev, 0.0)
}

func TestAnalyzeImprovingTrend(t *testing.T) {
	got := Analyze(samples(100, 100, 100, 100, 10, 10, 10))
	assert.Equal(t, model.TrendImproving, got.RecentTrend)
}

func TestAnalyzeStableWithNoOlderSamples(t *testing.T) {
	got := Analyze(samples(10, 20, 30))
	assert.Equal(t, model.TrendStable, got.RecentTrend)
}

func TestAnomalousRequiresPositiveAvg(t *testing.T) {
	assert.False(t, Anomalous(0, 5, 1000))
	assert.True(t, Anomalous(50, 5, 100))
	assert.False(t, Anomalous(50, 5, 59))
}
