// Package trend derives rolling latency statistics from an agent's probe
// history (spec §4.5). Every function here is pure: same input, same
// output, no I/O.
package trend

import (
	"math"

	"github.com/trustoracle/oracle/pkg/model"
)

// Analyze computes avg/stddev/direction over the successful samples in
// history. history is assumed chronological (oldest first), matching the
// store's insertion order.
func Analyze(history []model.ProbeSample) model.Trends {
	if len(history) < 3 {
		return model.Trends{RecentTrend: model.TrendStable}
	}

	successful := make([]model.ProbeSample, 0, len(history))
	for _, s := range history {
		if s.Success {
			successful = append(successful, s)
		}
	}
	if len(successful) == 0 {
		return model.Trends{RecentTrend: model.TrendDegrading}
	}

	avg, stdDev := meanAndPopStdDev(successful)

	recentN := 3
	if len(successful) < recentN {
		recentN = len(successful)
	}
	recent := successful[len(successful)-recentN:]
	older := successful[:len(successful)-recentN]

	trend := model.TrendStable
	if len(older) > 0 {
		recentMean := mean(recent)
		olderMean := mean(older)
		switch {
		case recentMean < 0.8*olderMean:
			trend = model.TrendImproving
		case recentMean > 1.2*olderMean:
			trend = model.TrendDegrading
		}
	}

	return model.Trends{AvgTime: avg, StdDev: stdDev, RecentTrend: trend}
}

// Anomalous reports whether currentResponseTime is anomalous given the
// agent's rolling avg/stddev (spec §4.5: "consumed by C6/C8").
func Anomalous(avgTime, stdDev float64, currentResponseTime int64) bool {
	return avgTime > 0 && float64(currentResponseTime) > avgTime+2*stdDev
}

func mean(samples []model.ProbeSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s.ResponseTimeMs)
	}
	return sum / float64(len(samples))
}

func meanAndPopStdDev(samples []model.ProbeSample) (avg, stdDev float64) {
	avg = mean(samples)
	var sumSq float64
	for _, s := range samples {
		d := float64(s.ResponseTimeMs) - avg
		sumSq += d * d
	}
	variance := sumSq / float64(len(samples))
	return avg, math.Sqrt(variance)
}
