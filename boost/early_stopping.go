package boost

import (
	"math"
	"strings"
)

// Eval metrics understood by the engine.
const (
	MetricAccuracy   = "Accuracy"
	MetricMultiClass = "MultiClass"
)

// EarlyStopping tracks the best eval score. With Rounds > 0 it also signals
// a stop after Rounds iterations without improvement (od_type Iter).
type EarlyStopping struct {
	Rounds          int
	BestScore       float64
	BestIteration   int
	RoundsNoImprove int
	Metric          string
	Maximize        bool
}

// NewEarlyStopping creates a tracker for metric. Accuracy is maximised,
// MultiClass log loss minimised.
func NewEarlyStopping(rounds int, metric string) *EarlyStopping {
	maximize := strings.EqualFold(metric, MetricAccuracy)
	best := math.Inf(1)
	if maximize {
		best = math.Inf(-1)
	}
	return &EarlyStopping{
		Rounds:        rounds,
		BestScore:     best,
		BestIteration: -1,
		Metric:        metric,
		Maximize:      maximize,
	}
}

// Update records the score of iteration and reports whether training should stop.
func (es *EarlyStopping) Update(iteration int, score float64) bool {
	improved := score < es.BestScore
	if es.Maximize {
		improved = score > es.BestScore
	}
	if improved {
		es.BestScore = score
		es.BestIteration = iteration
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}
	return es.Rounds > 0 && es.RoundsNoImprove >= es.Rounds
}
