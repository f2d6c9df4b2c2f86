// Package predict ranks crops for raw input records with a trained bundle.
package predict

import (
	"sort"

	"github.com/YuminosukeSato/agriml/artifact"
	"github.com/YuminosukeSato/agriml/boost"
	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/features"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
	"github.com/YuminosukeSato/agriml/preprocessing"
	"github.com/YuminosukeSato/agriml/thresholds"
)

// Recommendation is one ranked crop.
type Recommendation struct {
	Rank          int     `json:"rank"`
	Crop          string  `json:"crop"`
	Confidence    float64 `json:"confidence"`
	LowConfidence bool    `json:"low_confidence,omitempty"`
}

// Result is the prediction for one input record.
type Result struct {
	Input           frame.Record           `json:"input"`
	Recommendations []Recommendation       `json:"recommendations"`
	Derived         thresholds.Descriptors `json:"derived_categorical_info"`
}

// Predictor applies the bundle's stored transforms and ranks crops.
type Predictor struct {
	bundle        *artifact.Bundle
	topN          int
	minConfidence float64
	logger        log.Logger
}

// NewPredictor creates a Predictor with the ranking settings of cfg.
func NewPredictor(b *artifact.Bundle, cfg config.Inference, logger log.Logger) (*Predictor, error) {
	if b == nil || b.Model == nil || b.Encoder == nil || b.Metadata == nil || b.Metadata.Preprocessing == nil {
		return nil, errors.NewNotFittedError("Predictor", "NewPredictor")
	}
	if logger == nil {
		logger = log.GetLoggerWithName("predict")
	}
	return &Predictor{
		bundle:        b,
		topN:          cfg.TopN,
		minConfidence: cfg.MinConfidence,
		logger:        logger.With(log.PhaseKey, log.PhaseInference),
	}, nil
}

// PredictRecords is Predict over heterogeneous records.
func (p *Predictor) PredictRecords(records []frame.Record, topN int) ([]Result, error) {
	if len(records) == 0 {
		return nil, errors.NewValueError("Predictor.PredictRecords", "no input records")
	}
	f, err := frame.FromRecords(records)
	if err != nil {
		return nil, errors.Wrap(err, "build input frame")
	}
	return p.Predict(f, topN)
}

// Predict ranks the top min(topN, C) crops per row of raw. topN <= 0 uses
// the configured default.
func (p *Predictor) Predict(raw *frame.Frame, topN int) ([]Result, error) {
	if topN <= 0 {
		topN = p.topN
	}
	meta := p.bundle.Metadata

	engineered, err := features.Apply(raw, meta.Engineering)
	if err != nil {
		return nil, err
	}
	X, err := preprocessing.Apply(engineered, meta.Preprocessing)
	if err != nil {
		return nil, err
	}
	pool, err := boost.NewPool(X, nil, meta.Preprocessing.CategoricalPositions())
	if err != nil {
		return nil, err
	}
	proba, err := p.bundle.Model.PredictProba(pool)
	if err != nil {
		return nil, errors.Wrap(err, "predict probabilities")
	}

	derived := thresholds.Derive(raw)
	n, c := proba.Dims()
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		ranked := Rank(proba.RawRowView(i), topN)
		recs := make([]Recommendation, len(ranked))
		for r, idx := range ranked {
			crop, err := p.bundle.Encoder.InverseTransform(idx)
			if err != nil {
				return nil, err
			}
			conf := proba.At(i, idx)
			recs[r] = Recommendation{
				Rank:          r + 1,
				Crop:          crop,
				Confidence:    conf,
				LowConfidence: conf < p.minConfidence,
			}
		}
		results[i] = Result{Input: raw.Row(i), Recommendations: recs, Derived: derived[i]}
	}

	p.logger.Debug("predictions ranked",
		log.OperationKey, log.OperationPredict,
		log.PredsKey, n,
		log.ClassesKey, c,
	)
	return results, nil
}

// Rank returns the indices of the k largest probabilities, highest first;
// equal probabilities keep the lower index first. k is capped at len(probs).
func Rank(probs []float64, k int) []int {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })
	return idx[:min(max(k, 0), len(idx))]
}
