// Package evaluation scores the final model once on the held-out split.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/agriml/metrics"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

// WorstClassCount is the number of lowest-accuracy classes reported.
const WorstClassCount = 5

// ClassAccuracy pairs a class name with its per-class accuracy.
type ClassAccuracy struct {
	Class    string  `json:"class"`
	Accuracy float64 `json:"accuracy"`
}

// Report is the evaluation of one model on one labelled set.
type Report struct {
	Samples          int     `json:"samples"`
	Accuracy         float64 `json:"accuracy"`
	BalancedAccuracy float64 `json:"balanced_accuracy"`
	MacroF1          float64 `json:"macro_f1"`
	WeightedF1       float64 `json:"weighted_f1"`

	// Top-k accuracy for k = min(3, C) and k = min(5, C).
	Top3K        int     `json:"top3_k"`
	Top3Accuracy float64 `json:"top3_accuracy"`
	Top5K        int     `json:"top5_k"`
	Top5Accuracy float64 `json:"top5_accuracy"`

	ClassNames       []string                      `json:"class_names"`
	PerClassAccuracy []float64                     `json:"per_class_accuracy"`
	ConfusionMatrix  [][]int                       `json:"confusion_matrix"`
	WorstClasses     []ClassAccuracy               `json:"worst_classes"`
	ClassReport      map[string]metrics.ClassScore `json:"classification_report"`
}

// JSON encodes the report with indentation.
func (r *Report) JSON() ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	return b, errors.Wrap(err, "encode evaluation report")
}

// Evaluator computes and logs a Report.
type Evaluator struct {
	logger log.Logger
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(logger log.Logger) *Evaluator {
	if logger == nil {
		logger = log.GetLoggerWithName("evaluation")
	}
	return &Evaluator{logger: logger.With(log.PhaseKey, log.PhaseEvaluation)}
}

// Evaluate scores proba (n x C) against yTrue. Predictions are the argmax
// of each row; classes names the columns of proba.
func (e *Evaluator) Evaluate(yTrue []int, proba mat.Matrix, classes []string) (*Report, error) {
	n, c := proba.Dims()
	if n != len(yTrue) {
		return nil, errors.NewDimensionError("Evaluator.Evaluate", len(yTrue), n, 0)
	}
	if c != len(classes) {
		return nil, errors.NewDimensionError("Evaluator.Evaluate", len(classes), c, 1)
	}

	yPred := make([]int, n)
	row := make([]float64, c)
	for i := range yPred {
		mat.Row(row, i, proba)
		yPred[i] = floats.MaxIdx(row)
	}

	r := &Report{Samples: n, ClassNames: append([]string(nil), classes...)}
	var err error
	if r.Accuracy, err = metrics.Accuracy(yTrue, yPred); err != nil {
		return nil, err
	}
	if r.BalancedAccuracy, err = metrics.BalancedAccuracy(yTrue, yPred, c); err != nil {
		return nil, err
	}
	if r.MacroF1, err = metrics.F1Macro(yTrue, yPred, c); err != nil {
		return nil, err
	}
	if r.WeightedF1, err = metrics.F1Weighted(yTrue, yPred, c); err != nil {
		return nil, err
	}
	r.Top3K, r.Top5K = min(3, c), min(5, c)
	if r.Top3Accuracy, err = metrics.TopKAccuracy(yTrue, proba, r.Top3K); err != nil {
		return nil, err
	}
	if r.Top5Accuracy, err = metrics.TopKAccuracy(yTrue, proba, r.Top5K); err != nil {
		return nil, err
	}

	if r.ConfusionMatrix, err = metrics.ConfusionMatrix(yTrue, yPred, c); err != nil {
		return nil, err
	}
	r.PerClassAccuracy = metrics.PerClassAccuracy(r.ConfusionMatrix)
	r.WorstClasses = worstClasses(r.PerClassAccuracy, classes, WorstClassCount)

	scores, err := metrics.PerClass(yTrue, yPred, c)
	if err != nil {
		return nil, err
	}
	r.ClassReport = make(map[string]metrics.ClassScore, c)
	for i, s := range scores {
		r.ClassReport[classes[i]] = s
	}

	e.log(r)
	return r, nil
}

func (e *Evaluator) log(r *Report) {
	e.logger.Info("model evaluation",
		log.SamplesKey, r.Samples,
		log.AccuracyKey, r.Accuracy,
		"balanced_accuracy", r.BalancedAccuracy,
		log.F1Key, r.MacroF1,
		"weighted_f1", r.WeightedF1,
		fmt.Sprintf("top%d_accuracy", r.Top3K), r.Top3Accuracy,
		fmt.Sprintf("top%d_accuracy", r.Top5K), r.Top5Accuracy,
	)
	for _, w := range r.WorstClasses {
		e.logger.Info("worst performing crop", log.CropKey, w.Class, log.AccuracyKey, w.Accuracy)
	}
	if e.logger.Enabled(context.Background(), log.LevelDebug) {
		for _, name := range r.ClassNames {
			s := r.ClassReport[name]
			e.logger.Debug("class report",
				log.CropKey, name,
				"precision", s.Precision,
				"recall", s.Recall,
				"f1", s.F1,
				"support", s.Support,
			)
		}
	}
}

// worstClasses returns the k classes with the lowest accuracy, ascending;
// ties keep class order.
func worstClasses(acc []float64, classes []string, k int) []ClassAccuracy {
	idx := make([]int, len(acc))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return acc[idx[a]] < acc[idx[b]] })
	k = min(k, len(idx))
	out := make([]ClassAccuracy, k)
	for i := 0; i < k; i++ {
		out[i] = ClassAccuracy{Class: classes[idx[i]], Accuracy: acc[idx[i]]}
	}
	return out
}
