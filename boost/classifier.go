// Package boost is the gradient-boosting engine: multi-class softmax
// boosting over oblivious trees with quantised features, categorical
// equality splits, bootstrap resampling and early stopping on an eval pool.
//
// The rest of the repository only sees the Engine and Model interfaces.
package boost

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/agriml/core/model"
	"github.com/YuminosukeSato/agriml/core/parallel"
	"github.com/YuminosukeSato/agriml/hyperparams"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

const (
	defaultIterations     = 1000
	defaultLearningRate   = 0.03
	defaultDepth          = 6
	maxDepth              = 16
	defaultL2LeafReg      = 3.0
	defaultBorderCount    = 254
	defaultSubsample      = 0.8
	rowParallelThreshold  = 2048
	minRelativeSplitGain  = 1e-12
	minHessian            = 1e-16
	bootstrapNone         = "no"
)

const (
	bootstrapKindBayesian = iota
	bootstrapKindBernoulli
	bootstrapKindNone
)

// Engine fits a model on a training pool, monitoring eval when it is not nil.
type Engine interface {
	Fit(ctx context.Context, params hyperparams.Params, train, eval *Pool) (Model, error)
}

// Model is a fitted multi-class model.
type Model interface {
	PredictProba(p *Pool) (*mat.Dense, error)
	Predict(p *Pool) ([]int, error)
	// BestIteration is the zero-based iteration kept by early stopping, or
	// the last iteration when no eval pool was given.
	BestIteration() int
	NumClasses() int
	Save(w io.Writer) error
}

// GradientBoosting is the in-process Engine.
type GradientBoosting struct {
	logger log.Logger
}

// NewEngine creates the engine. A nil logger uses the "boost" component logger.
func NewEngine(logger log.Logger) *GradientBoosting {
	if logger == nil {
		logger = log.GetLoggerWithName("boost")
	}
	return &GradientBoosting{logger: logger}
}

// Fit trains a Classifier. Panics inside the fit are returned as errors.
func (e *GradientBoosting) Fit(ctx context.Context, params hyperparams.Params, train, eval *Pool) (m Model, err error) {
	defer errors.Recover(&err, "boost.Fit")

	c := NewClassifier(params, e.logger)
	if err := c.Fit(ctx, train, eval); err != nil {
		return nil, err
	}
	return c, nil
}

// Classifier is a fitted or fittable boosted ensemble. Exported fields are
// the serialised state.
type Classifier struct {
	Params       hyperparams.Params
	NumClass     int
	FeatureNames []string
	CatFeatures  []int
	Borders      [][]float64
	Vocab        [][]string
	Trees        []ObliviousTree
	BestIter     int
	BestScore    float64
	EvalHistory  []float64

	state  *model.StateManager
	logger log.Logger
}

var (
	_ Engine            = (*GradientBoosting)(nil)
	_ Model             = (*Classifier)(nil)
	_ model.Persistable = (*Classifier)(nil)
	_ model.Fittable    = (*Classifier)(nil)
)

// NewClassifier creates an unfitted classifier with a copy of params.
func NewClassifier(params hyperparams.Params, logger log.Logger) *Classifier {
	if logger == nil {
		logger = log.GetLoggerWithName("boost")
	}
	return &Classifier{
		Params:   params.Clone(),
		BestIter: -1,
		state:    model.NewStateManager(),
		logger:   logger,
	}
}

type settings struct {
	iterations     int
	learningRate   float64
	depth          int
	l2LeafReg      float64
	randomStrength float64
	rsm            float64
	minDataInLeaf  int
	borderCount    int
	bootstrap      int
	baggingTemp    float64
	subsample      float64
	seed           uint64
	verbose        int
	rounds         int
	metric         string
}

func resolve(p hyperparams.Params) (settings, error) {
	s := settings{
		iterations:     p.Iterations,
		learningRate:   p.LearningRate,
		depth:          p.Depth,
		l2LeafReg:      p.L2LeafReg,
		randomStrength: p.RandomStrength,
		rsm:            1,
		minDataInLeaf:  max(p.MinDataInLeaf, 1),
		borderCount:    p.BorderCount,
		rounds:         p.EarlyStoppingRounds,
	}
	if s.iterations <= 0 {
		s.iterations = defaultIterations
	}
	if s.learningRate <= 0 {
		s.learningRate = defaultLearningRate
	}
	if s.depth <= 0 {
		s.depth = defaultDepth
	}
	if s.depth > maxDepth {
		return s, errors.NewValidationError("depth", fmt.Sprintf("must be at most %d", maxDepth), p.Depth)
	}
	if s.l2LeafReg <= 0 {
		s.l2LeafReg = defaultL2LeafReg
	}
	if s.borderCount <= 0 {
		s.borderCount = defaultBorderCount
	}
	if p.RSM != nil && *p.RSM > 0 && *p.RSM < 1 {
		s.rsm = *p.RSM
	}
	if p.RandomSeed != nil {
		s.seed = uint64(*p.RandomSeed)
	}
	if p.Verbose != nil {
		s.verbose = *p.Verbose
	}

	switch {
	case hyperparams.IsBayesian(p.BootstrapType):
		s.bootstrap = bootstrapKindBayesian
		s.baggingTemp = 1
		if p.BaggingTemperature != nil {
			s.baggingTemp = *p.BaggingTemperature
		}
	case strings.EqualFold(p.BootstrapType, bootstrapNone):
		s.bootstrap = bootstrapKindNone
	default:
		s.bootstrap = bootstrapKindBernoulli
		s.subsample = defaultSubsample
		if p.Subsample != nil {
			s.subsample = *p.Subsample
		}
	}

	switch {
	case p.EvalMetric == "" || strings.EqualFold(p.EvalMetric, MetricAccuracy):
		s.metric = MetricAccuracy
	case strings.EqualFold(p.EvalMetric, MetricMultiClass):
		s.metric = MetricMultiClass
	default:
		return s, errors.NewValidationError("eval_metric", "supported metrics are Accuracy and MultiClass", p.EvalMetric)
	}
	return s, nil
}

// Fit trains on train. When eval is given, the eval metric is computed after
// every iteration and the ensemble is truncated to the best iteration.
func (c *Classifier) Fit(ctx context.Context, train, eval *Pool) error {
	if train == nil || train.NumRows() == 0 {
		return errors.NewModelError("boost.Fit", "empty training pool", errors.ErrEmptyData)
	}
	if train.labels == nil {
		return errors.NewValueError("boost.Fit", "training pool has no labels")
	}
	if eval != nil && eval.labels == nil {
		return errors.NewValueError("boost.Fit", "eval pool has no labels")
	}
	s, err := resolve(c.Params)
	if err != nil {
		return err
	}

	c.state.Reset()
	c.FeatureNames = train.FeatureNames()
	c.CatFeatures = train.CatFeatures()
	c.NumClass = numClasses(train, eval, c.Params.ClassWeights)
	if c.NumClass < 2 {
		return errors.NewValueError("boost.Fit", "at least two classes are required")
	}
	c.Trees = nil
	c.EvalHistory = nil

	c.fitQuantization(train, s.borderCount)
	tb, err := c.quantize(train)
	if err != nil {
		return err
	}
	var eb *binned
	if eval != nil {
		if eb, err = c.quantize(eval); err != nil {
			return errors.Wrap(err, "boost: eval pool")
		}
	}

	if strings.EqualFold(c.Params.TaskType, hyperparams.TaskGPU) {
		c.logger.Debug("GPU task type requested, computing on CPU workers")
	}

	n, k := train.rows, c.NumClass
	rng := rand.New(rand.NewPCG(s.seed, s.seed))

	classW := make([]float64, n)
	for i, y := range train.labels {
		classW[i] = 1
		if w, ok := c.Params.ClassWeights[y]; ok {
			classW[i] = w
		}
	}

	trainScores := mat.NewDense(n, k, nil)
	var evalScores *mat.Dense
	var es *EarlyStopping
	if eb != nil {
		evalScores = mat.NewDense(eval.rows, k, nil)
		es = NewEarlyStopping(s.rounds, s.metric)
	}

	grad := make([]float64, n*k)
	hess := make([]float64, n*k)
	weights := make([]float64, n)

	for it := 0; it < s.iterations; it++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "boost: fit cancelled at iteration %d", it)
		}

		bootstrapWeights(rng, s, weights)
		for i := range weights {
			weights[i] *= classW[i]
		}
		c.gradients(trainScores, train.labels, weights, grad, hess)
		if err := errors.CheckNumericalStability("boost.gradients", grad, it); err != nil {
			return err
		}

		feats := sampleFeatures(rng, len(c.FeatureNames), s.rsm)
		tree := c.growTree(tb, grad, hess, weights, feats, rng, s, float64(it)/float64(s.iterations))
		c.Trees = append(c.Trees, tree)

		parallel.ParallelizeWithThreshold(n, rowParallelThreshold, func(start, end int) {
			tree.addTo(trainScores, tb, start, end)
		})
		if eb == nil {
			continue
		}

		parallel.ParallelizeWithThreshold(eval.rows, rowParallelThreshold, func(start, end int) {
			tree.addTo(evalScores, eb, start, end)
		})
		score := evalMetric(s.metric, evalScores, eval.labels)
		if err := errors.CheckScalar("boost.eval", score, it); err != nil {
			return err
		}
		c.EvalHistory = append(c.EvalHistory, score)
		if s.verbose > 0 && it%s.verbose == 0 {
			c.logger.Debug("boosting iteration",
				log.IterationKey, it,
				"eval."+strings.ToLower(s.metric), score,
			)
		}
		if es.Update(it, score) {
			break
		}
	}

	if es != nil {
		c.BestIter = es.BestIteration
		c.BestScore = es.BestScore
		c.Trees = c.Trees[:es.BestIteration+1]
	} else {
		c.BestIter = len(c.Trees) - 1
		c.BestScore = math.NaN()
	}
	c.state.SetFitted(len(c.FeatureNames), n)

	c.logger.Info("boosting finished",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, n,
		log.FeaturesKey, len(c.FeatureNames),
		log.ClassesKey, k,
		log.BestIterationKey, c.BestIter,
		log.TaskTypeKey, c.Params.TaskType,
	)
	return nil
}

func numClasses(train, eval *Pool, weights map[int]float64) int {
	m := train.maxLabel()
	if eval != nil {
		m = max(m, eval.maxLabel())
	}
	for cls := range weights {
		m = max(m, cls)
	}
	return m + 1
}

// gradients fills the weighted softmax gradients and diagonal hessians.
func (c *Classifier) gradients(scores *mat.Dense, labels []int, weights, grad, hess []float64) {
	k := c.NumClass
	parallel.ParallelizeWithThreshold(len(labels), rowParallelThreshold, func(start, end int) {
		prob := make([]float64, k)
		for i := start; i < end; i++ {
			errors.Softmax(prob, scores.RawRowView(i))
			w := weights[i]
			for cls, p := range prob {
				g := p
				if cls == labels[i] {
					g -= 1
				}
				h := math.Max(p*(1-p), minHessian)
				grad[i*k+cls] = w * g
				hess[i*k+cls] = w * h
			}
		}
	})
}

// bootstrapWeights draws per-row weights for one iteration. Bayesian uses
// (-ln U)^temperature, Bernoulli keeps a row with probability subsample.
func bootstrapWeights(rng *rand.Rand, s settings, w []float64) {
	switch s.bootstrap {
	case bootstrapKindBayesian:
		for i := range w {
			if s.baggingTemp == 0 {
				w[i] = 1
				continue
			}
			w[i] = math.Pow(-math.Log(1-rng.Float64()), s.baggingTemp)
		}
	case bootstrapKindBernoulli:
		for i := range w {
			w[i] = 0
			if rng.Float64() < s.subsample {
				w[i] = 1
			}
		}
	default:
		for i := range w {
			w[i] = 1
		}
	}
}

// sampleFeatures returns the sorted feature subset considered this iteration.
func sampleFeatures(rng *rand.Rand, nf int, rsm float64) []int {
	if rsm >= 1 {
		out := make([]int, nf)
		for i := range out {
			out[i] = i
		}
		return out
	}
	m := max(1, int(math.Ceil(rsm*float64(nf))))
	out := rng.Perm(nf)[:m]
	sort.Ints(out)
	return out
}

func (c *Classifier) isCategorical(j int) bool {
	for _, cf := range c.CatFeatures {
		if cf == j {
			return true
		}
	}
	return false
}

func (c *Classifier) requireFitted(method string) error {
	if c.state == nil {
		return errors.NewNotFittedError("boost.Classifier", method)
	}
	return c.state.RequireFitted("boost.Classifier", method)
}

// IsFitted reports whether the classifier can predict.
func (c *Classifier) IsFitted() bool {
	return c.state != nil && c.state.IsFitted()
}

// BestIteration returns the zero-based iteration kept after training.
func (c *Classifier) BestIteration() int { return c.BestIter }

// NumClasses returns the number of classes.
func (c *Classifier) NumClasses() int { return c.NumClass }

// PredictProba returns an n×C matrix of class probabilities.
func (c *Classifier) PredictProba(p *Pool) (*mat.Dense, error) {
	if err := c.requireFitted("PredictProba"); err != nil {
		return nil, err
	}
	if p.NumRows() == 0 {
		return nil, errors.NewModelError("boost.PredictProba", "empty pool", errors.ErrEmptyData)
	}
	b, err := c.quantize(p)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(p.rows, c.NumClass, nil)
	parallel.ParallelizeWithThreshold(p.rows, rowParallelThreshold, func(start, end int) {
		for t := range c.Trees {
			c.Trees[t].addTo(out, b, start, end)
		}
		for i := start; i < end; i++ {
			row := out.RawRowView(i)
			errors.Softmax(row, row)
		}
	})
	if err := errors.CheckMatrix("boost.PredictProba", out, len(c.Trees)); err != nil {
		return nil, err
	}
	return out, nil
}

// Predict returns the most probable class per row; ties go to the lower index.
func (c *Classifier) Predict(p *Pool) ([]int, error) {
	proba, err := c.PredictProba(p)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := make([]int, n)
	for i := range out {
		out[i] = argmax(proba.RawRowView(i))
	}
	return out, nil
}

// Save writes the classifier with gob.
func (c *Classifier) Save(w io.Writer) error {
	if err := c.requireFitted("Save"); err != nil {
		return err
	}
	return errors.Wrap(gob.NewEncoder(w).Encode(c), "boost: encode model")
}

// Load replaces c with a classifier read from r.
func (c *Classifier) Load(r io.Reader) error {
	var dec Classifier
	if err := gob.NewDecoder(r).Decode(&dec); err != nil {
		return errors.Wrap(err, "boost: decode model")
	}
	logger := c.logger
	if logger == nil {
		logger = log.GetLoggerWithName("boost")
	}
	*c = dec
	c.logger = logger
	c.state = model.NewStateManager()
	c.state.SetFitted(len(c.FeatureNames), 0)
	return nil
}

// Load reads a classifier written by Save.
func Load(r io.Reader) (*Classifier, error) {
	c := &Classifier{}
	if err := c.Load(r); err != nil {
		return nil, err
	}
	return c, nil
}

func argmax(row []float64) int {
	best := 0
	for j, v := range row {
		if v > row[best] {
			best = j
		}
	}
	return best
}

func evalMetric(metric string, scores *mat.Dense, labels []int) float64 {
	if metric == MetricAccuracy {
		hit := 0
		for i, y := range labels {
			if argmax(scores.RawRowView(i)) == y {
				hit++
			}
		}
		return float64(hit) / float64(len(labels))
	}
	loss := 0.0
	for i, y := range labels {
		row := scores.RawRowView(i)
		loss -= errors.StabilizeLog(math.Exp(row[y] - errors.LogSumExp(row)))
	}
	return loss / float64(len(labels))
}
