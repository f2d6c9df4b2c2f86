package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/agriml/config"
	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

const eps = 1e-6

// AnomalyStat holds the fitted location and scale of one anomaly feature.
type AnomalyStat struct {
	Source string  `json:"source"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
}

// Stats is everything Apply needs to reproduce the engineered features of a
// Fit call. Ratio and log features are row-wise and carry no state.
type Stats struct {
	Options   config.Features        `json:"options"`
	Anomalies map[string]AnomalyStat `json:"anomalies"`
}

// Engineer adds ratio, log1p and climate-anomaly features.
type Engineer struct {
	opts   config.Features
	logger log.Logger
}

// NewEngineer creates an Engineer gated by the feature toggles.
func NewEngineer(opts config.Features, logger log.Logger) *Engineer {
	if logger == nil {
		logger = log.GetLoggerWithName("features")
	}
	return &Engineer{opts: opts, logger: logger}
}

// Fit computes anomaly statistics on f and returns f with engineered columns.
func (e *Engineer) Fit(f *frame.Frame) (*frame.Frame, Stats, error) {
	st := Stats{Options: e.opts, Anomalies: map[string]AnomalyStat{}}
	if e.opts.ClimateAnomalies {
		for _, a := range []struct {
			out  string
			cols []string
		}{
			{TemperatureAnomalyZ, temperatureCols},
			{RainfallAnomalyZ, rainfallCols},
		} {
			if f.Has(a.out) {
				continue
			}
			src, ok := first(f, a.cols)
			if !ok {
				continue
			}
			vals := present(src.Floats())
			if len(vals) == 0 {
				continue
			}
			mean, std := stat.MeanStdDev(vals, nil)
			if len(vals) < 2 || math.IsNaN(std) {
				std = 0
			}
			st.Anomalies[a.out] = AnomalyStat{Source: src.Name(), Mean: mean, Std: std + eps}
		}
	}
	out, err := Apply(f, st)
	if err != nil {
		return nil, Stats{}, err
	}
	e.logger.Debug("engineered features fitted",
		log.FeaturesKey, out.NumCols()-f.NumCols(),
		"anomalies", len(st.Anomalies),
	)
	return out, st, nil
}

// Apply adds the engineered columns described by st to f. It is a pure
// function of its inputs; inputs missing a source column are left alone.
// A column the input already carries is kept as is.
func Apply(f *frame.Frame, st Stats) (*frame.Frame, error) {
	cs := &columnSet{out: f}
	add := cs.add

	if st.Options.RatioFeatures {
		n, okN := first(f, nitrogenCols)
		p, okP := first(f, phosphorusCols)
		k, okK := first(f, potassiumCols)
		if okN && okP && okK {
			nv, pv, kv := n.Floats(), p.Floats(), k.Floats()
			np := make([]float64, len(nv))
			pk := make([]float64, len(nv))
			sum := make([]float64, len(nv))
			for i := range nv {
				np[i] = nv[i] / (pv[i] + eps)
				pk[i] = pv[i] / (kv[i] + eps)
				sum[i] = nv[i] + pv[i] + kv[i]
			}
			add(frame.NewNumeric(RatioNP, np))
			add(frame.NewNumeric(RatioPK, pk))
			add(frame.NewNumeric(NPKSum, sum))
		}
	}

	if st.Options.LogMicronutrients {
		for _, m := range micronutrients {
			src, ok := first(f, m.cols)
			if !ok {
				continue
			}
			vals := src.Floats()
			for i, v := range vals {
				vals[i] = math.Log1p(math.Max(v, 0))
			}
			add(frame.NewNumeric("log1p_"+m.name, vals))
		}
	}

	for _, name := range []string{TemperatureAnomalyZ, RainfallAnomalyZ} {
		a, ok := st.Anomalies[name]
		if !ok || f.Has(name) {
			continue
		}
		src, ok := f.Column(a.Source)
		if !ok {
			continue
		}
		vals := src.Floats()
		for i, v := range vals {
			vals[i] = (v - a.Mean) / a.Std
		}
		add(frame.NewNumeric(name, vals))
	}
	if cs.err != nil {
		return nil, cs.err
	}
	return cs.out, nil
}

// columnSet appends derived columns and remembers the first failure.
type columnSet struct {
	out *frame.Frame
	err error
}

func (s *columnSet) add(c *frame.Column) {
	if s.err != nil || s.out.Has(c.Name()) {
		return
	}
	g, err := s.out.With(c)
	if err != nil {
		s.err = errors.Wrapf(err, "features: add %s", c.Name())
		return
	}
	s.out = g
}

func first(f *frame.Frame, names []string) (*frame.Column, bool) {
	for _, n := range names {
		if c, ok := f.Column(n); ok {
			return c, true
		}
	}
	return nil, false
}

func present(vals []float64) []float64 {
	out := vals[:0]
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
