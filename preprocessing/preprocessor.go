// Package preprocessing は学習時と推論時で完全に同じ変換を行う前処理を提供します。
// 統計量は Fit で一度だけ計算され、Metadata として保存されます。Apply は
// Metadata と入力だけに依存する純粋関数です。
package preprocessing

import (
	"math"

	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/core/model"
	"github.com/YuminosukeSato/agriml/dataset"
	"github.com/YuminosukeSato/agriml/pkg/errors"
	"github.com/YuminosukeSato/agriml/pkg/log"
)

// クリップに使うパーセンタイル
const (
	ClipLowQuantile  = 0.01
	ClipHighQuantile = 0.99
)

// ClipBounds は数値特徴量のクリップ範囲 [Low, High]
type ClipBounds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Metadata は Fit で得られた前処理の統計量。作成後は変更しない。
type Metadata struct {
	FeatureNames         []string              `json:"feature_names"`
	NumericFeatures      []string              `json:"numeric_features"`
	CategoricalFeatures  []string              `json:"categorical_features"`
	NumericMedians       map[string]float64    `json:"numeric_medians"`
	NumericClipBounds    map[string]ClipBounds `json:"numeric_clip_bounds"`
	CategoricalFillModes map[string]string     `json:"categorical_fill_modes"`
}

// CategoricalPositions は出力列順における categorical 特徴量の位置を返す。
// 位置は保存せず、使用時に毎回名前から計算する。
func (m *Metadata) CategoricalPositions() []int {
	return frame.Positions(m.FeatureNames, m.CategoricalFeatures)
}

// Preprocessor は数値特徴量の欠損補完・クリップと categorical 特徴量の欠損補完を行う
type Preprocessor struct {
	state  *model.StateManager
	meta   *Metadata
	logger log.Logger
}

// NewPreprocessor は新しいPreprocessorを作成する
//
// 使用例:
//
//	pp := preprocessing.NewPreprocessor(logger)
//	Xtrain, err := pp.Fit(train, fs.Numeric, fs.Categorical)
//	Xtest, err := pp.Apply(test)
func NewPreprocessor(logger log.Logger) *Preprocessor {
	if logger == nil {
		logger = log.GetLoggerWithName("preprocessing")
	}
	return &Preprocessor{state: model.NewStateManager(), logger: logger}
}

// FromMetadata は保存済みの Metadata から学習済みの Preprocessor を復元する
func FromMetadata(meta *Metadata, logger log.Logger) *Preprocessor {
	p := NewPreprocessor(logger)
	p.meta = meta
	p.state.SetFitted(len(meta.FeatureNames), 0)
	return p
}

// Metadata は学習済みの統計量を返す
func (p *Preprocessor) Metadata() (*Metadata, error) {
	if err := p.state.RequireFitted("Preprocessor", "Metadata"); err != nil {
		return nil, err
	}
	return p.meta, nil
}

// Fit は学習データから統計量を計算し、変換後のフレームを返す
//
// 目的変数の列名が特徴量リストに含まれていた場合は取り除き、警告を出す。
// 入力に存在しない特徴量は全て欠損として扱う。
func (p *Preprocessor) Fit(f *frame.Frame, numeric, categorical []string) (*frame.Frame, error) {
	if f.NumRows() == 0 {
		return nil, errors.NewModelError("Preprocessor.Fit", "empty data", errors.ErrEmptyData)
	}

	numeric = p.dropTargets(numeric)
	categorical = p.dropTargets(categorical)

	meta := &Metadata{
		NumericFeatures:      numeric,
		CategoricalFeatures:  categorical,
		NumericMedians:       make(map[string]float64, len(numeric)),
		NumericClipBounds:    make(map[string]ClipBounds, len(numeric)),
		CategoricalFillModes: make(map[string]string, len(categorical)),
	}
	meta.FeatureNames = append(append([]string{}, numeric...), categorical...)

	for _, name := range numeric {
		vals := numericValues(f, name)
		if c, ok := f.Column(name); ok {
			if n := c.CoercionFailures(); n > 0 {
				errors.Warn(errors.NewDataConversionWarning(name, "text", "float64", n))
			}
		}

		med := frame.QuantileLinear(vals, 0.5)
		if math.IsNaN(med) {
			// 全て欠損の列
			meta.NumericMedians[name] = 0
			meta.NumericClipBounds[name] = ClipBounds{}
			continue
		}
		for i, v := range vals {
			if math.IsNaN(v) {
				vals[i] = med
			}
		}
		meta.NumericMedians[name] = med
		meta.NumericClipBounds[name] = ClipBounds{
			Low:  frame.QuantileLinear(vals, ClipLowQuantile),
			High: frame.QuantileLinear(vals, ClipHighQuantile),
		}
	}

	for _, name := range categorical {
		mode := "Unknown"
		if c, ok := f.Column(name); ok {
			if m, ok := c.Mode(); ok {
				mode = m
			}
		}
		meta.CategoricalFillModes[name] = mode
	}

	out, err := Apply(f, meta)
	if err != nil {
		return nil, err
	}
	p.meta = meta
	p.state.SetFitted(len(meta.FeatureNames), f.NumRows())
	p.logger.Info("preprocessing fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, f.NumRows(),
		log.FeaturesKey, len(meta.FeatureNames),
	)
	return out, nil
}

// Apply は学習済みの統計量で f を変換する
func (p *Preprocessor) Apply(f *frame.Frame) (*frame.Frame, error) {
	if err := p.state.RequireFitted("Preprocessor", "Apply"); err != nil {
		return nil, err
	}
	return Apply(f, p.meta)
}

// Apply は meta に従って f を変換する。統計量の再計算は行わない。
//
// 出力列の順序は meta.FeatureNames に一致する。数値列は数値化（できない値は欠損）、
// 中央値で補完、[p1, p99] にクリップする。categorical 列は最頻値で補完し文字列化する。
func Apply(f *frame.Frame, meta *Metadata) (*frame.Frame, error) {
	if meta == nil {
		return nil, errors.NewNotFittedError("Preprocessor", "Apply")
	}
	cols := make([]*frame.Column, 0, len(meta.FeatureNames))
	for _, name := range meta.NumericFeatures {
		med := meta.NumericMedians[name]
		b := meta.NumericClipBounds[name]
		vals := numericValues(f, name)
		for i, v := range vals {
			if math.IsNaN(v) {
				v = med
			}
			vals[i] = errors.ClipValue(v, b.Low, b.High)
		}
		cols = append(cols, frame.NewNumeric(name, vals))
	}
	for _, name := range meta.CategoricalFeatures {
		fill := meta.CategoricalFillModes[name]
		vals := make([]string, f.NumRows())
		if c, ok := f.Column(name); ok {
			for i := range vals {
				s, present := c.String(i)
				if !present {
					s = fill
				}
				vals[i] = s
			}
		} else {
			for i := range vals {
				vals[i] = fill
			}
		}
		cols = append(cols, frame.NewText(name, vals, nil))
	}

	out, err := frame.New(cols...)
	if err != nil {
		return nil, errors.Wrap(err, "preprocessing: assemble output")
	}
	return out.Select(meta.FeatureNames...)
}

func (p *Preprocessor) dropTargets(names []string) []string {
	out := make([]string, 0, len(names))
	var dropped []string
	for _, n := range names {
		if dataset.IsTargetName(n) {
			dropped = append(dropped, n)
			continue
		}
		out = append(out, n)
	}
	if len(dropped) > 0 {
		w := errors.NewLeakageWarning("target column listed as a feature", dropped...)
		p.logger.Warn("target column removed from features", log.ColumnsKey, dropped)
		errors.Warn(w)
	}
	return out
}

// numericValues は列を数値として取り出す。列が無ければ全て NaN。
func numericValues(f *frame.Frame, name string) []float64 {
	if c, ok := f.Column(name); ok {
		return c.Floats()
	}
	vals := make([]float64, f.NumRows())
	for i := range vals {
		vals[i] = math.NaN()
	}
	return vals
}
