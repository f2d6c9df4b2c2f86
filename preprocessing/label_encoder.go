package preprocessing

import (
	"encoding/gob"
	"fmt"
	"io"
	"sort"

	"github.com/YuminosukeSato/agriml/core/frame"
	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// LabelEncoder は作物名と 0..C-1 の整数ラベルを相互変換する
// クラスは文字列順にソートされる。
type LabelEncoder struct {
	Classes []string
	index   map[string]int
}

// NewLabelEncoder は既知のクラス一覧から LabelEncoder を作成する
func NewLabelEncoder(classes []string) *LabelEncoder {
	le := &LabelEncoder{}
	le.setClasses(classes)
	return le
}

func (le *LabelEncoder) setClasses(classes []string) {
	uniq := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		uniq[c] = struct{}{}
	}
	le.Classes = make([]string, 0, len(uniq))
	for c := range uniq {
		le.Classes = append(le.Classes, c)
	}
	sort.Strings(le.Classes)
	le.index = make(map[string]int, len(le.Classes))
	for i, c := range le.Classes {
		le.index[c] = i
	}
}

// Fit は目的変数の列からクラス一覧を学習し、整数ラベルを返す
func (le *LabelEncoder) Fit(target *frame.Column) ([]int, error) {
	vals, nulls := target.Strings()
	present := make([]string, 0, len(vals))
	for i, v := range vals {
		if nulls[i] {
			return nil, errors.NewValueError("LabelEncoder.Fit", fmt.Sprintf("target %q has a missing value at row %d", target.Name(), i))
		}
		present = append(present, v)
	}
	if len(present) == 0 {
		return nil, errors.NewModelError("LabelEncoder.Fit", "empty target", errors.ErrEmptyData)
	}
	le.setClasses(present)
	return le.Transform(present)
}

// NumClasses はクラス数を返す
func (le *LabelEncoder) NumClasses() int {
	return len(le.Classes)
}

// Transform は作物名を整数ラベルに変換する。未知のクラスはエラー。
func (le *LabelEncoder) Transform(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := le.index[l]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", fmt.Sprintf("unknown class %q", l))
		}
		out[i] = idx
	}
	return out, nil
}

// Index は1つの作物名のラベルを返す
func (le *LabelEncoder) Index(label string) (int, bool) {
	idx, ok := le.index[label]
	return idx, ok
}

// InverseTransform は整数ラベルを作物名に戻す
func (le *LabelEncoder) InverseTransform(idx int) (string, error) {
	if idx < 0 || idx >= len(le.Classes) {
		return "", errors.NewValueError("LabelEncoder.InverseTransform", fmt.Sprintf("label %d out of range [0, %d)", idx, len(le.Classes)))
	}
	return le.Classes[idx], nil
}

// Save は gob で書き出す
func (le *LabelEncoder) Save(w io.Writer) error {
	return gob.NewEncoder(w).Encode(le.Classes)
}

// Load は gob から読み込む
func (le *LabelEncoder) Load(r io.Reader) error {
	var classes []string
	if err := gob.NewDecoder(r).Decode(&classes); err != nil {
		return err
	}
	le.setClasses(classes)
	return nil
}
