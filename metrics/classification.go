// Package metrics は多クラス分類の評価指標を提供します。
// ラベルは 0..C-1 に符号化された整数です。
package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// ClassScore は1クラス分の precision / recall / F1 / support
type ClassScore struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

func checkLabels(op string, yTrue, yPred []int, numClasses int) error {
	// 入力検証
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty labels")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	for i := range yTrue {
		if yTrue[i] < 0 || yTrue[i] >= numClasses || yPred[i] < 0 || yPred[i] >= numClasses {
			return errors.NewValueError(op, fmt.Sprintf("label out of range [0, %d) at index %d", numClasses, i))
		}
	}
	return nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred []int) (float64, error) {
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("Accuracy", "empty labels")
	}
	if len(yPred) != len(yTrue) {
		return 0, errors.NewDimensionError("Accuracy", len(yTrue), len(yPred), 0)
	}
	hit := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue)), nil
}

// ConfusionMatrix は混同行列を返す。行が正解、列が予測。
func ConfusionMatrix(yTrue, yPred []int, numClasses int) ([][]int, error) {
	if err := checkLabels("ConfusionMatrix", yTrue, yPred, numClasses); err != nil {
		return nil, err
	}
	cm := make([][]int, numClasses)
	for i := range cm {
		cm[i] = make([]int, numClasses)
	}
	for i := range yTrue {
		cm[yTrue[i]][yPred[i]]++
	}
	return cm, nil
}

// PerClassAccuracy はクラスごとの正解率 diag / max(行和, 1) を返す
func PerClassAccuracy(cm [][]int) []float64 {
	out := make([]float64, len(cm))
	for i, row := range cm {
		total := 0
		for _, v := range row {
			total += v
		}
		out[i] = float64(row[i]) / float64(max(total, 1))
	}
	return out
}

// BalancedAccuracy は y_true に現れるクラスの recall の平均を計算する
func BalancedAccuracy(yTrue, yPred []int, numClasses int) (float64, error) {
	cm, err := ConfusionMatrix(yTrue, yPred, numClasses)
	if err != nil {
		return 0, err
	}
	sum, n := 0.0, 0
	for i, row := range cm {
		total := 0
		for _, v := range row {
			total += v
		}
		if total == 0 {
			continue
		}
		sum += float64(row[i]) / float64(total)
		n++
	}
	return sum / float64(n), nil
}

// PerClass はクラスごとのスコアを計算する。
// 分母が0の指標は0とする（zero_division=0）。
func PerClass(yTrue, yPred []int, numClasses int) ([]ClassScore, error) {
	cm, err := ConfusionMatrix(yTrue, yPred, numClasses)
	if err != nil {
		return nil, err
	}
	scores := make([]ClassScore, numClasses)
	for c := 0; c < numClasses; c++ {
		tp := cm[c][c]
		support, predicted := 0, 0
		for k := 0; k < numClasses; k++ {
			support += cm[c][k]
			predicted += cm[k][c]
		}
		s := ClassScore{Support: support}
		if predicted > 0 {
			s.Precision = float64(tp) / float64(predicted)
		} else if support > 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("precision", fmt.Sprintf("class %d has no predicted samples", c), 0))
		}
		if support > 0 {
			s.Recall = float64(tp) / float64(support)
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		scores[c] = s
	}
	return scores, nil
}

// F1Macro はマクロ平均F1を計算する。
// 対象は y_true または y_pred に現れるクラス。
func F1Macro(yTrue, yPred []int, numClasses int) (float64, error) {
	scores, err := PerClass(yTrue, yPred, numClasses)
	if err != nil {
		return 0, err
	}
	seen := make([]bool, numClasses)
	for i := range yTrue {
		seen[yTrue[i]] = true
		seen[yPred[i]] = true
	}
	sum, n := 0.0, 0
	for c, s := range scores {
		if seen[c] {
			sum += s.F1
			n++
		}
	}
	return sum / float64(n), nil
}

// F1Weighted は support で重み付けしたF1を計算する
func F1Weighted(yTrue, yPred []int, numClasses int) (float64, error) {
	scores, err := PerClass(yTrue, yPred, numClasses)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, s := range scores {
		sum += s.F1 * float64(s.Support)
	}
	return sum / float64(len(yTrue)), nil
}

// TopKAccuracy は正解クラスが確率上位k件に含まれる割合を計算する。
// proba は n×C の確率行列。
func TopKAccuracy(yTrue []int, proba mat.Matrix, k int) (float64, error) {
	// 入力検証
	r, c := proba.Dims()
	if len(yTrue) == 0 {
		return 0, errors.NewValueError("TopKAccuracy", "empty labels")
	}
	if r != len(yTrue) {
		return 0, errors.NewDimensionError("TopKAccuracy", len(yTrue), r, 0)
	}
	if k < 1 || k > c {
		return 0, errors.NewValueError("TopKAccuracy", fmt.Sprintf("k must be in [1, %d], got %d", c, k))
	}

	hit := 0
	for i, y := range yTrue {
		if y < 0 || y >= c {
			return 0, errors.NewValueError("TopKAccuracy", fmt.Sprintf("label out of range [0, %d) at index %d", c, i))
		}
		p := proba.At(i, y)
		higher := 0
		for j := 0; j < c; j++ {
			if proba.At(i, j) > p {
				higher++
			}
		}
		if higher < k {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue)), nil
}
