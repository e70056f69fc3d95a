package metrics

import (
	"sort"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// Average はマルチクラス指標の集約方法
type Average int

const (
	// Weighted はクラスごとの指標を正解ラベルの出現数で重み付け平均する
	Weighted Average = iota
	// Macro はクラスごとの指標を単純平均する
	Macro
	// Micro は全クラスのTP/FP/FNを合計してから指標を計算する
	Micro
)

func (a Average) String() string {
	switch a {
	case Macro:
		return "macro"
	case Micro:
		return "micro"
	default:
		return "weighted"
	}
}

// AccuracyScore は正解率を計算する
func AccuracyScore(yTrue, yPred []float64) (float64, error) {
	if err := checkLabels("AccuracyScore", yTrue, yPred); err != nil {
		return 0, err
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// PrecisionScore は適合率を計算する。分母が0のクラスはzeroDivisionとして扱う
func PrecisionScore(yTrue, yPred []float64, average Average, zeroDivision float64) (float64, error) {
	p, _, _, err := PrecisionRecallFScore(yTrue, yPred, average, zeroDivision)
	return p, err
}

// RecallScore は再現率を計算する
func RecallScore(yTrue, yPred []float64, average Average, zeroDivision float64) (float64, error) {
	_, r, _, err := PrecisionRecallFScore(yTrue, yPred, average, zeroDivision)
	return r, err
}

// F1Score はF1スコアを計算する
func F1Score(yTrue, yPred []float64, average Average, zeroDivision float64) (float64, error) {
	_, _, f, err := PrecisionRecallFScore(yTrue, yPred, average, zeroDivision)
	return f, err
}

type confusion struct {
	tp, fp, fn int
}

// PrecisionRecallFScore は適合率・再現率・F1を一度に計算する。
// ラベル集合はyTrueとyPredの和集合、Weightedの重みはyTrueでの出現数。
func PrecisionRecallFScore(yTrue, yPred []float64, average Average, zeroDivision float64) (precision, recall, f1 float64, err error) {
	if err := checkLabels("PrecisionRecallFScore", yTrue, yPred); err != nil {
		return 0, 0, 0, err
	}

	counts := make(map[float64]*confusion)
	get := func(l float64) *confusion {
		c, ok := counts[l]
		if !ok {
			c = &confusion{}
			counts[l] = c
		}
		return c
	}
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			get(yTrue[i]).tp++
			continue
		}
		get(yPred[i]).fp++
		get(yTrue[i]).fn++
	}

	labels := make([]float64, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	if average == Micro {
		var tp, fp, fn int
		for _, l := range labels {
			c := counts[l]
			tp, fp, fn = tp+c.tp, fp+c.fp, fn+c.fn
		}
		return ratio(tp, tp+fp, zeroDivision), ratio(tp, tp+fn, zeroDivision), ratio(2*tp, 2*tp+fp+fn, zeroDivision), nil
	}

	var totalWeight float64
	for _, l := range labels {
		c := counts[l]
		w := 1.0
		if average == Weighted {
			w = float64(c.tp + c.fn)
		}
		precision += w * ratio(c.tp, c.tp+c.fp, zeroDivision)
		recall += w * ratio(c.tp, c.tp+c.fn, zeroDivision)
		f1 += w * ratio(2*c.tp, 2*c.tp+c.fp+c.fn, zeroDivision)
		totalWeight += w
	}
	if totalWeight == 0 {
		return zeroDivision, zeroDivision, zeroDivision, nil
	}
	return precision / totalWeight, recall / totalWeight, f1 / totalWeight, nil
}

func ratio(num, den int, zeroDivision float64) float64 {
	if den == 0 {
		return zeroDivision
	}
	return float64(num) / float64(den)
}

func checkLabels(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}
