package preprocessing

import (
	"github.com/YuminosukeSato/trainedml/dataset"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// LabelEncoder はクラスラベルを 0..k-1 の整数コードに変換する。
// クラスは昇順（数値列は数値順）に並べられる。
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit はyに現れるクラスを学習する。欠損値は無視される
func (e *LabelEncoder) Fit(y *dataset.Column) error {
	classes := y.Unique()
	if len(classes) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "no labels", errors.ErrEmptyData)
	}
	e.classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
	return nil
}

// IsFitted は学習済みかどうかを返す
func (e *LabelEncoder) IsFitted() bool { return e.index != nil }

// Transform はyの各ラベルをコードに変換する。未知のラベルはエラー
func (e *LabelEncoder) Transform(y *dataset.Column) ([]float64, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	codes := make([]float64, y.Len())
	for i := range codes {
		code, ok := e.index[y.Value(i)]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", "unseen label "+y.Value(i))
		}
		codes[i] = float64(code)
	}
	return codes, nil
}

// FitTransform はFitとTransformを同時に実行する
func (e *LabelEncoder) FitTransform(y *dataset.Column) ([]float64, error) {
	if err := e.Fit(y); err != nil {
		return nil, err
	}
	return e.Transform(y)
}

// InverseTransform はコードを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}
	labels := make([]string, len(codes))
	for i, c := range codes {
		k := int(c)
		if float64(k) != c || k < 0 || k >= len(e.classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", "code out of range")
		}
		labels[i] = e.classes[k]
	}
	return labels, nil
}

// Classes は学習したクラスを返す
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}
