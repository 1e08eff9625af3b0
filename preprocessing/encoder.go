package preprocessing

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// Encoding selects how categorical levels become indicator columns.
type Encoding string

const (
	// EncodingDummy drops the reference level (first in sorted order),
	// producing C-1 columns per field.
	EncodingDummy Encoding = "dummy"
	// EncodingOneHot keeps all C levels.
	EncodingOneHot Encoding = "onehot"
)

// UnknownPolicy decides what happens to levels not seen during Fit.
type UnknownPolicy string

const (
	// UnknownBucket maps unseen levels to an extra "<field>_unknown" column
	// and emits an UnknownCategoryWarning.
	UnknownBucket UnknownPolicy = "bucket"
	// UnknownError fails the transform with an UnknownCategoryError.
	UnknownError UnknownPolicy = "error"
)

// OneHotEncoder はカテゴリ列を指示変数列に変換する。
// カテゴリと列の対応はFit時に確定し、Transformでは変更しない。
type OneHotEncoder struct {
	Encoding Encoding
	Unknown  UnknownPolicy

	fields []string
	// levels[f] は列になる水準（ソート済み、参照水準は除外済み）
	levels  [][]string
	known   []map[string]int // 水準 -> 出力列オフセット（参照水準は -1）
	offsets []int
	width   int
	fitted  bool
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
func NewOneHotEncoder(encoding Encoding, unknown UnknownPolicy) *OneHotEncoder {
	return &OneHotEncoder{Encoding: encoding, Unknown: unknown}
}

// Fit は各フィールドの水準を記録する。cols[f] はフィールド f の値列。
func (e *OneHotEncoder) Fit(fields []string, cols [][]string) error {
	if len(fields) != len(cols) {
		return errors.NewDimensionError("OneHotEncoder.Fit", len(fields), len(cols), 1)
	}
	switch e.Encoding {
	case EncodingDummy, EncodingOneHot:
	default:
		return errors.NewValidationError("encoding", "must be dummy or onehot", e.Encoding)
	}
	switch e.Unknown {
	case UnknownBucket, UnknownError:
	default:
		return errors.NewValidationError("unknown", "must be bucket or error", e.Unknown)
	}

	e.fields = append([]string(nil), fields...)
	e.levels = make([][]string, len(fields))
	e.known = make([]map[string]int, len(fields))
	e.offsets = make([]int, len(fields))
	e.width = 0

	for f, col := range cols {
		seen := make(map[string]struct{})
		for _, v := range col {
			seen[v] = struct{}{}
		}
		all := make([]string, 0, len(seen))
		for v := range seen {
			all = append(all, v)
		}
		sort.Strings(all)

		e.known[f] = make(map[string]int, len(all))
		e.offsets[f] = e.width
		kept := all
		if e.Encoding == EncodingDummy && len(all) > 0 {
			e.known[f][all[0]] = -1
			kept = all[1:]
		}
		for k, v := range kept {
			e.known[f][v] = k
		}
		e.levels[f] = kept
		e.width += len(kept)
		if e.Unknown == UnknownBucket {
			e.width++
		}
	}
	e.fitted = true
	return nil
}

// Width returns the number of output columns.
func (e *OneHotEncoder) Width() int { return e.width }

// FeatureNames returns "<field>_<level>" per output column, plus
// "<field>_unknown" after each field's levels when bucketing.
func (e *OneHotEncoder) FeatureNames() []string {
	names := make([]string, 0, e.width)
	for f, field := range e.fields {
		for _, lvl := range e.levels[f] {
			names = append(names, fmt.Sprintf("%s_%s", field, lvl))
		}
		if e.Unknown == UnknownBucket {
			names = append(names, field+"_unknown")
		}
	}
	return names
}

// Transform encodes cols into an n×Width matrix.
func (e *OneHotEncoder) Transform(cols [][]string) (*mat.Dense, error) {
	if !e.fitted {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	if len(cols) != len(e.fields) {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", len(e.fields), len(cols), 1)
	}
	if len(cols) == 0 || len(cols[0]) == 0 || e.width == 0 {
		return nil, nil
	}

	n := len(cols[0])
	out := mat.NewDense(n, e.width, nil)
	for f, col := range cols {
		if len(col) != n {
			return nil, errors.NewDimensionError("OneHotEncoder.Transform", n, len(col), 0)
		}
		unseen := map[string]int{}
		var order []string
		for i, v := range col {
			k, ok := e.known[f][v]
			switch {
			case ok && k >= 0:
				out.Set(i, e.offsets[f]+k, 1)
			case ok:
				// reference level: all zeros
			case e.Unknown == UnknownError:
				return nil, errors.NewUnknownCategoryError(e.fields[f], v)
			default:
				out.Set(i, e.offsets[f]+len(e.levels[f]), 1)
				if unseen[v] == 0 {
					order = append(order, v)
				}
				unseen[v]++
			}
		}
		for _, v := range order {
			errors.Warn(errors.NewUnknownCategoryWarning(e.fields[f], v, unseen[v]))
		}
	}
	return out, nil
}
