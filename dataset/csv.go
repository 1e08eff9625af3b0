package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// LoadCSV reads a headered CSV and keeps the columns named by schema.
// Extra columns are ignored. The outcome column must be present on every
// row and hold at most two distinct labels, one of which is schema.Positive.
func LoadCSV(r io.Reader, schema Schema) (*Dataset, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	reader := csv.NewReader(bufio.NewReader(r))
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(errors.ErrEmptyData, "load csv: missing header")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load csv: read header")
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	lookup := func(name string) (int, error) {
		i, ok := col[name]
		if !ok {
			return 0, errors.NewSchemaMismatchError("load csv", schema.Fields(), header)
		}
		return i, nil
	}
	numIdx := make([]int, len(schema.Numeric))
	for j, name := range schema.Numeric {
		if numIdx[j], err = lookup(name); err != nil {
			return nil, err
		}
	}
	catIdx := make([]int, len(schema.Categorical))
	for j, name := range schema.Categorical {
		if catIdx[j], err = lookup(name); err != nil {
			return nil, err
		}
	}
	outIdx, err := lookup(schema.Outcome)
	if err != nil {
		return nil, err
	}

	numeric := make([][]float64, len(numIdx))
	categorical := make([][]string, len(catIdx))
	var outcome []int
	negative := ""

	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "load csv: line %d", line)
		}

		label := strings.TrimSpace(rec[outIdx])
		switch {
		case label == "":
			return nil, errors.NewValidationError(schema.Outcome, fmt.Sprintf("line %d: outcome is missing", line), label)
		case label == schema.Positive:
			outcome = append(outcome, 1)
		case negative == "" || label == negative:
			negative = label
			outcome = append(outcome, 0)
		default:
			return nil, errors.NewValidationError(schema.Outcome,
				fmt.Sprintf("line %d: more than two outcome levels (%q, %q)", line, schema.Positive, negative), label)
		}

		for j, i := range numIdx {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, errors.NewValidationError(schema.Numeric[j], fmt.Sprintf("line %d: not a number", line), rec[i])
			}
			numeric[j] = append(numeric[j], v)
		}
		for j, i := range catIdx {
			categorical[j] = append(categorical[j], strings.TrimSpace(rec[i]))
		}
	}

	return New(schema, numeric, categorical, outcome)
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path string, schema Schema) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()
	return LoadCSV(f, schema)
}
