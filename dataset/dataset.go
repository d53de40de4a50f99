// Package dataset loads multivariate time series from CSV and provides the
// column access and screening helpers the dependence measures expect.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"github.com/lnsongxf/exact-linear-dependence/core"
)

// Table is a T x K data matrix with named columns and a time index.
type Table struct {
	Data  *mat.Dense
	Names []string
	Time  []float64
}

// Load reads a CSV file with a header row of variable names and one
// observation per subsequent row. Every cell must parse as a float.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("empty header in %s", path)
	}
	k := len(header)

	var (
		data  []float64
		times []float64
		row   int
	)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+2, err)
		}
		if len(record) == 1 && record[0] == "" {
			continue
		}
		if len(record) != k {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", row+2, k, len(record))
		}
		for j, s := range record {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("parse float at row %d col %d (%q): %w", row+2, j+1, s, err)
			}
			data = append(data, v)
		}
		times = append(times, float64(row))
		row++
	}
	if row == 0 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	return &Table{
		Data:  mat.NewDense(row, k, data),
		Names: header,
		Time:  times,
	}, nil
}

// Rows returns the number of observations.
func (t *Table) Rows() int {
	r, _ := t.Data.Dims()
	return r
}

// Column returns a copy of column j.
func (t *Table) Column(j int) []float64 {
	return mat.Col(nil, j, t.Data)
}

// ColumnByName returns a copy of the named column.
func (t *Table) ColumnByName(name string) ([]float64, error) {
	for j, n := range t.Names {
		if n == name {
			return t.Column(j), nil
		}
	}
	return nil, core.NewConfigurationError("column name", name)
}

// Summary describes one column.
type Summary struct {
	Name   string
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
	Median float64
}

// Summaries computes descriptive statistics for every column.
func (t *Table) Summaries() ([]Summary, error) {
	out := make([]Summary, len(t.Names))
	for j, name := range t.Names {
		col := t.Column(j)
		mean, err := stats.Mean(col)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		std, err := stats.StandardDeviation(col)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		min, err := stats.Min(col)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		max, err := stats.Max(col)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		median, err := stats.Median(col)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		out[j] = Summary{Name: name, Mean: mean, Std: std, Min: min, Max: max, Median: median}
	}
	return out, nil
}

// DegenerateColumns returns the indices of columns with (numerically) zero
// variance. Such columns cannot enter a correlation and should be dropped
// or flagged before measuring dependence.
func (t *Table) DegenerateColumns() []int {
	var out []int
	for j := range t.Names {
		col := t.Column(j)
		v, err := stats.PopulationVariance(col)
		if err != nil || v < 1e-12 {
			out = append(out, j)
		}
	}
	return out
}
