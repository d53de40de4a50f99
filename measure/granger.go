package measure

import (
	"encoding/csv"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/lnsongxf/exact-linear-dependence/embed"
)

// MatrixResult holds pairwise Granger causalities over a set of variables.
// Entry (i, j) describes the influence of variable i on variable j; the
// diagonal is zero with a p-value of one.
type MatrixResult struct {
	Names   []string
	Values  *mat.Dense
	PValues *mat.Dense
	// Orders are the embedding orders, one per target variable.
	Orders []int
}

// GrangerMatrix computes Granger causality between every ordered pair of
// columns of data. The embedding order of each target column is fixed once
// per column so all influences on a variable are measured in the same
// model, and the pairs are evaluated concurrently.
func GrangerMatrix(data *mat.Dense, names []string, opts Options) (*MatrixResult, error) {
	_, k := data.Dims()
	if k < 2 {
		return nil, fmt.Errorf("granger matrix needs at least 2 variables, got %d", k)
	}
	if names == nil {
		names = make([]string, k)
		for j := range names {
			names[j] = fmt.Sprintf("Var%d", j+1)
		}
	}
	if len(names) != k {
		return nil, fmt.Errorf("granger matrix: %d names for %d variables", len(names), k)
	}

	columns := make([][]float64, k)
	for j := 0; j < k; j++ {
		columns[j] = mat.Col(nil, j, data)
	}

	orders := make([]int, k)
	for j := 0; j < k; j++ {
		if opts.Lags > 0 {
			orders[j] = opts.Lags
			continue
		}
		order, err := embed.Order(columns[j], embed.OrderOptions{
			MaxLag:    opts.MaxLag,
			Criterion: opts.Criterion,
		})
		if err != nil {
			return nil, fmt.Errorf("order selection for %s: %w", names[j], err)
		}
		orders[j] = order
	}

	values := mat.NewDense(k, k, nil)
	pvalues := mat.NewDense(k, k, nil)
	for j := 0; j < k; j++ {
		pvalues.Set(j, j, 1)
	}

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			i, j := i, j
			g.Go(func() error {
				pairOpts := opts
				pairOpts.Lags = orders[j]
				res, err := GrangerCausality(columns[i], columns[j], pairOpts)
				if err != nil {
					return fmt.Errorf("%s -> %s: %w", names[i], names[j], err)
				}
				// Distinct (i, j) cells, so concurrent writes never overlap.
				values.Set(i, j, res.Value)
				pvalues.Set(i, j, res.PValue)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &MatrixResult{
		Names:   names,
		Values:  values,
		PValues: pvalues,
		Orders:  orders,
	}, nil
}

// WriteCSV writes the matrix in long format, one row per ordered pair:
// Source, Target, Value, PValue, Lags.
func (m *MatrixResult) WriteCSV(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Source", "Target", "Value", "PValue", "Lags"}
	if err := writer.Write(header); err != nil {
		return err
	}

	k := len(m.Names)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i == j {
				continue
			}
			rec := []string{
				m.Names[i],
				m.Names[j],
				fmt.Sprintf("%f", m.Values.At(i, j)),
				fmt.Sprintf("%f", m.PValues.At(i, j)),
				fmt.Sprintf("%d", m.Orders[j]),
			}
			if err := writer.Write(rec); err != nil {
				return err
			}
		}
	}
	return writer.Error()
}
