package fixture

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"metamodelfit/internal/dataset"
)

// LoadResultSetsCSV reads a flat CSV encoding of one stratum group's
// ResultSets and groups its rows into one *ResultSet per distinct
// initial age, in first-seen order — the CLI's on-disk input format.
//
// Expected header: InitialAge,DateYr,OutputType,Estimate,Variance,NbPlots,
// Scenario,Simulator,Realizations. Variance may be empty, meaning the
// simulator did not report an estimator variance for that row.
func LoadResultSetsCSV(path string) ([]dataset.ResultSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"InitialAge", "DateYr", "OutputType", "Estimate", "Variance", "NbPlots", "Scenario", "Simulator", "Realizations"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Errorf("missing required column %q", required)
		}
	}

	byAge := make(map[int]*ResultSet)
	var order []int
	rowNum := 1

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read row %d", rowNum+1)
		}
		rowNum++

		age, err := strconv.Atoi(record[col["InitialAge"]])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: parse InitialAge", rowNum)
		}
		dateYr, err := strconv.Atoi(record[col["DateYr"]])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: parse DateYr", rowNum)
		}
		estimate, err := strconv.ParseFloat(record[col["Estimate"]], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: parse Estimate", rowNum)
		}
		nbPlots, err := strconv.Atoi(record[col["NbPlots"]])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: parse NbPlots", rowNum)
		}
		realizations, err := strconv.Atoi(record[col["Realizations"]])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: parse Realizations", rowNum)
		}

		var variance *float64
		if raw := record[col["Variance"]]; raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d: parse Variance", rowNum)
			}
			variance = &v
		}

		rs, ok := byAge[age]
		if !ok {
			rs = &ResultSet{
				Age:          age,
				Plots:        nbPlots,
				Realizations: realizations,
				Scenario:     record[col["Scenario"]],
				Simulator:    record[col["Simulator"]],
			}
			byAge[age] = rs
			order = append(order, age)
		}
		rs.Rows = append(rs.Rows, dataset.Row{
			DateYr:     dateYr,
			OutputType: record[col["OutputType"]],
			Estimate:   estimate,
			Variance:   variance,
			NbPlots:    nbPlots,
		})
	}

	if len(order) == 0 {
		return nil, errors.Errorf("no data rows in %s", path)
	}

	out := make([]dataset.ResultSet, len(order))
	for i, age := range order {
		out[i] = byAge[age]
	}
	return out, nil
}
