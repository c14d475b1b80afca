package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"

	"go2b/internal/models"
)

// CronbachAlpha computes Cronbach's alpha for a response matrix shaped
// [nRespondents][nItems]. Variances are population variances (divide by N),
// so perfectly correlated items yield exactly 1. The result is clamped to
// [0,1]; degenerate input (no rows, fewer than two items, ragged rows, zero
// total variance) yields 0.
func CronbachAlpha(matrix [][]float64) float64 {
	n := len(matrix)
	if n == 0 {
		return 0
	}
	k := len(matrix[0])
	if k < 2 {
		return 0
	}

	itemMeans := make([]float64, k)
	rowTotals := make([]float64, n)
	for i, row := range matrix {
		if len(row) != k {
			return 0
		}
		for j, v := range row {
			itemMeans[j] += v
			rowTotals[i] += v
		}
	}
	for j := range itemMeans {
		itemMeans[j] /= float64(n)
	}

	var sumItemVars float64
	for j := 0; j < k; j++ {
		var sq float64
		for i := 0; i < n; i++ {
			d := matrix[i][j] - itemMeans[j]
			sq += d * d
		}
		sumItemVars += sq / float64(n)
	}

	var totalMean float64
	for _, t := range rowTotals {
		totalMean += t
	}
	totalMean /= float64(n)
	var totalVar float64
	for _, t := range rowTotals {
		d := t - totalMean
		totalVar += d * d
	}
	totalVar /= float64(n)
	if totalVar == 0 {
		return 0
	}

	kf := float64(k)
	alpha := (kf / (kf - 1)) * (1 - sumItemVars/totalVar)
	if alpha < 0 {
		return 0
	}
	if alpha > 1 {
		return 1
	}
	return alpha
}

// ScaleAlpha is the internal-consistency summary for one scale.
type ScaleAlpha struct {
	Scale       string
	Items       int
	Respondents int
	Alpha       float64
}

// ScaleReliability groups the stored answer details by scale and computes
// Cronbach's alpha per scale over the post-inversion item scores. Records
// without detail are skipped; within a scale, rows with fewer items than the
// widest respondent are skipped as well (catalog revisions leave old records
// with a different item layout). Output is sorted by scale name.
func ScaleReliability(codes map[string]models.CodeRecord) []ScaleAlpha {
	rows := map[string][][]float64{}
	for _, rec := range codes {
		if !rec.Used || len(rec.Detail) == 0 {
			continue
		}
		perScale := map[string][]float64{}
		for _, d := range rec.Detail {
			perScale[d.Scale] = append(perScale[d.Scale], float64(d.Score))
		}
		for scale, row := range perScale {
			rows[scale] = append(rows[scale], row)
		}
	}

	out := make([]ScaleAlpha, 0, len(rows))
	for scale, all := range rows {
		want := 0
		for _, row := range all {
			if len(row) > want {
				want = len(row)
			}
		}
		matrix := all[:0]
		for _, row := range all {
			if len(row) == want {
				matrix = append(matrix, row)
			}
		}
		out = append(out, ScaleAlpha{
			Scale:       scale,
			Items:       want,
			Respondents: len(matrix),
			Alpha:       CronbachAlpha(matrix),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scale < out[j].Scale })
	return out
}

// ExportReliabilityCSV renders the per-scale alpha summary as CSV.
func ExportReliabilityCSV(scales []ScaleAlpha) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"Scala", "Item", "Rispondenti", "Alpha"})
	for _, s := range scales {
		rec := []string{
			s.Scale,
			strconv.Itoa(s.Items),
			strconv.Itoa(s.Respondents),
			strconv.FormatFloat(s.Alpha, 'f', 3, 64),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
