package services

import (
	"strings"
	"testing"

	"go2b/internal/models"
)

func TestCronbachAlphaPerfectCorrelation(t *testing.T) {
	data := [][]float64{
		{1, 1, 1},
		{2, 2, 2},
		{3, 3, 3},
		{4, 4, 4},
	}
	got := CronbachAlpha(data)
	if got < 0.999 || got > 1.001 {
		t.Fatalf("alpha = %f, want ~1.0", got)
	}
}

func TestCronbachAlphaBounds(t *testing.T) {
	data := [][]float64{
		{1, 2, 3},
		{2, 1, 4},
		{3, 0, 5},
		{4, -1, 6},
	}
	got := CronbachAlpha(data)
	if got < 0 || got > 1 {
		t.Fatalf("alpha out of [0,1]: %f", got)
	}
}

func TestCronbachAlphaDegenerate(t *testing.T) {
	if got := CronbachAlpha(nil); got != 0 {
		t.Fatalf("empty matrix: %f", got)
	}
	if got := CronbachAlpha([][]float64{{3}, {4}}); got != 0 {
		t.Fatalf("single item: %f", got)
	}
	// constant responses have zero total variance
	if got := CronbachAlpha([][]float64{{2, 2}, {2, 2}}); got != 0 {
		t.Fatalf("zero variance: %f", got)
	}
}

func TestScaleReliability(t *testing.T) {
	detail := func(scores ...int) []models.AnswerDetail {
		out := make([]models.AnswerDetail, len(scores))
		for i, s := range scores {
			out[i] = models.AnswerDetail{Idx: i + 1, Scale: "Apertura", Score: s}
		}
		return out
	}
	codes := map[string]models.CodeRecord{
		"GO2B-AAA": {Used: true, Detail: detail(1, 1)},
		"GO2B-BBB": {Used: true, Detail: detail(4, 4)},
		"GO2B-CCC": {Used: true, Detail: detail(2, 2)},
		// older record from a shorter catalog revision, skipped
		"GO2B-DDD": {Used: true, Detail: detail(3)},
		// unredeemed and detail-less records never count
		"GO2B-EEE": {Used: false},
		"GO2B-FFF": {Used: true},
	}

	got := ScaleReliability(codes)
	if len(got) != 1 {
		t.Fatalf("scales = %d, want 1", len(got))
	}
	sa := got[0]
	if sa.Scale != "Apertura" || sa.Items != 2 || sa.Respondents != 3 {
		t.Fatalf("summary = %+v", sa)
	}
	if sa.Alpha < 0.999 {
		t.Fatalf("perfectly correlated items, alpha = %f", sa.Alpha)
	}
}

func TestExportReliabilityCSV(t *testing.T) {
	data, err := ExportReliabilityCSV([]ScaleAlpha{
		{Scale: "Apertura", Items: 2, Respondents: 3, Alpha: 1},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d: %q", len(lines), lines)
	}
	if lines[0] != "Scala,Item,Rispondenti,Alpha" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "Apertura,2,3,1.000" {
		t.Fatalf("row = %q", lines[1])
	}
}
