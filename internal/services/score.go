package services

import (
	"sort"

	"go2b/internal/models"
)

// ReverseScore maps a raw Likert value to its reverse-scored value given
// the number of points in the scale (6 for this questionnaire).
// raw is expected to be within [1, points]. Out-of-range values are clamped.
func ReverseScore(raw, points int) int {
	if points < 2 {
		return raw
	}
	if raw < 1 {
		raw = 1
	}
	if raw > points {
		raw = points
	}
	return (points + 1) - raw
}

// ItemScore applies reverse coding when the item calls for it.
func ItemScore(it models.Item, answer, points int) int {
	if it.Reverse {
		return ReverseScore(answer, points)
	}
	return answer
}

// RawScores sums the per-item scores into one raw score per scale.
// answers must carry exactly one value per item, in item order.
func RawScores(items []models.Item, answers []int, points int) map[string]int {
	sums := make(map[string]int)
	for i, it := range items {
		sums[it.Scale] += ItemScore(it, answers[i], points)
	}
	return sums
}

// ScalesInOrder lists the distinct scales in first-appearance order,
// which fixes the corpus append order for a completed session.
func ScalesInOrder(items []models.Item) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range items {
		if _, ok := seen[it.Scale]; ok {
			continue
		}
		seen[it.Scale] = struct{}{}
		out = append(out, it.Scale)
	}
	return out
}

// Percentile is the share of the population strictly below score, rounded
// to an integer percentage. The population must include the score itself,
// so a singleton population always yields 0.
func Percentile(population []int, score int) int {
	if len(population) == 0 {
		return 0
	}
	below := 0
	for _, x := range population {
		if x < score {
			below++
		}
	}
	// round(100*below/n) without floating point
	return (200*below + len(population)) / (2 * len(population))
}

// Stanine is the 1..9 band of score within its population: the population
// is sorted ascending, the score lands at its first occurrence, and the
// resulting rank fraction is mapped onto nine equal bands.
func Stanine(population []int, score int) int {
	if len(population) == 0 {
		return 1
	}
	sorted := make([]int, len(population))
	copy(sorted, population)
	sort.Ints(sorted)
	pos := sort.SearchInts(sorted, score) // first occurrence
	n := len(sorted)
	s := (9*(pos+1) + n - 1) / n // ceil(9*(pos+1)/n)
	if s < 1 {
		s = 1
	}
	if s > 9 {
		s = 9
	}
	return s
}

// BuildDetail produces the per-item audit trail stored alongside a report.
func BuildDetail(items []models.Item, answers []int, points int) []models.AnswerDetail {
	out := make([]models.AnswerDetail, 0, len(items))
	for i, it := range items {
		out = append(out, models.AnswerDetail{
			Idx:     i + 1,
			Text:    it.Text,
			Scale:   it.Scale,
			Answer:  answers[i],
			Score:   ItemScore(it, answers[i], points),
			Reverse: it.Reverse,
		})
	}
	return out
}
